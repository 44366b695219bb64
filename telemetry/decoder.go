package telemetry

// StreamDecoder extracts validated frames from a continuous byte
// stream. It keeps state across calls, so it can be driven by a
// non-blocking poll that delivers zero, one, or many bytes at a time.
//
// Resynchronization is by header sentinel only. A payload byte that
// happens to equal 0xAA can be mistaken for a frame start when syncing
// mid-stream; the candidate then fails the checksum/footer check and
// the scanner moves on. Fixed-length framing without byte stuffing
// cannot do better, and the transmitter firmware shares the same
// limitation.
type StreamDecoder struct {
	buf     [FrameSize]byte
	n       int
	synced  bool
	dropped uint32
}

// Feed consumes a chunk of received bytes and returns the frames that
// validated. Invalid candidates are discarded silently.
func (d *StreamDecoder) Feed(p []byte) []*Frame {
	var frames []*Frame
	for _, b := range p {
		if frame := d.feedByte(b); frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames
}

func (d *StreamDecoder) feedByte(b byte) *Frame {
	if !d.synced {
		if b != FrameHeader {
			return nil
		}
		d.buf[0] = b
		d.n = 1
		d.synced = true
		return nil
	}

	d.buf[d.n] = b
	d.n++
	if d.n < FrameSize {
		return nil
	}

	// Candidate complete; back to searching either way.
	d.synced = false
	d.n = 0

	frame, err := Decode(d.buf[:])
	if err != nil {
		d.dropped++
		return nil
	}
	return frame
}

// Dropped returns how many complete candidates failed validation since
// the decoder was created. Diagnostic only.
func (d *StreamDecoder) Dropped() uint32 {
	return d.dropped
}

// Reset discards any partial candidate and returns to header search.
func (d *StreamDecoder) Reset() {
	d.synced = false
	d.n = 0
}
