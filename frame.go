package dflow

// FrameReader produces fixed-size frames, one at a time, from some source (a run file, a
// forecast queue, a network channel). Frames are delivered by copying into a caller-owned buffer.
type FrameReader interface {
	NextFrame(frame []byte) (bool, error) // NextFrame fills frame with the next frame, returning false once there are no more frames
	Close() error                         // Close releases any resources held by this FrameReader
}

// FrameWriter consumes fixed-size frames. The frame passed to NextFrame is only borrowed
// for the duration of the call, and may be reused by the caller afterwards.
type FrameWriter interface {
	Open() error                  // Open prepares this FrameWriter for receiving frames
	NextFrame(frame []byte) error // NextFrame pushes a frame to this FrameWriter
	Fail() error                  // Fail signals that the producer failed, and no further frames will arrive
	Close() error                 // Close signals that no further frames will arrive
}
