package audio

// DefaultChunkFrames is the number of frames a source accumulates before
// handing a chunk to the sink.
const DefaultChunkFrames = 4096

// Chunker accumulates raw device bytes and cuts them into chunks whose length
// is always a whole number of frames.
type Chunker struct {
	blockAlign int
	chunkSize  int
	buf        []byte
}

func NewChunker(format Format, chunkFrames int) *Chunker {
	if chunkFrames < 1 {
		chunkFrames = DefaultChunkFrames
	}
	blockAlign := int(format.BlockAlign())
	if blockAlign < 1 {
		blockAlign = 1
	}
	return &Chunker{
		blockAlign: blockAlign,
		chunkSize:  blockAlign * chunkFrames,
		buf:        make([]byte, 0, blockAlign*chunkFrames*2),
	}
}

// Write appends device bytes. They may end in the middle of a frame.
func (c *Chunker) Write(p []byte) {
	c.buf = append(c.buf, p...)
}

// Next returns a full chunk once enough frames are buffered. The returned
// slice is owned by the caller.
func (c *Chunker) Next() ([]byte, bool) {
	if len(c.buf) < c.chunkSize {
		return nil, false
	}
	return c.take(c.chunkSize), true
}

// Flush returns every complete frame still buffered. A trailing partial frame
// is discarded.
func (c *Chunker) Flush() []byte {
	n := len(c.buf) - len(c.buf)%c.blockAlign
	chunk := c.take(n)
	c.buf = c.buf[:0]
	return chunk
}

// Buffered reports the number of bytes waiting
func (c *Chunker) Buffered() int {
	return len(c.buf)
}

func (c *Chunker) take(n int) []byte {
	if n == 0 {
		return nil
	}
	chunk := make([]byte, n)
	copy(chunk, c.buf[:n])
	remaining := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:remaining]
	return chunk
}
