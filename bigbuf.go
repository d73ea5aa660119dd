package arscwriter

import "encoding/binary"

// bigBuffer is the growable output buffer every encoder writes into.
// Blocks handed out by grow() are only valid until the next growth, so
// callers address earlier bytes by offset, never by kept slices.
type bigBuffer struct {
	data []byte
}

func (b *bigBuffer) size() uint32 {
	return uint32(len(b.data))
}

func (b *bigBuffer) bytes() []byte {
	return b.data
}

// grow appends n zeroed bytes and returns the offset they start at.
func (b *bigBuffer) grow(n int) uint32 {
	off := uint32(len(b.data))
	b.data = append(b.data, make([]byte, n)...)
	return off
}

func (b *bigBuffer) appendBytes(p []byte) {
	b.data = append(b.data, p...)
}

// align pads with zeros until the write cursor sits on a 4 byte boundary.
func (b *bigBuffer) align4() {
	for len(b.data)%4 != 0 {
		b.data = append(b.data, 0)
	}
}

func (b *bigBuffer) setU8(off uint32, v uint8) {
	b.data[off] = v
}

func (b *bigBuffer) setU16(off uint32, v uint16) {
	binary.LittleEndian.PutUint16(b.data[off:], v)
}

func (b *bigBuffer) setU32(off uint32, v uint32) {
	binary.LittleEndian.PutUint32(b.data[off:], v)
}

func (b *bigBuffer) u32At(off uint32) uint32 {
	return binary.LittleEndian.Uint32(b.data[off:])
}

// chunkWriter reserves a self-describing chunk header, lets the caller fill
// the type-specific fields by offset, and patches the total size on finish.
// Chunks nest; a child must finish before its parent. Misuse is a logic
// error in the caller, not a runtime condition, so it panics.
type chunkWriter struct {
	buf      *bigBuffer
	start    uint32
	finished bool
}

// startChunk reserves headerSize zeroed bytes at the current position and
// stamps the common chunk header (type tag, header size, unresolved size).
func startChunk(buf *bigBuffer, chunkType uint16, headerSize int) *chunkWriter {
	start := buf.grow(headerSize)
	buf.setU16(start, chunkType)
	buf.setU16(start+2, uint16(headerSize))
	return &chunkWriter{buf: buf, start: start}
}

// setU8 writes one byte at the given offset from the chunk start.
func (cw *chunkWriter) setU8(off uint32, v uint8) {
	cw.buf.setU8(cw.start+off, v)
}

func (cw *chunkWriter) setU16(off uint32, v uint16) {
	cw.buf.setU16(cw.start+off, v)
}

func (cw *chunkWriter) setU32(off uint32, v uint32) {
	cw.buf.setU32(cw.start+off, v)
}

// nextBlock appends count*elemSize zeroed bytes after the current write
// cursor and returns their absolute offset, for variable-length index or
// data arrays trailing the fixed header.
func (cw *chunkWriter) nextBlock(count, elemSize int) uint32 {
	return cw.buf.grow(count * elemSize)
}

// size reports the number of bytes written to the chunk so far.
func (cw *chunkWriter) size() uint32 {
	return cw.buf.size() - cw.start
}

// finish aligns the buffer to 4 bytes and patches the chunk's total size,
// including all nested children.
func (cw *chunkWriter) finish() uint32 {
	if cw.finished {
		panic("chunkWriter: finish called twice")
	}
	cw.finished = true
	cw.buf.align4()
	total := cw.buf.size() - cw.start
	cw.buf.setU32(cw.start+4, total)
	return total
}
