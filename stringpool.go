package arscwriter

import (
	"fmt"
	"sort"
	"unicode/utf16"
)

// refPriorityNormal is the context priority given to refs taken without an
// explicit one. Lower values sort earlier in the flattened pool.
const refPriorityNormal = 0x7FFFFFFF

// Span is a style region attached to a pool string, in UTF-16 character
// units. Name references the span's tag string in the same pool.
type Span struct {
	Name      StringRef
	FirstChar uint32
	LastChar  uint32
}

type poolEntry struct {
	value    string
	priority uint32
	config   Config
	spans    []Span
	refCount int
	index    int
}

// StringRef is a stable handle to an interned pool string. Its final index
// is only meaningful once the owning pool has been sorted and flattened.
type StringRef struct {
	entry *poolEntry
}

func (r StringRef) Index() uint32 {
	return uint32(r.entry.index)
}

func (r StringRef) String() string {
	return r.entry.value
}

func (r StringRef) valid() bool {
	return r.entry != nil
}

// StringPool interns strings into dense indices and flattens itself as a
// self-contained chunk. Refs must all be taken before Flatten fixes the
// final indices.
type StringPool struct {
	entries []*poolEntry
	lookup  map[string]*poolEntry
}

func NewStringPool() *StringPool {
	return &StringPool{lookup: make(map[string]*poolEntry)}
}

func (p *StringPool) Len() int {
	return len(p.entries)
}

// MakeRef interns s and returns a stable handle to it. Interning is pure:
// re-adding an existing string returns the original entry.
func (p *StringPool) MakeRef(s string) StringRef {
	return p.makeRef(s, refPriorityNormal, Config{})
}

// MakeRefWithContext interns s carrying the priority and configuration used
// by Sort to cluster related strings. The context of the first insertion
// wins, except that a lower priority overrides a higher one.
func (p *StringPool) MakeRefWithContext(s string, priority uint32, config Config) StringRef {
	return p.makeRef(s, priority, config)
}

func (p *StringPool) makeRef(s string, priority uint32, config Config) StringRef {
	if e, ok := p.lookup[s]; ok {
		e.refCount++
		if priority < e.priority {
			e.priority = priority
			e.config = config
		}
		return StringRef{entry: e}
	}
	e := &poolEntry{
		value:    s,
		priority: priority,
		config:   config,
		refCount: 1,
		index:    len(p.entries),
	}
	p.entries = append(p.entries, e)
	p.lookup[s] = e
	return StringRef{entry: e}
}

// MakeRefStyled interns s with style spans attached. Styled strings are not
// deduplicated against plain ones since their binary representation differs.
func (p *StringPool) MakeRefStyled(s string, spans []Span) StringRef {
	e := &poolEntry{
		value:    s,
		priority: refPriorityNormal,
		spans:    spans,
		refCount: 1,
		index:    len(p.entries),
	}
	p.entries = append(p.entries, e)
	return StringRef{entry: e}
}

// Prune drops entries nothing took a ref on and renumbers the rest.
func (p *StringPool) Prune() {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.refCount > 0 {
			kept = append(kept, e)
		} else {
			delete(p.lookup, e.value)
		}
	}
	p.entries = kept
	p.renumber()
}

// Sort orders the pool by (styled-first, priority, configuration, content)
// and renumbers all refs. Styled entries must occupy the lowest indices for
// the flattened style table to line up.
func (p *StringPool) Sort() {
	sort.SliceStable(p.entries, func(i, j int) bool {
		a, b := p.entries[i], p.entries[j]
		if (len(a.spans) > 0) != (len(b.spans) > 0) {
			return len(a.spans) > 0
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if d := a.config.Compare(&b.config); d != 0 {
			return d < 0
		}
		return a.value < b.value
	})
	p.renumber()
}

func (p *StringPool) renumber() {
	for i, e := range p.entries {
		e.index = i
	}
}

func (p *StringPool) styleCount() int {
	n := 0
	for _, e := range p.entries {
		if len(e.spans) > 0 {
			n++
		}
	}
	return n
}

// FlattenUTF8 serializes the pool as a UTF-8 encoded string pool chunk.
func (p *StringPool) FlattenUTF8(buf *bigBuffer) error {
	return p.flatten(buf, true)
}

// FlattenUTF16 serializes the pool as a UTF-16 encoded string pool chunk.
func (p *StringPool) FlattenUTF16(buf *bigBuffer) error {
	return p.flatten(buf, false)
}

const stringPoolHeaderSize = chunkHeaderSize + 5*4

func (p *StringPool) flatten(buf *bigBuffer, utf8 bool) error {
	styleCount := p.styleCount()
	for i := 0; i < styleCount; i++ {
		if len(p.entries[i].spans) == 0 {
			return fmt.Errorf("styled pool entries are not contiguous at the front, call Sort first")
		}
	}

	cw := startChunk(buf, chunkStringPool, stringPoolHeaderSize)
	cw.setU32(8, uint32(len(p.entries)))
	cw.setU32(12, uint32(styleCount))
	if utf8 {
		cw.setU32(16, stringFlagUtf8)
	}

	indicesOff := cw.nextBlock(len(p.entries), 4)
	var styleIndicesOff uint32
	if styleCount != 0 {
		styleIndicesOff = cw.nextBlock(styleCount, 4)
	}

	stringsStart := cw.size()
	cw.setU32(20, stringsStart)
	for i, e := range p.entries {
		buf.setU32(indicesOff+uint32(4*i), cw.size()-stringsStart)
		if utf8 {
			if err := appendStringUTF8(buf, e.value); err != nil {
				return err
			}
		} else {
			if err := appendStringUTF16(buf, e.value); err != nil {
				return err
			}
		}
	}
	buf.align4()

	if styleCount != 0 {
		stylesStart := cw.size()
		cw.setU32(24, stylesStart)
		for i := 0; i < styleCount; i++ {
			buf.setU32(styleIndicesOff+uint32(4*i), cw.size()-stylesStart)
			for _, sp := range p.entries[i].spans {
				off := buf.grow(12)
				buf.setU32(off, sp.Name.Index())
				buf.setU32(off+4, sp.FirstChar)
				buf.setU32(off+8, sp.LastChar)
			}
			off := buf.grow(4)
			buf.setU32(off, noEntry)
		}
		// The runtime looks for a whole span of 0xFFFFFFFF terminating the
		// style block.
		off := buf.grow(8)
		buf.setU32(off, noEntry)
		buf.setU32(off+4, noEntry)
	}

	cw.finish()
	return nil
}

func appendLen8(buf *bigBuffer, n int) error {
	if n > 0x7FFF {
		return fmt.Errorf("string too long for utf8 pool encoding (%d)", n)
	}
	if n > 0x7F {
		off := buf.grow(2)
		buf.setU8(off, uint8(n>>8)|0x80)
		buf.setU8(off+1, uint8(n))
	} else {
		off := buf.grow(1)
		buf.setU8(off, uint8(n))
	}
	return nil
}

func appendStringUTF8(buf *bigBuffer, s string) error {
	// Prefixed with the UTF-16 length first, then the byte length, the
	// reverse of how the reader consumes it.
	if err := appendLen8(buf, len(utf16.Encode([]rune(s)))); err != nil {
		return err
	}
	if err := appendLen8(buf, len(s)); err != nil {
		return err
	}
	off := buf.grow(len(s) + 1)
	copy(buf.data[off:], s)
	return nil
}

func appendStringUTF16(buf *bigBuffer, s string) error {
	units := utf16.Encode([]rune(s))
	n := len(units)
	if n > 0x7FFFFFFF {
		return fmt.Errorf("string too long for utf16 pool encoding (%d)", n)
	}
	if n > 0x7FFF {
		off := buf.grow(4)
		buf.setU16(off, uint16(n>>16)|0x8000)
		buf.setU16(off+2, uint16(n))
	} else {
		off := buf.grow(2)
		buf.setU16(off, uint16(n))
	}
	off := buf.grow(2*n + 2)
	for i, u := range units {
		buf.setU16(off+uint32(2*i), u)
	}
	return nil
}
