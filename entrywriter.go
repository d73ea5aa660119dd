package arscwriter

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	entryHeaderSize    = 8
	entryExtHeaderSize = 16
	resValueSize       = 8
	mapPairSize        = 12
)

// flatEntry is one fully-resolved (entry, value, key index) triple ready
// for serialization into a values blob.
type flatEntry struct {
	entry    *Entry
	value    Value
	keyIndex uint32
}

// entryWriter serializes flat entries into the values blob of one
// (type, configuration) pair. When dedup is on, scalar items are first
// rendered into a scratch block, hashed by content, and only committed on a
// miss; identical bytes share one offset. The dedup table is scoped to one
// blob since offsets are only meaningful within it.
type entryWriter struct {
	buf     *bigBuffer
	compact bool
	seen    map[string]uint32
	scratch []byte
}

func newEntryWriter(buf *bigBuffer, compact, dedup bool) *entryWriter {
	w := &entryWriter{buf: buf, compact: compact}
	if dedup {
		w.seen = make(map[string]uint32)
	}
	return w
}

// write appends one entry and returns the byte offset it lives at within
// the blob. Deduplicated scalars return the offset of the earlier copy.
func (w *entryWriter) write(fe flatEntry) (uint32, error) {
	var flags uint16
	if fe.entry.Visibility == VisibilityPublic {
		flags |= entryFlagPublic
	}
	if fe.value.IsWeak() {
		flags |= entryFlagWeak
	}

	if item, ok := fe.value.(Item); ok {
		return w.writeItem(fe, item, flags)
	}
	return w.writeMap(fe, flags)
}

func (w *entryWriter) writeItem(fe flatEntry, item Item, flags uint16) (uint32, error) {
	dataType, data, err := flattenItem(item)
	if err != nil {
		return 0, fmt.Errorf("entry %q: %s", fe.entry.Name, err.Error())
	}

	if w.compact {
		w.scratch = w.scratch[:0]
		w.scratch = binary.LittleEndian.AppendUint16(w.scratch, uint16(fe.keyIndex))
		w.scratch = binary.LittleEndian.AppendUint16(w.scratch, flags|entryFlagCompact|uint16(dataType)<<8)
		w.scratch = binary.LittleEndian.AppendUint32(w.scratch, data)
	} else {
		w.scratch = w.scratch[:0]
		w.scratch = binary.LittleEndian.AppendUint16(w.scratch, entryHeaderSize)
		w.scratch = binary.LittleEndian.AppendUint16(w.scratch, flags)
		w.scratch = binary.LittleEndian.AppendUint32(w.scratch, fe.keyIndex)
		w.scratch = binary.LittleEndian.AppendUint16(w.scratch, resValueSize)
		w.scratch = append(w.scratch, 0, dataType)
		w.scratch = binary.LittleEndian.AppendUint32(w.scratch, data)
	}

	// Content equality is exact bytes, so entries differing only in flag
	// bits stay distinct.
	if w.seen != nil {
		if off, ok := w.seen[string(w.scratch)]; ok {
			return off, nil
		}
	}
	off := w.buf.size()
	w.buf.appendBytes(w.scratch)
	if w.seen != nil {
		w.seen[string(w.scratch)] = off
	}
	return off, nil
}

func (w *entryWriter) writeMap(fe flatEntry, flags uint16) (uint32, error) {
	off := w.buf.size()
	hdr := w.buf.grow(entryExtHeaderSize)
	w.buf.setU16(hdr, entryExtHeaderSize)
	w.buf.setU16(hdr+2, flags|entryFlagComplex)
	w.buf.setU32(hdr+4, fe.keyIndex)

	var parent uint32
	var count uint32
	var err error

	switch v := fe.value.(type) {
	case *Attribute:
		count, err = w.writeAttribute(v)
	case *Style:
		parent, count, err = w.writeStyle(fe.entry, v)
	case *Styleable:
		count, err = w.writeStyleable(v)
	case *Array:
		count, err = w.writeArray(v)
	case *Plural:
		count, err = w.writePlural(v)
	default:
		err = fmt.Errorf("unknown compound value %T", fe.value)
	}
	if err != nil {
		return 0, fmt.Errorf("entry %q: %s", fe.entry.Name, err.Error())
	}

	w.buf.setU32(hdr+8, parent)
	w.buf.setU32(hdr+12, count)
	return off, nil
}

func (w *entryWriter) writePair(name uint32, dataType uint8, data uint32) {
	off := w.buf.grow(mapPairSize)
	w.buf.setU32(off, name)
	w.buf.setU16(off+4, resValueSize)
	w.buf.setU8(off+7, dataType)
	w.buf.setU32(off+8, data)
}

func (w *entryWriter) writePairItem(name uint32, item Item) error {
	dataType, data, err := flattenItem(item)
	if err != nil {
		return err
	}
	w.writePair(name, dataType, data)
	return nil
}

func (w *entryWriter) writeAttribute(attr *Attribute) (uint32, error) {
	count := uint32(1)
	w.writePair(mapAttrType, DataTypeIntDec, attr.TypeMask)
	if attr.HasMin {
		w.writePair(mapAttrMin, DataTypeIntDec, uint32(attr.MinInt))
		count++
	}
	if attr.HasMax {
		w.writePair(mapAttrMax, DataTypeIntDec, uint32(attr.MaxInt))
		count++
	}
	for _, sym := range attr.Symbols {
		if !sym.Symbol.ID.Valid() {
			return 0, fmt.Errorf("attribute symbol %q has no ID", sym.Symbol.Name)
		}
		dataType := sym.DataType
		if dataType == 0 {
			dataType = DataTypeIntDec
		}
		w.writePair(uint32(sym.Symbol.ID), dataType, sym.Value)
		count++
	}
	return count, nil
}

// writeStyle emits style entries sorted by key: keys with ids first in
// ascending id order, then keys without ids by name. The runtime binary
// searches this order when resolving style attributes.
func (w *entryWriter) writeStyle(entry *Entry, style *Style) (parent, count uint32, err error) {
	if style.Parent != nil {
		if !style.Parent.ID.Valid() {
			return 0, 0, fmt.Errorf("parent of style has no ID (%q)", style.Parent.Name)
		}
		parent = uint32(style.Parent.ID)
	}

	sorted := make([]StyleEntry, len(style.Entries))
	copy(sorted, style.Entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Key, sorted[j].Key
		if a.ID.Valid() != b.ID.Valid() {
			return a.ID.Valid()
		}
		if a.ID.Valid() {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})

	for _, se := range sorted {
		if !se.Key.ID.Valid() {
			return 0, 0, fmt.Errorf("style attribute %q has no ID", se.Key.Name)
		}
		if err := w.writePairItem(uint32(se.Key.ID), se.Value); err != nil {
			return 0, 0, err
		}
	}
	return parent, uint32(len(sorted)), nil
}

func (w *entryWriter) writeStyleable(s *Styleable) (uint32, error) {
	for i := range s.Entries {
		ref := &s.Entries[i]
		if !ref.ID.Valid() {
			return 0, fmt.Errorf("styleable attribute %q has no ID", ref.Name)
		}
		w.writePair(uint32(ref.ID), DataTypeReference, uint32(ref.ID))
	}
	return uint32(len(s.Entries)), nil
}

// writeArray keys each element with a synthetic positional ident so the
// runtime recovers declaration order without real names.
func (w *entryWriter) writeArray(a *Array) (uint32, error) {
	for i, item := range a.Items {
		if err := w.writePairItem(mapAttrMin+uint32(i), item); err != nil {
			return 0, err
		}
	}
	return uint32(len(a.Items)), nil
}

var pluralQuantityIdents = [PluralCount]uint32{
	PluralZero:  mapAttrZero,
	PluralOne:   mapAttrOne,
	PluralTwo:   mapAttrTwo,
	PluralFew:   mapAttrFew,
	PluralMany:  mapAttrMany,
	PluralOther: mapAttrOther,
}

func (w *entryWriter) writePlural(p *Plural) (uint32, error) {
	var count uint32
	for q := 0; q < PluralCount; q++ {
		if p.Values[q] == nil {
			continue
		}
		if err := w.writePairItem(pluralQuantityIdents[q], p.Values[q]); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}
