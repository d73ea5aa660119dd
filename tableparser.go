package arscwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"unicode/utf16"
)

// ParsedValue is a decoded Res_value.
type ParsedValue struct {
	DataType uint8
	Data     uint32
}

// ParsedMapEntry is one name/value pair of a complex entry.
type ParsedMapEntry struct {
	Name  uint32
	Value ParsedValue
}

// ParsedEntry is one decoded entry of a type chunk.
type ParsedEntry struct {
	ID      int
	Key     string
	Flags   uint16
	Compact bool

	// Exactly one of Value and Map is set.
	Value *ParsedValue

	ParentID uint32
	Map      []ParsedMapEntry
}

// ParsedTypeChunk is one decoded type chunk: the values of one type for
// one configuration.
type ParsedTypeChunk struct {
	TypeID     int
	Flags      uint8
	Config     Config
	EntryCount int
	Entries    []*ParsedEntry
}

func (tc *ParsedTypeChunk) Sparse() bool   { return tc.Flags&typeFlagSparse != 0 }
func (tc *ParsedTypeChunk) Offset16() bool { return tc.Flags&typeFlagOffset16 != 0 }

// FindEntry returns the entry with the given id, or nil.
func (tc *ParsedTypeChunk) FindEntry(id int) *ParsedEntry {
	for _, e := range tc.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ParsedTypeSpec holds the per-entry configuration masks of one type.
type ParsedTypeSpec struct {
	TypeID      int
	ConfigCount int
	Masks       []uint32
}

type ParsedLibraryEntry struct {
	ID   uint8
	Name string
}

type ParsedPolicy struct {
	Flags uint32
	IDs   []ResourceID
}

type ParsedOverlayable struct {
	Name     string
	Actor    string
	Policies []ParsedPolicy
}

type ParsedAlias struct {
	StagedID    ResourceID
	FinalizedID ResourceID
}

type ParsedPublicEntry struct {
	ID         int
	Key        string
	SourceLine int
	State      uint32
}

type ParsedPublic struct {
	TypeID  int
	Entries []ParsedPublicEntry
}

// ParsedPackage is one decoded package chunk.
type ParsedPackage struct {
	ID   int
	Name string

	typeNames stringTable
	keyNames  stringTable

	TypeSpecs    []*ParsedTypeSpec
	Types        []*ParsedTypeChunk
	Publics      []*ParsedPublic
	Libraries    []ParsedLibraryEntry
	Overlayables []ParsedOverlayable
	Aliases      []ParsedAlias
}

// TypeName resolves a type id against the package's type name pool.
func (p *ParsedPackage) TypeName(typeID int) (string, error) {
	if typeID < 1 {
		return "", fmt.Errorf("invalid type id %d", typeID)
	}
	return p.typeNames.get(uint32(typeID - 1))
}

// FindType returns the type chunk for the given type id and
// configuration, or nil.
func (p *ParsedPackage) FindType(typeID int, config Config) *ParsedTypeChunk {
	for _, tc := range p.Types {
		if tc.TypeID == typeID && tc.Config == config {
			return tc
		}
	}
	return nil
}

// FindTypeSpec returns the type-spec chunk for the given type id, or nil.
func (p *ParsedPackage) FindTypeSpec(typeID int) *ParsedTypeSpec {
	for _, ts := range p.TypeSpecs {
		if ts.TypeID == typeID {
			return ts
		}
	}
	return nil
}

// ParsedTable is a decoded resource table.
type ParsedTable struct {
	pool     stringTable
	Packages []*ParsedPackage
}

// GetString resolves an index into the table's value string pool.
func (t *ParsedTable) GetString(idx uint32) (string, error) {
	return t.pool.get(idx)
}

func (t *ParsedTable) getStyle(idx uint32) ([]parsedSpan, error) {
	return t.pool.getStyle(idx)
}

// FindPackage returns the package with the given id, or nil.
func (t *ParsedTable) FindPackage(id int) *ParsedPackage {
	for _, pkg := range t.Packages {
		if pkg.ID == id {
			return pkg
		}
	}
	return nil
}

// ParseTable decodes a flattened resource table. Chunks emitted only for
// build tooling (public, symbol table, source pool) are tolerated and the
// public chunks decoded; unknown chunk types are an error.
func ParseTable(r io.Reader) (*ParsedTable, error) {
	id, _, totalLen, err := parseChunkHeader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing table header: %s", err.Error())
	}
	if id != chunkTable {
		return nil, fmt.Errorf("Invalid top chunk id: 0x%04x, expected 0x%04x", id, chunkTable)
	}

	var packageCount uint32
	if err := binary.Read(r, binary.LittleEndian, &packageCount); err != nil {
		return nil, fmt.Errorf("error reading package count: %s", err.Error())
	}

	res := &ParsedTable{}
	remaining := int64(totalLen) - tableHeaderSize
	for remaining > 0 {
		id, _, chunkLen, err := parseChunkHeader(r)
		if err != nil {
			return nil, fmt.Errorf("error parsing chunk header: %s", err.Error())
		}
		if int64(chunkLen) > remaining || chunkLen < chunkHeaderSize {
			return nil, fmt.Errorf("Chunk 0x%04x has invalid size %d", id, chunkLen)
		}
		remaining -= int64(chunkLen)

		lm := &io.LimitedReader{R: r, N: int64(chunkLen) - chunkHeaderSize}
		switch id {
		case chunkStringPool:
			if res.pool.isEmpty() {
				res.pool, err = parseStringTable(lm)
			}
		case chunkTablePackage:
			var pkg *ParsedPackage
			pkg, err = parsePackage(lm, chunkLen)
			if err == nil {
				res.Packages = append(res.Packages, pkg)
			}
		case chunkTableSymbolTable, chunkTableSourcePool:
			// build tooling metadata, not needed for the runtime view
		default:
			err = fmt.Errorf("Unknown chunk id 0x%04x", id)
		}
		if err != nil {
			return nil, fmt.Errorf("Chunk 0x%04x: %s", id, err.Error())
		}
		if _, err := io.CopyN(ioutil.Discard, lm, lm.N); err != nil {
			return nil, fmt.Errorf("Chunk 0x%04x: error skipping trailer: %s", id, err.Error())
		}
	}

	if uint32(len(res.Packages)) != packageCount {
		return nil, fmt.Errorf("Package count mismatch: header says %d, found %d", packageCount, len(res.Packages))
	}
	return res, nil
}

// parsePackage reads the whole package chunk into memory first: the type
// and key pools live behind header offsets after the type chunks, so the
// decode is not sequential.
func parsePackage(r *io.LimitedReader, chunkLen uint32) (*ParsedPackage, error) {
	if chunkLen < packageHeaderSize {
		return nil, fmt.Errorf("package chunk too small (%d bytes)", chunkLen)
	}
	body := make([]byte, chunkLen)
	binary.LittleEndian.PutUint16(body[0:], chunkTablePackage)
	binary.LittleEndian.PutUint16(body[2:], uint16(packageHeaderSize))
	binary.LittleEndian.PutUint32(body[4:], chunkLen)
	if _, err := io.ReadFull(r, body[chunkHeaderSize:]); err != nil {
		return nil, fmt.Errorf("error reading package body: %s", err.Error())
	}

	pkg := &ParsedPackage{
		ID:   int(binary.LittleEndian.Uint32(body[8:])),
		Name: decodeUTF16Name(body[12 : 12+2*packageNameMaxLen]),
	}

	typeStrings := binary.LittleEndian.Uint32(body[268:])
	keyStrings := binary.LittleEndian.Uint32(body[276:])
	if typeStrings >= chunkLen {
		return nil, fmt.Errorf("type string pool offset 0x%08x out of bounds", typeStrings)
	}
	if keyStrings >= chunkLen {
		return nil, fmt.Errorf("key string pool offset 0x%08x out of bounds", keyStrings)
	}
	if typeStrings != 0 {
		pool, err := parseStringTableWithChunk(bytes.NewReader(body[typeStrings:]))
		if err != nil {
			return nil, fmt.Errorf("error parsing type name pool: %s", err.Error())
		}
		pkg.typeNames = pool
	}
	if keyStrings != 0 {
		pool, err := parseStringTableWithChunk(bytes.NewReader(body[keyStrings:]))
		if err != nil {
			return nil, fmt.Errorf("error parsing key name pool: %s", err.Error())
		}
		pkg.keyNames = pool
	}

	off := uint32(packageHeaderSize)
	for off+chunkHeaderSize <= chunkLen {
		id := binary.LittleEndian.Uint16(body[off:])
		size := binary.LittleEndian.Uint32(body[off+4:])
		if size < chunkHeaderSize || off+size > chunkLen {
			return nil, fmt.Errorf("Chunk 0x%04x at 0x%08x has invalid size %d", id, off, size)
		}
		chunk := body[off : off+size]

		var err error
		switch id {
		case chunkTableTypeSpec:
			err = pkg.parseTypeSpec(chunk)
		case chunkTableType:
			err = pkg.parseType(chunk)
		case chunkTablePublic:
			err = pkg.parsePublic(chunk)
		case chunkTableLibrary:
			err = pkg.parseLibrary(chunk)
		case chunkTableOverlayable:
			err = pkg.parseOverlayable(chunk)
		case chunkTableStagedAlias:
			err = pkg.parseAliases(chunk)
		case chunkStringPool:
			// type/key pool, parsed through the header offsets above
		default:
			err = fmt.Errorf("Unknown chunk id 0x%04x", id)
		}
		if err != nil {
			return nil, fmt.Errorf("Chunk 0x%04x at 0x%08x: %s", id, off, err.Error())
		}
		off += size
	}
	return pkg, nil
}

func (pkg *ParsedPackage) parseTypeSpec(chunk []byte) error {
	if len(chunk) < typeSpecHeaderSize {
		return fmt.Errorf("chunk too small (%d bytes)", len(chunk))
	}
	spec := &ParsedTypeSpec{
		TypeID:      int(chunk[8]),
		ConfigCount: int(binary.LittleEndian.Uint16(chunk[10:])),
	}
	count := binary.LittleEndian.Uint32(chunk[12:])
	if uint32(len(chunk)) < typeSpecHeaderSize+4*count {
		return fmt.Errorf("entry mask array out of bounds (%d entries)", count)
	}
	for i := uint32(0); i < count; i++ {
		spec.Masks = append(spec.Masks, binary.LittleEndian.Uint32(chunk[typeSpecHeaderSize+4*i:]))
	}
	pkg.TypeSpecs = append(pkg.TypeSpecs, spec)
	return nil
}

func (pkg *ParsedPackage) parseType(chunk []byte) error {
	if len(chunk) < typeHeaderSize {
		return fmt.Errorf("chunk too small (%d bytes)", len(chunk))
	}
	headerSize := binary.LittleEndian.Uint16(chunk[2:])
	// The config descriptor sits at offset 20 and carries its own size
	// field, so the header must reach at least 4 bytes past it.
	if int(headerSize) < 24 || int(headerSize) > len(chunk) {
		return fmt.Errorf("invalid type chunk headerSize %d", headerSize)
	}
	tc := &ParsedTypeChunk{
		TypeID: int(chunk[8]),
		Flags:  chunk[9],
	}
	entryCount := binary.LittleEndian.Uint32(chunk[12:])
	entriesStart := binary.LittleEndian.Uint32(chunk[16:])
	tc.EntryCount = int(entryCount)

	config, err := decodeConfig(chunk[20:headerSize])
	if err != nil {
		return fmt.Errorf("error decoding config: %s", err.Error())
	}
	tc.Config = config

	if entriesStart > uint32(len(chunk)) || entriesStart < uint32(headerSize) {
		return fmt.Errorf("entriesStart 0x%08x out of bounds", entriesStart)
	}
	values := chunk[entriesStart:]
	index := chunk[headerSize:entriesStart]

	addEntry := func(id int, off uint32) error {
		entry, err := pkg.parseEntry(values, off)
		if err != nil {
			return fmt.Errorf("entry %d: %s", id, err.Error())
		}
		entry.ID = id
		tc.Entries = append(tc.Entries, entry)
		return nil
	}

	switch {
	case tc.Sparse():
		if uint32(len(index)) < 4*entryCount {
			return fmt.Errorf("sparse index out of bounds (%d entries)", entryCount)
		}
		for i := uint32(0); i < entryCount; i++ {
			id := binary.LittleEndian.Uint16(index[4*i:])
			off := uint32(binary.LittleEndian.Uint16(index[4*i+2:])) * 4
			if err := addEntry(int(id), off); err != nil {
				return err
			}
		}
	case tc.Offset16():
		if uint32(len(index)) < 2*entryCount {
			return fmt.Errorf("offset16 index out of bounds (%d entries)", entryCount)
		}
		for i := uint32(0); i < entryCount; i++ {
			off := binary.LittleEndian.Uint16(index[2*i:])
			if off == noEntry16 {
				continue
			}
			if err := addEntry(int(i), uint32(off)*4); err != nil {
				return err
			}
		}
	default:
		if uint32(len(index)) < 4*entryCount {
			return fmt.Errorf("entry index out of bounds (%d entries)", entryCount)
		}
		for i := uint32(0); i < entryCount; i++ {
			off := binary.LittleEndian.Uint32(index[4*i:])
			if off == noEntry {
				continue
			}
			if err := addEntry(int(i), off); err != nil {
				return err
			}
		}
	}

	pkg.Types = append(pkg.Types, tc)
	return nil
}

func (pkg *ParsedPackage) parseEntry(values []byte, off uint32) (*ParsedEntry, error) {
	if off+entryHeaderSize > uint32(len(values)) {
		return nil, fmt.Errorf("offset 0x%08x out of bounds", off)
	}
	flags := binary.LittleEndian.Uint16(values[off+2:])

	entry := &ParsedEntry{Flags: flags}
	if flags&entryFlagCompact != 0 {
		entry.Compact = true
		key := uint32(binary.LittleEndian.Uint16(values[off:]))
		entry.Value = &ParsedValue{
			DataType: uint8(flags >> 8),
			Data:     binary.LittleEndian.Uint32(values[off+4:]),
		}
		var err error
		if entry.Key, err = pkg.keyNames.get(key); err != nil {
			return nil, err
		}
		return entry, nil
	}

	size := binary.LittleEndian.Uint16(values[off:])
	key := binary.LittleEndian.Uint32(values[off+4:])
	var err error
	if entry.Key, err = pkg.keyNames.get(key); err != nil {
		return nil, err
	}

	if flags&entryFlagComplex != 0 {
		if size != entryExtHeaderSize || off+entryExtHeaderSize > uint32(len(values)) {
			return nil, fmt.Errorf("invalid map entry header size %d", size)
		}
		entry.ParentID = binary.LittleEndian.Uint32(values[off+8:])
		count := binary.LittleEndian.Uint32(values[off+12:])
		pairs := values[off+entryExtHeaderSize:]
		if uint32(len(pairs)) < mapPairSize*count {
			return nil, fmt.Errorf("map pairs out of bounds (%d pairs)", count)
		}
		for i := uint32(0); i < count; i++ {
			p := pairs[mapPairSize*i:]
			entry.Map = append(entry.Map, ParsedMapEntry{
				Name: binary.LittleEndian.Uint32(p),
				Value: ParsedValue{
					DataType: p[7],
					Data:     binary.LittleEndian.Uint32(p[8:]),
				},
			})
		}
		return entry, nil
	}

	if size != entryHeaderSize || off+entryHeaderSize+resValueSize > uint32(len(values)) {
		return nil, fmt.Errorf("invalid entry header size %d", size)
	}
	v := values[off+entryHeaderSize:]
	entry.Value = &ParsedValue{
		DataType: v[3],
		Data:     binary.LittleEndian.Uint32(v[4:]),
	}
	return entry, nil
}

func (pkg *ParsedPackage) parsePublic(chunk []byte) error {
	if len(chunk) < publicHeaderSize {
		return fmt.Errorf("chunk too small (%d bytes)", len(chunk))
	}
	pub := &ParsedPublic{TypeID: int(chunk[8])}
	count := binary.LittleEndian.Uint32(chunk[12:])
	if uint32(len(chunk)) < publicHeaderSize+publicEntrySize*count {
		return fmt.Errorf("public entries out of bounds (%d entries)", count)
	}
	for i := uint32(0); i < count; i++ {
		e := chunk[publicHeaderSize+publicEntrySize*i:]
		key, err := pkg.keyNames.get(binary.LittleEndian.Uint32(e[4:]))
		if err != nil {
			return err
		}
		pub.Entries = append(pub.Entries, ParsedPublicEntry{
			ID:         int(binary.LittleEndian.Uint32(e)),
			Key:        key,
			SourceLine: int(binary.LittleEndian.Uint32(e[12:])),
			State:      binary.LittleEndian.Uint32(e[16:]),
		})
	}
	pkg.Publics = append(pkg.Publics, pub)
	return nil
}

func (pkg *ParsedPackage) parseLibrary(chunk []byte) error {
	if len(chunk) < libraryHeaderSize {
		return fmt.Errorf("chunk too small (%d bytes)", len(chunk))
	}
	count := binary.LittleEndian.Uint32(chunk[8:])
	if uint32(len(chunk)) < libraryHeaderSize+libraryEntrySize*count {
		return fmt.Errorf("library entries out of bounds (%d entries)", count)
	}
	for i := uint32(0); i < count; i++ {
		e := chunk[libraryHeaderSize+libraryEntrySize*i:]
		pkg.Libraries = append(pkg.Libraries, ParsedLibraryEntry{
			ID:   uint8(binary.LittleEndian.Uint32(e)),
			Name: decodeUTF16Name(e[4 : 4+2*packageNameMaxLen]),
		})
	}
	return nil
}

func (pkg *ParsedPackage) parseOverlayable(chunk []byte) error {
	if len(chunk) < overlayableHeaderSize {
		return fmt.Errorf("chunk too small (%d bytes)", len(chunk))
	}
	ov := ParsedOverlayable{
		Name:  decodeUTF16Name(chunk[8 : 8+2*overlayableNameMaxLen]),
		Actor: decodeUTF16Name(chunk[8+2*overlayableNameMaxLen : 8+4*overlayableNameMaxLen]),
	}

	off := uint32(overlayableHeaderSize)
	for off+chunkHeaderSize <= uint32(len(chunk)) {
		id := binary.LittleEndian.Uint16(chunk[off:])
		size := binary.LittleEndian.Uint32(chunk[off+4:])
		if id != chunkTableOverlayablePolicy {
			return fmt.Errorf("unexpected nested chunk 0x%04x", id)
		}
		if size < overlayablePolicyHeaderSize || off+size > uint32(len(chunk)) {
			return fmt.Errorf("policy chunk at 0x%08x has invalid size %d", off, size)
		}
		policy := ParsedPolicy{Flags: binary.LittleEndian.Uint32(chunk[off+8:])}
		count := binary.LittleEndian.Uint32(chunk[off+12:])
		if size < overlayablePolicyHeaderSize+4*count {
			return fmt.Errorf("policy ids out of bounds (%d ids)", count)
		}
		for i := uint32(0); i < count; i++ {
			policy.IDs = append(policy.IDs,
				ResourceID(binary.LittleEndian.Uint32(chunk[off+overlayablePolicyHeaderSize+4*i:])))
		}
		ov.Policies = append(ov.Policies, policy)
		off += size
	}

	pkg.Overlayables = append(pkg.Overlayables, ov)
	return nil
}

func (pkg *ParsedPackage) parseAliases(chunk []byte) error {
	if len(chunk) < stagedAliasHeaderSize {
		return fmt.Errorf("chunk too small (%d bytes)", len(chunk))
	}
	count := binary.LittleEndian.Uint32(chunk[8:])
	if uint32(len(chunk)) < stagedAliasHeaderSize+8*count {
		return fmt.Errorf("alias entries out of bounds (%d entries)", count)
	}
	for i := uint32(0); i < count; i++ {
		e := chunk[stagedAliasHeaderSize+8*i:]
		pkg.Aliases = append(pkg.Aliases, ParsedAlias{
			StagedID:    ResourceID(binary.LittleEndian.Uint32(e)),
			FinalizedID: ResourceID(binary.LittleEndian.Uint32(e[4:])),
		})
	}
	return nil
}

// decodeUTF16Name decodes a fixed size zero terminated UTF-16 name field.
func decodeUTF16Name(b []byte) string {
	var units []uint16
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
