package arscwriter

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// SparseMode controls whether type chunks may use the sparse index
// encoding.
type SparseMode int

const (
	SparseDisabled SparseMode = iota
	SparseEnabled
	SparseForced
)

// Runtimes older than this cannot parse sparse type chunks or compact
// entries. Kept as a named constant so the gate can be confirmed against
// the target runtime rather than re-derived.
const sparseMinSDK = 26

// Default percentage of populated entries below which a sparse index is
// worth its binary-search cost.
const defaultSparseDensityPercent = 25

// Runtimes older than this reject compact entries and 16-bit offset
// indexes outright.
const compactMinSDK = 34

// FlattenOptions are the encoder policy knobs, normally set from upstream
// CLI configuration.
type FlattenOptions struct {
	// Emit public, symbol-table and source-pool chunks consumed by build
	// tooling only.
	UseExtendedChunks bool

	// Share the bytes of identical scalar entries within one values blob.
	DedupEntries bool

	// Allow compact entry headers and 16-bit dense offsets where legal.
	CompactEntries bool

	SparseEntries        SparseMode
	SparseDensityPercent int // 0 means defaultSparseDensityPercent

	// Lowest API level the output must be readable on. 0 means
	// unconstrained.
	MinSDK int

	// Shared libraries register themselves in the dynamic package map and
	// must keep their full package name.
	SharedLib bool

	// Flatten string pools as UTF-16 instead of UTF-8.
	UTF16Pools bool
}

func (o *FlattenOptions) sparseDensityPercent() int {
	if o.SparseDensityPercent == 0 {
		return defaultSparseDensityPercent
	}
	return o.SparseDensityPercent
}

type symbolEntry struct {
	name   string
	offset uint32
}

// FlattenTable serializes the table into the canonical binary chunk
// stream. Diagnostics for validation failures are pushed to diag; the
// first structural error aborts the flatten.
func FlattenTable(table *Table, options FlattenOptions, diag *Diagnostics) ([]byte, error) {
	f := &tableFlattener{table: table, options: &options, diag: diag}
	out, err := f.flatten()
	if err != nil {
		return nil, err
	}
	return out, nil
}

type tableFlattener struct {
	table   *Table
	options *FlattenOptions
	diag    *Diagnostics

	sourcePool *StringPool
}

const tableHeaderSize = chunkHeaderSize + 4

func (f *tableFlattener) flatten() ([]byte, error) {
	if err := f.checkIDsAssigned(); err != nil {
		return nil, err
	}

	packageIDs, err := f.collectPackageIDs()
	if err != nil {
		return nil, err
	}

	if f.options.UseExtendedChunks {
		f.sourcePool = NewStringPool()
	}

	// Sorting clusters related strings for downstream compression and
	// makes identical logical input flatten to identical bytes.
	f.table.Strings.Prune()
	f.table.Strings.Sort()

	buf := &bigBuffer{}
	cw := startChunk(buf, chunkTable, tableHeaderSize)
	cw.setU32(8, uint32(len(f.table.Packages)))

	if err := f.flattenPool(f.table.Strings, buf); err != nil {
		return nil, errors.Wrap(err, "flattening value string pool")
	}

	var symbols []symbolEntry
	for _, pkg := range f.table.Packages {
		pf := &packageFlattener{
			table:      f.table,
			pkg:        pkg,
			options:    f.options,
			diag:       f.diag,
			packageIDs: packageIDs,
			sourcePool: f.sourcePool,
			typePool:   NewStringPool(),
			keyPool:    NewStringPool(),
		}
		pkgBuf := &bigBuffer{}
		if err := pf.flatten(pkgBuf); err != nil {
			return nil, errors.Wrapf(err, "flattening package %q", pkg.Name)
		}

		// Packages are encoded into scratch buffers, so symbol offsets
		// recorded inside them are rebased onto the final stream here.
		base := buf.size()
		for _, sym := range pf.symbols {
			symbols = append(symbols, symbolEntry{name: sym.name, offset: base + sym.offset})
		}
		buf.appendBytes(pkgBuf.bytes())
	}

	if f.options.UseExtendedChunks {
		if err := f.flattenSymbolTable(buf, symbols); err != nil {
			return nil, err
		}
		if err := f.flattenSourcePool(buf); err != nil {
			return nil, err
		}
	}

	cw.finish()
	return buf.bytes(), nil
}

func (f *tableFlattener) flattenPool(pool *StringPool, buf *bigBuffer) error {
	if f.options.UTF16Pools {
		return pool.FlattenUTF16(buf)
	}
	return pool.FlattenUTF8(buf)
}

// checkIDsAssigned enforces the structural precondition that every
// package, type and entry carries a numeric id before flattening.
func (f *tableFlattener) checkIDsAssigned() error {
	for _, pkg := range f.table.Packages {
		if pkg.ID < 0 || pkg.ID > 0xFF {
			return fmt.Errorf("package %q has no ID assigned", pkg.Name)
		}
		for _, typ := range pkg.Types {
			if typ.pseudo() {
				continue
			}
			if typ.ID < 1 || typ.ID > 0xFF {
				return fmt.Errorf("type %s/%s has no ID assigned", pkg.Name, typ.Name)
			}
			for _, entry := range typ.Entries {
				if entry.ID < 0 || entry.ID > 0xFFFF {
					return fmt.Errorf("entry %s/%s/%s has no ID assigned", pkg.Name, typ.Name, entry.Name)
				}
			}
		}
	}
	return nil
}

// collectPackageIDs merges the table's shared-library references with
// self-registrations of packages using unconventional ids, rejecting one id
// claimed under two names.
func (f *tableFlattener) collectPackageIDs() (map[uint8]string, error) {
	ids := make(map[uint8]string, len(f.table.ReferencedPackages))
	for id, name := range f.table.ReferencedPackages {
		ids[id] = name
	}
	// Only applications self-register unconventional ids; shared libraries
	// announce themselves through their own library chunk instead.
	if f.options.SharedLib {
		return ids, nil
	}
	for _, pkg := range f.table.Packages {
		id := uint8(pkg.ID)
		if id == PackageIDFramework || id == PackageIDApp {
			continue
		}
		if existing, ok := ids[id]; ok {
			if existing != pkg.Name {
				f.diag.Errorf(Source{}, "package id 0x%02x already taken by %q, cannot map to %q",
					id, existing, pkg.Name)
				return nil, f.diag.Err()
			}
			continue
		}
		ids[id] = pkg.Name
	}
	return ids, nil
}

const symbolTableHeaderSize = chunkHeaderSize + 4

func (f *tableFlattener) flattenSymbolTable(buf *bigBuffer, symbols []symbolEntry) error {
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].name < symbols[j].name })

	symbolPool := NewStringPool()
	refs := make([]StringRef, len(symbols))
	for i, sym := range symbols {
		refs[i] = symbolPool.MakeRef(sym.name)
	}

	cw := startChunk(buf, chunkTableSymbolTable, symbolTableHeaderSize)
	cw.setU32(8, uint32(len(symbols)))
	entries := cw.nextBlock(len(symbols), 8)
	for i, sym := range symbols {
		buf.setU32(entries+uint32(8*i), refs[i].Index())
		buf.setU32(entries+uint32(8*i+4), sym.offset)
	}
	if err := f.flattenPool(symbolPool, buf); err != nil {
		return errors.Wrap(err, "flattening symbol name pool")
	}
	cw.finish()
	return nil
}

func (f *tableFlattener) flattenSourcePool(buf *bigBuffer) error {
	cw := startChunk(buf, chunkTableSourcePool, chunkHeaderSize)
	if err := f.flattenPool(f.sourcePool, buf); err != nil {
		return errors.Wrap(err, "flattening source path pool")
	}
	cw.finish()
	return nil
}

const packageHeaderSize = chunkHeaderSize + 4 + 2*packageNameMaxLen + 5*4

type packageFlattener struct {
	table      *Table
	pkg        *Package
	options    *FlattenOptions
	diag       *Diagnostics
	packageIDs map[uint8]string
	sourcePool *StringPool

	typePool *StringPool
	keyPool  *StringPool
	symbols  []symbolEntry
}

func (pf *packageFlattener) flatten(buf *bigBuffer) error {
	nameUnits := utf16.Encode([]rune(pf.pkg.Name))
	if len(nameUnits) >= packageNameMaxLen {
		if pf.options.SharedLib || pf.pkg.ID == PackageIDSharedLib {
			pf.diag.Errorf(Source{}, "shared library package name %q is longer than the %d character limit",
				pf.pkg.Name, packageNameMaxLen-1)
			return pf.diag.Err()
		}
		nameUnits = nameUnits[:packageNameMaxLen-1]
	}

	cw := startChunk(buf, chunkTablePackage, packageHeaderSize)
	cw.setU32(8, uint32(pf.pkg.ID))
	for i, u := range nameUnits {
		cw.setU16(uint32(12+2*i), u)
	}

	if err := pf.flattenTypes(buf, cw); err != nil {
		return err
	}
	if err := pf.flattenLibrary(buf); err != nil {
		return err
	}
	if err := pf.flattenOverlayables(buf); err != nil {
		return err
	}
	if err := pf.flattenAliases(buf); err != nil {
		return err
	}

	// Pool indices are only final once every type and key ref has been
	// taken, so the pools flatten last and the header points back at them.
	typeStringsOff := cw.size()
	if err := pf.flattenPool(pf.typePool, buf); err != nil {
		return errors.Wrap(err, "flattening type name pool")
	}
	keyStringsOff := cw.size()
	if err := pf.flattenPool(pf.keyPool, buf); err != nil {
		return errors.Wrap(err, "flattening key name pool")
	}

	cw.setU32(268, typeStringsOff)
	cw.setU32(272, uint32(pf.typePool.Len()))
	cw.setU32(276, keyStringsOff)
	cw.setU32(280, uint32(pf.keyPool.Len()))
	cw.finish()
	return nil
}

func (pf *packageFlattener) flattenPool(pool *StringPool, buf *bigBuffer) error {
	if pf.options.UTF16Pools {
		return pool.FlattenUTF16(buf)
	}
	return pool.FlattenUTF8(buf)
}

// flattenTypes walks the package's real types in ascending id order,
// reserving placeholder names for any gaps so the type pool index equals
// type id minus one.
func (pf *packageFlattener) flattenTypes(buf *bigBuffer, pkg *chunkWriter) error {
	types := lo.Filter(pf.pkg.Types, func(t *Type, _ int) bool { return !t.pseudo() })
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })

	expectedID := 1
	for _, typ := range types {
		for expectedID < typ.ID {
			pf.typePool.MakeRef("?" + strconv.Itoa(expectedID))
			expectedID++
		}
		expectedID++
		pf.typePool.MakeRef(typ.Name)

		entries := sortedEntries(typ)
		if err := pf.flattenTypeSpec(buf, typ, entries); err != nil {
			return err
		}
		if pf.options.UseExtendedChunks {
			pf.flattenPublic(buf, typ, entries)
		}

		for _, config := range distinctConfigs(entries) {
			if err := pf.flattenConfig(buf, pkg, typ, config, entries); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedEntries(typ *Type) []*Entry {
	entries := make([]*Entry, len(typ.Entries))
	copy(entries, typ.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// distinctConfigs returns every configuration any entry of the type has a
// value for, in canonical order.
func distinctConfigs(entries []*Entry) []Config {
	seen := make(map[Config]struct{})
	var configs []Config
	for _, entry := range entries {
		for _, cv := range entry.Values {
			if _, ok := seen[cv.Config]; !ok {
				seen[cv.Config] = struct{}{}
				configs = append(configs, cv.Config)
			}
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Compare(&configs[j]) < 0 })
	return configs
}

func entryCountForType(entries []*Entry) int {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].ID + 1
}

const typeSpecHeaderSize = chunkHeaderSize + 8

// flattenTypeSpec emits the per-entry bitmask array telling the loader
// which configuration axes vary for each resource, plus visibility flags.
func (pf *packageFlattener) flattenTypeSpec(buf *bigBuffer, typ *Type, entries []*Entry) error {
	count := entryCountForType(entries)

	cw := startChunk(buf, chunkTableTypeSpec, typeSpecHeaderSize)
	cw.setU8(8, uint8(typ.ID))
	cw.setU16(10, uint16(len(distinctConfigs(entries))))
	cw.setU32(12, uint32(count))

	masks := cw.nextBlock(count, 4)
	for _, entry := range entries {
		var mask uint32
		if entry.Visibility == VisibilityPublic {
			mask |= specFlagPublic
		}
		if entry.StagedAPI {
			mask |= specFlagStagedApi | specFlagPublic
		}
		// Quadratic in configs per entry, which stays small in practice.
		for i := 0; i < len(entry.Values); i++ {
			for j := i + 1; j < len(entry.Values); j++ {
				mask |= entry.Values[i].Config.Diff(&entry.Values[j].Config)
			}
		}
		buf.setU32(masks+uint32(4*entry.ID), mask)
	}
	cw.finish()
	return nil
}

const publicHeaderSize = chunkHeaderSize + 8
const publicEntrySize = 20

// flattenPublic lists every entry with a declared visibility state, for
// build tooling that needs the public API surface without the sources.
func (pf *packageFlattener) flattenPublic(buf *bigBuffer, typ *Type, entries []*Entry) {
	declared := lo.Filter(entries, func(e *Entry, _ int) bool { return e.Visibility != VisibilityUndefined })
	if len(declared) == 0 {
		return
	}

	cw := startChunk(buf, chunkTablePublic, publicHeaderSize)
	cw.setU8(8, uint8(typ.ID))
	cw.setU32(12, uint32(len(declared)))
	block := cw.nextBlock(len(declared), publicEntrySize)
	for i, entry := range declared {
		off := block + uint32(publicEntrySize*i)
		buf.setU32(off, uint32(entry.ID))
		buf.setU32(off+4, pf.keyPool.MakeRef(entry.Name).Index())
		buf.setU32(off+8, pf.sourcePool.MakeRef(entry.Source.Path).Index())
		buf.setU32(off+12, uint32(entry.Source.Line))
		buf.setU32(off+16, uint32(entry.Visibility))
	}
	cw.finish()
}

const typeHeaderSize = chunkHeaderSize + 12 + configSize

// flattenConfig emits one type chunk: the entry index for one
// configuration plus the values blob it points into.
func (pf *packageFlattener) flattenConfig(buf *bigBuffer, pkg *chunkWriter, typ *Type, config Config, entries []*Entry) error {
	count := entryCountForType(entries)

	populated := make([]*Entry, 0, len(entries))
	values := make([]*ConfigValue, 0, len(entries))
	for _, entry := range entries {
		cv := entry.FindValue(config)
		if cv == nil {
			// Product selection happens before flattening, so a config
			// served only by non-default products is a caller bug, not
			// something to drop quietly.
			if entry.HasValue(config) {
				pf.diag.Errorf(entry.Source, "entry %s/%s has no value for the default product in config %s",
					typ.Name, entry.Name, config.String())
				return pf.diag.Err()
			}
			continue
		}
		populated = append(populated, entry)
		values = append(values, cv)
	}
	if len(populated) == 0 {
		return nil
	}

	// Compact entries are only legal on a runtime that understands them
	// and when every key index of the batch fits in 16 bits.
	keyRefs := make([]uint32, len(populated))
	compact := pf.options.CompactEntries && pf.runtimeAtLeast(config, compactMinSDK)
	for i, entry := range populated {
		keyRefs[i] = pf.keyPool.MakeRef(entry.Name).Index()
		if keyRefs[i] > 0xFFFF {
			compact = false
		}
	}
	blob := &bigBuffer{}
	ew := newEntryWriter(blob, compact, pf.options.DedupEntries)
	offsets := make([]uint32, len(populated))
	var maxOffset uint32
	for i, entry := range populated {
		off, err := ew.write(flatEntry{entry: entry, value: values[i].Value, keyIndex: keyRefs[i]})
		if err != nil {
			pf.diag.Errorf(entry.Source, "%s/%s: %s", typ.Name, config.String(), err.Error())
			return pf.diag.Err()
		}
		offsets[i] = off
		if off > maxOffset {
			maxOffset = off
		}
	}

	useSparse := pf.shouldSparse(config, len(populated), count, maxOffset)
	offset16 := !useSparse && compact && maxOffset/4 < noEntry16

	cw := startChunk(buf, chunkTableType, typeHeaderSize)
	cw.setU8(8, uint8(typ.ID))
	var flags uint8
	if useSparse {
		flags |= typeFlagSparse
	}
	if offset16 {
		flags |= typeFlagOffset16
	}
	cw.setU8(9, flags)
	cfg := config.encode()
	for i, b := range cfg {
		cw.setU8(uint32(20+i), b)
	}

	switch {
	case useSparse:
		cw.setU32(12, uint32(len(populated)))
		block := cw.nextBlock(len(populated), 4)
		for i, entry := range populated {
			buf.setU16(block+uint32(4*i), uint16(entry.ID))
			buf.setU16(block+uint32(4*i+2), uint16(offsets[i]/4))
		}
	case offset16:
		cw.setU32(12, uint32(count))
		block := cw.nextBlock(count, 2)
		for i := 0; i < count; i++ {
			buf.setU16(block+uint32(2*i), noEntry16)
		}
		for i, entry := range populated {
			buf.setU16(block+uint32(2*entry.ID), uint16(offsets[i]/4))
		}
	default:
		cw.setU32(12, uint32(count))
		block := cw.nextBlock(count, 4)
		for i := 0; i < count; i++ {
			buf.setU32(block+uint32(4*i), noEntry)
		}
		for i, entry := range populated {
			buf.setU32(block+uint32(4*entry.ID), offsets[i])
		}
	}

	buf.align4()
	entriesStart := cw.size()
	cw.setU32(16, entriesStart)
	buf.appendBytes(blob.bytes())

	if pf.options.UseExtendedChunks {
		// Record where each public entry's data landed relative to the
		// package chunk, for the symbol table.
		typeChunkStart := cw.start - pkg.start
		for i, entry := range populated {
			if entry.Visibility != VisibilityPublic {
				continue
			}
			pf.symbols = append(pf.symbols, symbolEntry{
				name:   fmt.Sprintf("%s:%s/%s", pf.pkg.Name, typ.Name, entry.Name),
				offset: typeChunkStart + entriesStart + offsets[i],
			})
		}
	}

	cw.finish()
	return nil
}

// shouldSparse applies the sparse-eligibility policy: explicit forcing, or
// a density low enough to pay for binary search on a runtime new enough to
// parse the encoding. Offsets must survive the 16-bit /4 scaling either
// way.
func (pf *packageFlattener) shouldSparse(config Config, populated, total int, maxOffset uint32) bool {
	if pf.options.SparseEntries == SparseDisabled || total == 0 {
		return false
	}
	if maxOffset/4 > noEntry16 {
		return false
	}
	if pf.options.SparseEntries == SparseForced {
		return true
	}
	if !pf.runtimeAtLeast(config, sparseMinSDK) {
		return false
	}
	return populated*100 < pf.options.sparseDensityPercent()*total
}

// runtimeAtLeast reports whether output for this configuration may use
// encodings introduced at the given API level. An unconstrained table
// (no minimum SDK, default-version config) gets the modern encodings.
func (pf *packageFlattener) runtimeAtLeast(config Config, sdk int) bool {
	return pf.options.MinSDK >= sdk ||
		int(config.SDKVersion) >= sdk ||
		(pf.options.MinSDK == 0 && config.SDKVersion == 0)
}

const libraryHeaderSize = chunkHeaderSize + 4
const libraryEntrySize = 4 + 2*packageNameMaxLen

// flattenLibrary emits the package-id to name map that lets the runtime
// remap shared-library ids at load time. Emitted when this package needs
// self-registration (id 0x00) or the table references shared libraries.
func (pf *packageFlattener) flattenLibrary(buf *bigBuffer) error {
	type libEntry struct {
		id   uint8
		name string
	}
	var libs []libEntry
	if pf.pkg.ID == PackageIDSharedLib {
		libs = append(libs, libEntry{id: PackageIDSharedLib, name: pf.pkg.Name})
	}
	ids := lo.Keys(pf.packageIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if int(id) == pf.pkg.ID {
			continue
		}
		libs = append(libs, libEntry{id: id, name: pf.packageIDs[id]})
	}
	if len(libs) == 0 {
		return nil
	}

	cw := startChunk(buf, chunkTableLibrary, libraryHeaderSize)
	cw.setU32(8, uint32(len(libs)))
	for _, lib := range libs {
		units := utf16.Encode([]rune(lib.name))
		if len(units) >= packageNameMaxLen {
			pf.diag.Errorf(Source{}, "shared library name %q is longer than the %d character limit",
				lib.name, packageNameMaxLen-1)
			return pf.diag.Err()
		}
		off := buf.grow(libraryEntrySize)
		buf.setU32(off, uint32(lib.id))
		for i, u := range units {
			buf.setU16(off+uint32(4+2*i), u)
		}
	}
	cw.finish()
	return nil
}

const overlayableHeaderSize = chunkHeaderSize + 2*overlayableNameMaxLen + 2*overlayableNameMaxLen
const overlayablePolicyHeaderSize = chunkHeaderSize + 8

// flattenOverlayables groups the package's overlayable entries by group
// name, then by exact policy bitmask, and emits one overlayable chunk per
// group holding one policy block per mask.
func (pf *packageFlattener) flattenOverlayables(buf *bigBuffer) error {
	type member struct {
		item *OverlayableItem
		id   ResourceID
	}
	byName := make(map[string][]member)
	group := make(map[string]Overlayable)
	var names []string

	for _, typ := range pf.pkg.Types {
		if typ.pseudo() {
			continue
		}
		for _, entry := range typ.Entries {
			item := entry.Overlayable
			if item == nil {
				continue
			}
			ov := pf.table.Overlayables[item.Overlayable]
			if prev, ok := group[ov.Name]; ok {
				if prev.Actor != ov.Actor || prev.Source != ov.Source {
					pf.diag.Errorf(ov.Source, "overlayable %q conflicts with a previous declaration (%s, actor %q)",
						ov.Name, prev.Source.String(), prev.Actor)
					return pf.diag.Err()
				}
			} else {
				group[ov.Name] = ov
				names = append(names, ov.Name)
			}
			if item.Policies == 0 {
				pf.diag.Errorf(item.Source, "overlayable entry %q has no policies", entry.Name)
				return pf.diag.Err()
			}
			byName[ov.Name] = append(byName[ov.Name], member{
				item: item,
				id:   MakeResourceID(uint8(pf.pkg.ID), uint8(typ.ID), uint16(entry.ID)),
			})
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ov := group[name]
		nameUnits := utf16.Encode([]rune(ov.Name))
		actorUnits := utf16.Encode([]rune(ov.Actor))
		if len(nameUnits) >= overlayableNameMaxLen {
			pf.diag.Errorf(ov.Source, "overlayable name %q is longer than the %d character limit",
				ov.Name, overlayableNameMaxLen-1)
			return pf.diag.Err()
		}
		if len(actorUnits) >= overlayableNameMaxLen {
			pf.diag.Errorf(ov.Source, "overlayable actor %q is longer than the %d character limit",
				ov.Actor, overlayableNameMaxLen-1)
			return pf.diag.Err()
		}

		cw := startChunk(buf, chunkTableOverlayable, overlayableHeaderSize)
		for i, u := range nameUnits {
			cw.setU16(uint32(8+2*i), u)
		}
		for i, u := range actorUnits {
			cw.setU16(uint32(8+2*overlayableNameMaxLen+2*i), u)
		}

		byPolicy := lo.GroupBy(byName[name], func(m member) uint32 { return m.item.Policies })
		masks := lo.Keys(byPolicy)
		sort.Slice(masks, func(i, j int) bool { return masks[i] < masks[j] })

		for _, mask := range masks {
			members := byPolicy[mask]
			ids := lo.Map(members, func(m member, _ int) ResourceID { return m.id })
			ids = lo.Uniq(ids)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			pw := startChunk(buf, chunkTableOverlayablePolicy, overlayablePolicyHeaderSize)
			pw.setU32(8, mask)
			pw.setU32(12, uint32(len(ids)))
			block := pw.nextBlock(len(ids), 4)
			for i, id := range ids {
				buf.setU32(block+uint32(4*i), uint32(id))
			}
			pw.finish()
		}
		cw.finish()
	}
	return nil
}

const stagedAliasHeaderSize = chunkHeaderSize + 4

// flattenAliases maps staged (pre-finalization) resource ids to the ids
// this table actually assigned.
func (pf *packageFlattener) flattenAliases(buf *bigBuffer) error {
	type alias struct {
		staged    ResourceID
		finalized ResourceID
	}
	var aliases []alias
	for _, typ := range pf.pkg.Types {
		if typ.pseudo() {
			continue
		}
		for _, entry := range typ.Entries {
			if entry.StagedID == 0 {
				continue
			}
			aliases = append(aliases, alias{
				staged:    entry.StagedID,
				finalized: MakeResourceID(uint8(pf.pkg.ID), uint8(typ.ID), uint16(entry.ID)),
			})
		}
	}
	if len(aliases) == 0 {
		return nil
	}
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].staged < aliases[j].staged })

	cw := startChunk(buf, chunkTableStagedAlias, stagedAliasHeaderSize)
	cw.setU32(8, uint32(len(aliases)))
	block := cw.nextBlock(len(aliases), 8)
	for i, a := range aliases {
		buf.setU32(block+uint32(8*i), uint32(a.staged))
		buf.setU32(block+uint32(8*i+4), uint32(a.finalized))
	}
	cw.finish()
	return nil
}
