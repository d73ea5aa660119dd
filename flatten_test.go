package arscwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPackage() (*Table, *Package) {
	table := NewTable()
	pkg := table.FindOrCreatePackage("com.example.app")
	pkg.ID = PackageIDApp
	return table, pkg
}

func addEntry(t *testing.T, typ *Type, name string, id int, config Config, v Value) *Entry {
	t.Helper()
	entry := typ.FindOrCreateEntry(name)
	entry.ID = id
	require.NoError(t, entry.AddValue(config, "", v))
	return entry
}

func flattenOK(t *testing.T, table *Table, opts FlattenOptions) (*ParsedTable, []byte) {
	t.Helper()
	var diag Diagnostics
	out, err := FlattenTable(table, opts, &diag)
	require.NoError(t, err)
	require.False(t, diag.HasErrors())
	parsed, err := ParseTable(bytes.NewReader(out))
	require.NoError(t, err)
	return parsed, out
}

func flattenFail(t *testing.T, table *Table, opts FlattenOptions) error {
	t.Helper()
	var diag Diagnostics
	_, err := FlattenTable(table, opts, &diag)
	require.Error(t, err)
	return err
}

func landConfig() Config {
	return Config{Orientation: 2}
}

func TestFlattenRoundTrip(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "app_name", 0, Config{}, &String{Ref: table.Strings.MakeRef("Example")})
	subtitle := addEntry(t, strs, "subtitle", 1, Config{}, &String{Ref: table.Strings.MakeRef("Hello")})
	require.NoError(t, subtitle.AddValue(Config{Language: [2]byte{'d', 'e'}}, "", &String{Ref: table.Strings.MakeRef("Hallo")}))

	ints := pkg.FindOrCreateType("integer")
	ints.ID = 2
	addEntry(t, ints, "max_count", 0, Config{}, &BinaryPrimitive{DataType: DataTypeIntDec, Data: 42})

	parsed, _ := flattenOK(t, table, FlattenOptions{})

	ppkg := parsed.FindPackage(PackageIDApp)
	require.NotNil(t, ppkg)
	assert.Equal(t, "com.example.app", ppkg.Name)

	name, err := ppkg.TypeName(1)
	require.NoError(t, err)
	assert.Equal(t, "string", name)

	def := ppkg.FindType(1, Config{})
	require.NotNil(t, def)
	assert.Equal(t, 2, def.EntryCount)
	require.Len(t, def.Entries, 2)

	appName := def.FindEntry(0)
	require.NotNil(t, appName)
	assert.Equal(t, "app_name", appName.Key)
	require.NotNil(t, appName.Value)
	assert.EqualValues(t, DataTypeString, appName.Value.DataType)
	s, err := parsed.GetString(appName.Value.Data)
	require.NoError(t, err)
	assert.Equal(t, "Example", s)

	de := ppkg.FindType(1, Config{Language: [2]byte{'d', 'e'}})
	require.NotNil(t, de)
	require.Len(t, de.Entries, 1)
	s, err = parsed.GetString(de.FindEntry(1).Value.Data)
	require.NoError(t, err)
	assert.Equal(t, "Hallo", s)

	count := parsed.FindPackage(PackageIDApp).FindType(2, Config{})
	require.NotNil(t, count)
	assert.EqualValues(t, 42, count.FindEntry(0).Value.Data)
}

func TestFlattenDeterministic(t *testing.T) {
	build := func() *Table {
		table, pkg := newTestPackage()
		strs := pkg.FindOrCreateType("string")
		strs.ID = 1
		addEntry(t, strs, "zebra", 0, Config{}, &String{Ref: table.Strings.MakeRef("zzz")})
		addEntry(t, strs, "alpha", 1, Config{}, &String{Ref: table.Strings.MakeRef("aaa")})
		addEntry(t, strs, "mixed", 2, landConfig(), &String{Ref: table.Strings.MakeRef("mmm")})
		return table
	}

	_, first := flattenOK(t, build(), FlattenOptions{})
	_, second := flattenOK(t, build(), FlattenOptions{})
	assert.Equal(t, first, second)
}

func TestFlattenUTF16Pools(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "greeting", 0, Config{}, &String{Ref: table.Strings.MakeRef("äöü")})

	parsed, _ := flattenOK(t, table, FlattenOptions{UTF16Pools: true})
	e := parsed.FindPackage(PackageIDApp).FindType(1, Config{}).FindEntry(0)
	require.NotNil(t, e)
	s, err := parsed.GetString(e.Value.Data)
	require.NoError(t, err)
	assert.Equal(t, "äöü", s)
}

func TestFlattenSparseForced(t *testing.T) {
	table, pkg := newTestPackage()
	ids := pkg.FindOrCreateType("id")
	ids.ID = 1
	addEntry(t, ids, "first", 0, Config{}, &ID{})
	addEntry(t, ids, "last", 50, Config{}, &ID{})

	parsed, _ := flattenOK(t, table, FlattenOptions{SparseEntries: SparseForced})
	tc := parsed.FindPackage(PackageIDApp).FindType(1, Config{})
	require.NotNil(t, tc)
	assert.True(t, tc.Sparse())
	assert.Equal(t, 2, tc.EntryCount)
	assert.NotNil(t, tc.FindEntry(0))
	assert.NotNil(t, tc.FindEntry(50))
	assert.Nil(t, tc.FindEntry(10))
}

func TestFlattenSparseDenseEquivalence(t *testing.T) {
	build := func() *Table {
		table, pkg := newTestPackage()
		dims := pkg.FindOrCreateType("dimen")
		dims.ID = 1
		addEntry(t, dims, "small", 3, Config{}, &BinaryPrimitive{DataType: DataTypeIntDec, Data: 8})
		addEntry(t, dims, "large", 90, Config{}, &BinaryPrimitive{DataType: DataTypeIntDec, Data: 64})
		return table
	}

	dense, _ := flattenOK(t, build(), FlattenOptions{})
	sparse, _ := flattenOK(t, build(), FlattenOptions{SparseEntries: SparseForced})

	dt := dense.FindPackage(PackageIDApp).FindType(1, Config{})
	st := sparse.FindPackage(PackageIDApp).FindType(1, Config{})
	require.NotNil(t, dt)
	require.NotNil(t, st)
	assert.False(t, dt.Sparse())
	assert.True(t, st.Sparse())
	assert.Equal(t, 91, dt.EntryCount)

	for id := 0; id <= 90; id++ {
		de, se := dt.FindEntry(id), st.FindEntry(id)
		if de == nil {
			assert.Nil(t, se, "entry %d", id)
			continue
		}
		require.NotNil(t, se, "entry %d", id)
		assert.Equal(t, de.Key, se.Key)
		assert.Equal(t, de.Value.Data, se.Value.Data)
	}
}

func TestFlattenSparseDensityPolicy(t *testing.T) {
	build := func(populated int) *Table {
		table, pkg := newTestPackage()
		ids := pkg.FindOrCreateType("id")
		ids.ID = 1
		for i := 0; i < populated-1; i++ {
			addEntry(t, ids, fmt.Sprintf("slot%d", i), i, Config{}, &ID{})
		}
		addEntry(t, ids, "tail", 99, Config{}, &ID{})
		return table
	}

	// 2 of 100 populated, new enough runtime: sparse pays off.
	parsed, _ := flattenOK(t, build(2), FlattenOptions{SparseEntries: SparseEnabled, MinSDK: 26})
	assert.True(t, parsed.FindPackage(PackageIDApp).FindType(1, Config{}).Sparse())

	// Same table on an old runtime stays dense.
	parsed, _ = flattenOK(t, build(2), FlattenOptions{SparseEntries: SparseEnabled, MinSDK: 21})
	assert.False(t, parsed.FindPackage(PackageIDApp).FindType(1, Config{}).Sparse())

	// At exactly the density threshold the dense index wins.
	parsed, _ = flattenOK(t, build(25), FlattenOptions{SparseEntries: SparseEnabled, MinSDK: 26})
	assert.False(t, parsed.FindPackage(PackageIDApp).FindType(1, Config{}).Sparse())
}

func TestFlattenCompactEntries(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "a", 0, Config{}, &String{Ref: table.Strings.MakeRef("one")})
	addEntry(t, strs, "b", 1, Config{}, &String{Ref: table.Strings.MakeRef("two")})

	parsed, compactOut := flattenOK(t, table, FlattenOptions{CompactEntries: true})
	tc := parsed.FindPackage(PackageIDApp).FindType(1, Config{})
	require.NotNil(t, tc)
	assert.True(t, tc.Offset16())
	for _, e := range tc.Entries {
		assert.True(t, e.Compact)
		assert.EqualValues(t, DataTypeString, e.Value.DataType)
	}

	_, fullOut := flattenOK(t, table, FlattenOptions{})
	assert.Less(t, len(compactOut), len(fullOut))

	// Runtimes predating the compact layout get full entries even when
	// compaction is requested.
	parsed, _ = flattenOK(t, table, FlattenOptions{CompactEntries: true, MinSDK: 21})
	tc = parsed.FindPackage(PackageIDApp).FindType(1, Config{})
	require.NotNil(t, tc)
	assert.False(t, tc.Offset16())
	for _, e := range tc.Entries {
		assert.False(t, e.Compact)
	}

	parsed, _ = flattenOK(t, table, FlattenOptions{CompactEntries: true, MinSDK: compactMinSDK})
	for _, e := range parsed.FindPackage(PackageIDApp).FindType(1, Config{}).Entries {
		assert.True(t, e.Compact)
	}
}

func TestFlattenTypeGapPlaceholder(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "a", 0, Config{}, &String{Ref: table.Strings.MakeRef("x")})
	layouts := pkg.FindOrCreateType("layout")
	layouts.ID = 3
	addEntry(t, layouts, "main", 0, Config{}, &BinaryPrimitive{DataType: DataTypeIntDec, Data: 0})

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	ppkg := parsed.FindPackage(PackageIDApp)
	require.NotNil(t, ppkg)

	name, err := ppkg.TypeName(2)
	require.NoError(t, err)
	assert.Equal(t, "?2", name)

	name, err = ppkg.TypeName(3)
	require.NoError(t, err)
	assert.Equal(t, "layout", name)

	spec := ppkg.FindTypeSpec(3)
	require.NotNil(t, spec)
	assert.Equal(t, 3, spec.TypeID)
}

func TestFlattenTypeSpecMasks(t *testing.T) {
	table, pkg := newTestPackage()
	drawables := pkg.FindOrCreateType("drawable")
	drawables.ID = 1
	icon := addEntry(t, drawables, "icon", 0, Config{},
		&BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 0xFFAABBCC})
	require.NoError(t, icon.AddValue(landConfig(), "",
		&BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 0xFFAABBCC}))

	exported := addEntry(t, drawables, "logo", 1, Config{},
		&BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 0xFF000000})
	exported.Visibility = VisibilityPublic

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	spec := parsed.FindPackage(PackageIDApp).FindTypeSpec(1)
	require.NotNil(t, spec)
	require.Len(t, spec.Masks, 2)
	assert.Equal(t, uint32(ConfigOrientation), spec.Masks[0])
	assert.Equal(t, uint32(specFlagPublic), spec.Masks[1])
	assert.Equal(t, 2, spec.ConfigCount)
}

func TestFlattenAttribute(t *testing.T) {
	table, pkg := newTestPackage()
	attrs := pkg.FindOrCreateType("attr")
	attrs.ID = 1
	addEntry(t, attrs, "weight", 0, Config{}, &Attribute{
		TypeMask: AttrTypeInteger,
		MinInt:   0,
		MaxInt:   100,
		HasMin:   true,
		HasMax:   true,
	})

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	e := parsed.FindPackage(PackageIDApp).FindType(1, Config{}).FindEntry(0)
	require.NotNil(t, e)
	assert.Nil(t, e.Value)
	require.Len(t, e.Map, 3)
	assert.EqualValues(t, mapAttrType, e.Map[0].Name)
	assert.EqualValues(t, AttrTypeInteger, e.Map[0].Value.Data)
	assert.EqualValues(t, mapAttrMin, e.Map[1].Name)
	assert.EqualValues(t, 0, e.Map[1].Value.Data)
	assert.EqualValues(t, mapAttrMax, e.Map[2].Name)
	assert.EqualValues(t, 100, e.Map[2].Value.Data)
}

func TestFlattenStyleSortsEntries(t *testing.T) {
	table, pkg := newTestPackage()
	styles := pkg.FindOrCreateType("style")
	styles.ID = 1
	parent := &Reference{ID: 0x01030005}
	addEntry(t, styles, "AppTheme", 0, Config{}, &Style{
		Parent: parent,
		Entries: []StyleEntry{
			{Key: Reference{ID: 0x7f010002}, Value: &BinaryPrimitive{DataType: DataTypeIntDec, Data: 2}},
			{Key: Reference{ID: 0x7f010000}, Value: &BinaryPrimitive{DataType: DataTypeIntDec, Data: 0}},
			{Key: Reference{ID: 0x7f010001}, Value: &BinaryPrimitive{DataType: DataTypeIntDec, Data: 1}},
		},
	})

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	e := parsed.FindPackage(PackageIDApp).FindType(1, Config{}).FindEntry(0)
	require.NotNil(t, e)
	assert.EqualValues(t, 0x01030005, e.ParentID)
	require.Len(t, e.Map, 3)
	for i, want := range []uint32{0x7f010000, 0x7f010001, 0x7f010002} {
		assert.Equal(t, want, e.Map[i].Name)
		assert.EqualValues(t, i, e.Map[i].Value.Data)
	}
}

func TestFlattenStyleParentWithoutID(t *testing.T) {
	table, pkg := newTestPackage()
	styles := pkg.FindOrCreateType("style")
	styles.ID = 1
	addEntry(t, styles, "Broken", 0, Config{}, &Style{
		Parent: &Reference{Name: "Theme.Unresolved"},
	})

	err := flattenFail(t, table, FlattenOptions{})
	assert.Contains(t, err.Error(), "parent of style has no ID")
}

func TestFlattenArrayAndPlural(t *testing.T) {
	table, pkg := newTestPackage()
	arrays := pkg.FindOrCreateType("array")
	arrays.ID = 1
	addEntry(t, arrays, "sizes", 0, Config{}, &Array{Items: []Item{
		&BinaryPrimitive{DataType: DataTypeIntDec, Data: 10},
		&BinaryPrimitive{DataType: DataTypeIntDec, Data: 20},
		&BinaryPrimitive{DataType: DataTypeIntDec, Data: 30},
	}})

	plurals := pkg.FindOrCreateType("plurals")
	plurals.ID = 2
	var p Plural
	p.Values[PluralOne] = &String{Ref: table.Strings.MakeRef("one item")}
	p.Values[PluralOther] = &String{Ref: table.Strings.MakeRef("many items")}
	addEntry(t, plurals, "items", 0, Config{}, &p)

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	ppkg := parsed.FindPackage(PackageIDApp)

	arr := ppkg.FindType(1, Config{}).FindEntry(0)
	require.NotNil(t, arr)
	require.Len(t, arr.Map, 3)
	for i, want := range []uint32{10, 20, 30} {
		assert.EqualValues(t, mapAttrMin+uint32(i), arr.Map[i].Name)
		assert.Equal(t, want, arr.Map[i].Value.Data)
	}

	pl := ppkg.FindType(2, Config{}).FindEntry(0)
	require.NotNil(t, pl)
	require.Len(t, pl.Map, 2)
	assert.EqualValues(t, mapAttrOne, pl.Map[0].Name)
	assert.EqualValues(t, mapAttrOther, pl.Map[1].Name)
}

func TestFlattenOverlayables(t *testing.T) {
	table, pkg := newTestPackage()
	theme := table.AddOverlayable(Overlayable{Name: "theme", Actor: "overlay://theme"})

	colors := pkg.FindOrCreateType("color")
	colors.ID = 1
	a := addEntry(t, colors, "primary", 0, Config{}, &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 1})
	a.Overlayable = &OverlayableItem{Overlayable: theme, Policies: PolicySystem}
	b := addEntry(t, colors, "accent", 1, Config{}, &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 2})
	b.Overlayable = &OverlayableItem{Overlayable: theme, Policies: PolicyVendor}

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	ovs := parsed.FindPackage(PackageIDApp).Overlayables
	require.Len(t, ovs, 1)
	assert.Equal(t, "theme", ovs[0].Name)
	assert.Equal(t, "overlay://theme", ovs[0].Actor)
	require.Len(t, ovs[0].Policies, 2)
	assert.EqualValues(t, PolicySystem, ovs[0].Policies[0].Flags)
	assert.Equal(t, []ResourceID{MakeResourceID(PackageIDApp, 1, 0)}, ovs[0].Policies[0].IDs)
	assert.EqualValues(t, PolicyVendor, ovs[0].Policies[1].Flags)
	assert.Equal(t, []ResourceID{MakeResourceID(PackageIDApp, 1, 1)}, ovs[0].Policies[1].IDs)
}

func TestFlattenOverlayableActorConflict(t *testing.T) {
	table, pkg := newTestPackage()
	first := table.AddOverlayable(Overlayable{Name: "theme", Actor: "overlay://theme"})
	second := table.AddOverlayable(Overlayable{Name: "theme", Actor: "overlay://other"})

	colors := pkg.FindOrCreateType("color")
	colors.ID = 1
	a := addEntry(t, colors, "primary", 0, Config{}, &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 1})
	a.Overlayable = &OverlayableItem{Overlayable: first, Policies: PolicySystem}
	b := addEntry(t, colors, "accent", 1, Config{}, &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 2})
	b.Overlayable = &OverlayableItem{Overlayable: second, Policies: PolicyVendor}

	err := flattenFail(t, table, FlattenOptions{})
	assert.Contains(t, err.Error(), "conflicts")
}

func TestFlattenOverlayableWithoutPolicy(t *testing.T) {
	table, pkg := newTestPackage()
	theme := table.AddOverlayable(Overlayable{Name: "theme", Actor: "overlay://theme"})

	colors := pkg.FindOrCreateType("color")
	colors.ID = 1
	a := addEntry(t, colors, "primary", 0, Config{}, &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 1})
	a.Overlayable = &OverlayableItem{Overlayable: theme}

	err := flattenFail(t, table, FlattenOptions{})
	assert.Contains(t, err.Error(), "no policies")
}

func TestFlattenStagedAliases(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	a := addEntry(t, strs, "newer", 0, Config{}, &String{Ref: table.Strings.MakeRef("x")})
	a.StagedID = MakeResourceID(PackageIDApp, 1, 0x200)
	b := addEntry(t, strs, "older", 1, Config{}, &String{Ref: table.Strings.MakeRef("y")})
	b.StagedID = MakeResourceID(PackageIDApp, 1, 0x100)

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	aliases := parsed.FindPackage(PackageIDApp).Aliases
	require.Len(t, aliases, 2)
	assert.Equal(t, MakeResourceID(PackageIDApp, 1, 0x100), aliases[0].StagedID)
	assert.Equal(t, MakeResourceID(PackageIDApp, 1, 1), aliases[0].FinalizedID)
	assert.Equal(t, MakeResourceID(PackageIDApp, 1, 0x200), aliases[1].StagedID)
	assert.Equal(t, MakeResourceID(PackageIDApp, 1, 0), aliases[1].FinalizedID)
}

func TestFlattenSharedLibrary(t *testing.T) {
	table := NewTable()
	pkg := table.FindOrCreatePackage("com.example.lib")
	pkg.ID = PackageIDSharedLib
	table.ReferencedPackages[0x02] = "com.example.other"

	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "name", 0, Config{}, &String{Ref: table.Strings.MakeRef("lib")})

	parsed, _ := flattenOK(t, table, FlattenOptions{SharedLib: true})
	libs := parsed.FindPackage(PackageIDSharedLib).Libraries
	require.Len(t, libs, 2)
	assert.EqualValues(t, PackageIDSharedLib, libs[0].ID)
	assert.Equal(t, "com.example.lib", libs[0].Name)
	assert.EqualValues(t, 0x02, libs[1].ID)
	assert.Equal(t, "com.example.other", libs[1].Name)
}

func TestFlattenPackageIDConflict(t *testing.T) {
	table := NewTable()
	table.ReferencedPackages[0x02] = "com.example.first"
	pkg := table.FindOrCreatePackage("com.example.second")
	pkg.ID = 0x02

	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "name", 0, Config{}, &String{Ref: table.Strings.MakeRef("x")})

	err := flattenFail(t, table, FlattenOptions{})
	assert.Contains(t, err.Error(), "already taken")
}

func TestFlattenUnassignedIDs(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	entry := strs.FindOrCreateEntry("floating")
	require.NoError(t, entry.AddValue(Config{}, "", &String{Ref: table.Strings.MakeRef("x")}))

	err := flattenFail(t, table, FlattenOptions{})
	assert.Contains(t, err.Error(), "no ID assigned")
}

func TestFlattenLongPackageName(t *testing.T) {
	long := make([]byte, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, byte('a'+i%26))
	}

	build := func() *Table {
		table := NewTable()
		pkg := table.FindOrCreatePackage(string(long))
		pkg.ID = PackageIDApp
		strs := pkg.FindOrCreateType("string")
		strs.ID = 1
		addEntry(t, strs, "name", 0, Config{}, &String{Ref: table.Strings.MakeRef("x")})
		return table
	}

	parsed, _ := flattenOK(t, build(), FlattenOptions{})
	assert.Equal(t, string(long[:packageNameMaxLen-1]), parsed.Packages[0].Name)

	err := flattenFail(t, build(), FlattenOptions{SharedLib: true})
	assert.Contains(t, err.Error(), "character limit")
}

func TestFlattenExtendedChunks(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	entry := addEntry(t, strs, "app_name", 0, Config{}, &String{Ref: table.Strings.MakeRef("Example")})
	entry.Visibility = VisibilityPublic
	entry.Source = Source{Path: "res/values/strings.xml", Line: 12}

	parsed, _ := flattenOK(t, table, FlattenOptions{UseExtendedChunks: true})
	pubs := parsed.FindPackage(PackageIDApp).Publics
	require.Len(t, pubs, 1)
	assert.Equal(t, 1, pubs[0].TypeID)
	require.Len(t, pubs[0].Entries, 1)
	assert.Equal(t, "app_name", pubs[0].Entries[0].Key)
	assert.Equal(t, 12, pubs[0].Entries[0].SourceLine)
	assert.EqualValues(t, VisibilityPublic, pubs[0].Entries[0].State)
}

func TestEntryWriterDedup(t *testing.T) {
	buf := &bigBuffer{}
	w := newEntryWriter(buf, false, true)

	entry := &Entry{Name: "icon", ID: 0}
	fe := flatEntry{
		entry:    entry,
		value:    &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 0xFFAABBCC},
		keyIndex: 7,
	}

	off1, err := w.write(fe)
	require.NoError(t, err)
	off2, err := w.write(fe)
	require.NoError(t, err)
	assert.Equal(t, off1, off2)
	assert.EqualValues(t, entryHeaderSize+resValueSize, buf.size())

	// One data byte differs: distinct offset.
	fe.value = &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 0xFFAABBCD}
	off3, err := w.write(fe)
	require.NoError(t, err)
	assert.NotEqual(t, off1, off3)

	// Same bytes except a flag bit: also distinct.
	public := &Entry{Name: "icon", ID: 0, Visibility: VisibilityPublic}
	fe.entry = public
	fe.value = &BinaryPrimitive{DataType: DataTypeIntColorArgb8, Data: 0xFFAABBCD}
	off4, err := w.write(fe)
	require.NoError(t, err)
	assert.NotEqual(t, off3, off4)
}

func TestEntryWriterNoDedup(t *testing.T) {
	buf := &bigBuffer{}
	w := newEntryWriter(buf, false, false)

	entry := &Entry{Name: "icon", ID: 0}
	fe := flatEntry{
		entry:    entry,
		value:    &BinaryPrimitive{DataType: DataTypeIntDec, Data: 1},
		keyIndex: 0,
	}

	off1, err := w.write(fe)
	require.NoError(t, err)
	off2, err := w.write(fe)
	require.NoError(t, err)
	assert.NotEqual(t, off1, off2)
	assert.EqualValues(t, 2*(entryHeaderSize+resValueSize), buf.size())
}

func TestFlattenProductValues(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	entry := strs.FindOrCreateEntry("price")
	entry.ID = 0
	require.NoError(t, entry.AddValue(Config{}, "tablet", &String{Ref: table.Strings.MakeRef("$10")}))
	require.NoError(t, entry.AddValue(Config{}, "default", &String{Ref: table.Strings.MakeRef("$5")}))

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	tc := parsed.FindPackage(PackageIDApp).FindType(1, Config{})
	require.NotNil(t, tc)
	e := tc.FindEntry(0)
	require.NotNil(t, e)
	s, err := parsed.GetString(e.Value.Data)
	require.NoError(t, err)
	assert.Equal(t, "$5", s)
}

func TestFlattenProductOnlyValue(t *testing.T) {
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	entry := strs.FindOrCreateEntry("price")
	entry.ID = 0
	require.NoError(t, entry.AddValue(Config{}, "tablet", &String{Ref: table.Strings.MakeRef("$10")}))

	err := flattenFail(t, table, FlattenOptions{})
	assert.Contains(t, err.Error(), "default product")
}

func TestFlattenWeakEntry(t *testing.T) {
	table, pkg := newTestPackage()
	ids := pkg.FindOrCreateType("id")
	ids.ID = 1
	v := &ID{}
	v.Weak = true
	addEntry(t, ids, "scroll_anchor", 0, Config{}, v)

	parsed, _ := flattenOK(t, table, FlattenOptions{})
	tc := parsed.FindPackage(PackageIDApp).FindType(1, Config{})
	require.NotNil(t, tc)
	e := tc.FindEntry(0)
	require.NotNil(t, e)
	assert.NotZero(t, e.Flags&entryFlagWeak)

	parsed, _ = flattenOK(t, table, FlattenOptions{CompactEntries: true})
	e = parsed.FindPackage(PackageIDApp).FindType(1, Config{}).FindEntry(0)
	require.NotNil(t, e)
	require.True(t, e.Compact)
	assert.NotZero(t, e.Flags&entryFlagWeak)
}

func TestEntryWriterStyleable(t *testing.T) {
	buf := &bigBuffer{}
	w := newEntryWriter(buf, false, false)

	entry := &Entry{Name: "ActionBar", ID: 0}
	value := &Styleable{Entries: []Reference{
		{ID: 0x7f010002, Name: "title"},
		{ID: 0x7f010001, Name: "height"},
	}}
	off, err := w.write(flatEntry{entry: entry, value: value, keyIndex: 3})
	require.NoError(t, err)

	raw := buf.bytes()[off:]
	assert.EqualValues(t, entryExtHeaderSize, binary.LittleEndian.Uint16(raw))
	assert.NotZero(t, binary.LittleEndian.Uint16(raw[2:])&entryFlagComplex)
	assert.EqualValues(t, 3, binary.LittleEndian.Uint32(raw[4:]))
	assert.Zero(t, binary.LittleEndian.Uint32(raw[8:]))
	require.EqualValues(t, 2, binary.LittleEndian.Uint32(raw[12:]))

	// Pairs keep declaration order; name and payload both carry the
	// attribute id.
	first := raw[entryExtHeaderSize:]
	assert.EqualValues(t, 0x7f010002, binary.LittleEndian.Uint32(first))
	assert.EqualValues(t, DataTypeReference, first[7])
	assert.EqualValues(t, 0x7f010002, binary.LittleEndian.Uint32(first[8:]))
	second := first[mapPairSize:]
	assert.EqualValues(t, 0x7f010001, binary.LittleEndian.Uint32(second))

	bad := &Styleable{Entries: []Reference{{Name: "unresolved"}}}
	_, err = w.write(flatEntry{entry: entry, value: bad, keyIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no ID")
}
