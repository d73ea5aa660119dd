package arscwriter

const (
	chunkNull                   = 0x0000
	chunkStringPool             = 0x0001
	chunkTable                  = 0x0002
	chunkAxmlFile               = 0x0003
	chunkTablePackage           = 0x0200
	chunkTableType              = 0x0201
	chunkTableTypeSpec          = 0x0202
	chunkTableLibrary           = 0x0203
	chunkTableOverlayable       = 0x0204
	chunkTableOverlayablePolicy = 0x0205
	chunkTableStagedAlias       = 0x0206

	// Extended chunks, only emitted with FlattenOptions.UseExtendedChunks.
	// Not understood by the device runtime, consumed by build tooling only.
	chunkTablePublic      = 0x000d
	chunkTableSourcePool  = 0x000e
	chunkTableSymbolTable = 0x000f

	chunkHeaderSize = 2 + 2 + 4

	stringFlagSorted = 0x00000001
	stringFlagUtf8   = 0x00000100
)

// Res_value data types.
const (
	DataTypeNull             = 0x00
	DataTypeReference        = 0x01
	DataTypeAttribute        = 0x02
	DataTypeString           = 0x03
	DataTypeFloat            = 0x04
	DataTypeDimension        = 0x05
	DataTypeFraction         = 0x06
	DataTypeDynamicReference = 0x07
	DataTypeDynamicAttribute = 0x08
	DataTypeIntDec           = 0x10
	DataTypeIntHex           = 0x11
	DataTypeIntBool          = 0x12
	DataTypeIntColorArgb8    = 0x1c
	DataTypeIntColorRgb8     = 0x1d
	DataTypeIntColorArgb4    = 0x1e
	DataTypeIntColorRgb4     = 0x1f

	dataNullUndefined = 0
	dataNullEmpty     = 1
)

// ResTable_entry flags.
const (
	entryFlagComplex = 0x0001
	entryFlagPublic  = 0x0002
	entryFlagWeak    = 0x0004
	entryFlagCompact = 0x0008
)

// ResTable_type flags and index sentinels.
const (
	typeFlagSparse   = 0x01
	typeFlagOffset16 = 0x02

	noEntry   = 0xFFFFFFFF
	noEntry16 = 0xFFFF
)

// ResTable_typeSpec per-entry flags, ORed with configuration diff masks.
const (
	specFlagPublic    = 0x40000000
	specFlagStagedApi = 0x20000000
)

// Special ResTable_map name idents (0x01000000 | n) used for attribute
// meta-data, array positions and plural quantities.
const (
	mapAttrType = 0x01000000
	mapAttrMin  = 0x01000001
	mapAttrMax  = 0x01000002
	mapAttrL10n = 0x01000003

	mapAttrOther = 0x01000004
	mapAttrZero  = 0x01000005
	mapAttrOne   = 0x01000006
	mapAttrTwo   = 0x01000007
	mapAttrFew   = 0x01000008
	mapAttrMany  = 0x01000009
)

// Attribute format bits carried by the mapAttrType pair.
const (
	AttrTypeAny       = 0x0000FFFF
	AttrTypeReference = 1 << 0
	AttrTypeString    = 1 << 1
	AttrTypeInteger   = 1 << 2
	AttrTypeBoolean   = 1 << 3
	AttrTypeColor     = 1 << 4
	AttrTypeFloat     = 1 << 5
	AttrTypeDimension = 1 << 6
	AttrTypeFraction  = 1 << 7
	AttrTypeEnum      = 1 << 16
	AttrTypeFlags     = 1 << 17
)

// Overlayable policy partitions.
const (
	PolicyPublic          = 0x00000001
	PolicySystem          = 0x00000002
	PolicyVendor          = 0x00000004
	PolicyProduct         = 0x00000008
	PolicySignature       = 0x00000010
	PolicyOdm             = 0x00000020
	PolicyOem             = 0x00000040
	PolicyActorSignature  = 0x00000080
	PolicyConfigSignature = 0x00000100
)

// Fixed-width UTF-16 name fields.
const (
	packageNameMaxLen     = 128
	overlayableNameMaxLen = 256
)

// Conventional package ids.
const (
	PackageIDSharedLib = 0x00
	PackageIDFramework = 0x01
	PackageIDApp       = 0x7f
)

// ResourceID is a fully qualified resource id of the form 0xPPTTEEEE.
type ResourceID uint32

func MakeResourceID(pkg, typ uint8, entry uint16) ResourceID {
	return ResourceID(uint32(pkg)<<24 | uint32(typ)<<16 | uint32(entry))
}

func (id ResourceID) PackageID() uint8 { return uint8(id >> 24) }
func (id ResourceID) TypeID() uint8    { return uint8(id >> 16) }
func (id ResourceID) EntryID() uint16  { return uint16(id) }
func (id ResourceID) Valid() bool      { return id.PackageID() != 0 && id.TypeID() != 0 }
