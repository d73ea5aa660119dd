package arscwriter

import "fmt"

// Value is the closed set of resource value kinds the flattener accepts.
// Items carry one typed 32-bit payload; compound values expand into
// key/value map pairs. No implementations exist outside this package.
type Value interface {
	isValue()
	IsWeak() bool
}

// Item is a Value that serializes to a single Res_value.
type Item interface {
	Value
	isItem()
}

type valueBase struct {
	// Weak values may be overridden by strong ones during linking; the
	// runtime sees the flag on the flattened entry.
	Weak bool
}

func (v valueBase) isValue()     {}
func (v valueBase) IsWeak() bool { return v.Weak }

// Reference points at another resource or attribute by numeric id. A zero
// id is a null reference; Name is only for diagnostics.
type Reference struct {
	valueBase
	ID        ResourceID
	Name      string
	Attribute bool
	Dynamic   bool
}

func (Reference) isItem() {}

// String is a reference into the table's value string pool.
type String struct {
	valueBase
	Ref StringRef
}

func (String) isItem() {}

// RawString holds the uncompiled source text of a value that could not be
// parsed further upstream.
type RawString struct {
	valueBase
	Ref StringRef
}

func (RawString) isItem() {}

// StyledString references a pool string carrying style spans.
type StyledString struct {
	valueBase
	Ref StringRef
}

func (StyledString) isItem() {}

// FileReference is a path into the APK, interned in the value pool.
type FileReference struct {
	valueBase
	Path StringRef
}

func (FileReference) isItem() {}

// ID is a marker resource carrying no payload.
type ID struct {
	valueBase
}

func (ID) isItem() {}

// BinaryPrimitive is an already-typed 32-bit payload (int, bool, color,
// dimension, fraction, float, null).
type BinaryPrimitive struct {
	valueBase
	DataType uint8
	Data     uint32
}

func (BinaryPrimitive) isItem() {}

// AttributeSymbol is one enum or flag member of an Attribute. DataType is
// the Res_value type of the symbol's payload; zero means decimal int.
type AttributeSymbol struct {
	Symbol   Reference
	Value    uint32
	DataType uint8
}

// Attribute describes the format constraints of a style attribute.
type Attribute struct {
	valueBase
	TypeMask uint32
	MinInt   int32
	MaxInt   int32
	HasMin   bool
	HasMax   bool
	Symbols  []AttributeSymbol
}

// StyleEntry is one attribute setting within a Style.
type StyleEntry struct {
	Key   Reference
	Value Item
}

// Style is a set of attribute values, optionally inheriting from a parent.
type Style struct {
	valueBase
	Parent  *Reference
	Entries []StyleEntry
}

// Styleable is an IDE-facing grouping of attribute references. Styleable
// types are excluded from binary type chunks but the value itself still
// flattens when referenced.
type Styleable struct {
	valueBase
	Entries []Reference
}

// Array is an ordered list of items with positional identity.
type Array struct {
	valueBase
	Items []Item
}

// Plural quantity slots, in the order the quantity enum defines.
const (
	PluralZero = iota
	PluralOne
	PluralTwo
	PluralFew
	PluralMany
	PluralOther
	PluralCount
)

// Plural holds up to one item per quantity; nil slots are unset.
type Plural struct {
	valueBase
	Values [PluralCount]Item
}

// flattenItem converts an item into its Res_value (dataType, data) form.
// By this stage all values are link-resolved, so failure here means the
// upstream contract was broken.
func flattenItem(item Item) (dataType uint8, data uint32, err error) {
	switch v := item.(type) {
	case *Reference:
		switch {
		case v.Attribute && v.Dynamic:
			dataType = DataTypeDynamicAttribute
		case v.Attribute:
			dataType = DataTypeAttribute
		case v.Dynamic:
			dataType = DataTypeDynamicReference
		default:
			dataType = DataTypeReference
		}
		data = uint32(v.ID)
	case *String:
		dataType, data = DataTypeString, v.Ref.Index()
	case *RawString:
		dataType, data = DataTypeString, v.Ref.Index()
	case *StyledString:
		dataType, data = DataTypeString, v.Ref.Index()
	case *FileReference:
		dataType, data = DataTypeString, v.Path.Index()
	case *ID:
		dataType, data = DataTypeIntBool, 0
	case *BinaryPrimitive:
		dataType, data = v.DataType, v.Data
	default:
		err = fmt.Errorf("value %T cannot flatten to an item", item)
	}
	return
}
