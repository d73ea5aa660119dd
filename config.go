package arscwriter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Configuration axis bits, reported by Config.Diff and stored in type-spec
// chunks so the runtime knows which axes vary per resource.
const (
	ConfigMCC                = 0x0001
	ConfigMNC                = 0x0002
	ConfigLocale             = 0x0004
	ConfigTouchscreen        = 0x0008
	ConfigKeyboard           = 0x0010
	ConfigKeyboardHidden     = 0x0020
	ConfigNavigation         = 0x0040
	ConfigOrientation        = 0x0080
	ConfigDensity            = 0x0100
	ConfigScreenSize         = 0x0200
	ConfigVersion            = 0x0400
	ConfigScreenLayout       = 0x0800
	ConfigUIMode             = 0x1000
	ConfigSmallestScreenSize = 0x2000
	ConfigLayoutDir          = 0x4000
	ConfigScreenRound        = 0x8000
	ConfigColorMode          = 0x10000
	ConfigGrammaticalGender  = 0x20000
)

const (
	maskKeysHidden      = 0x03
	maskNavHidden       = 0x0c
	maskLayoutDir       = 0xc0
	maskScreenRound     = 0x03
	maskWideColorGamut  = 0x03
	maskHdr             = 0x0c
	maskGrammaticalGend = 0x03
)

// configSize is the byte length of the on-disk configuration descriptor,
// written as the trailing part of every type chunk header.
const configSize = 64

// Config describes the device configuration one resource value applies to.
// Language/country/script/variant are stored in their packed on-disk form;
// the zero Config is the default (any-device) configuration.
type Config struct {
	MCC uint16
	MNC uint16

	Language [2]byte
	Country  [2]byte

	Orientation uint8
	Touchscreen uint8
	Density     uint16

	Keyboard              uint8
	Navigation            uint8
	InputFlags            uint8
	GrammaticalInflection uint8

	ScreenWidth  uint16
	ScreenHeight uint16

	SDKVersion   uint16
	MinorVersion uint16

	ScreenLayout          uint8
	UIMode                uint8
	SmallestScreenWidthDp uint16

	ScreenWidthDp  uint16
	ScreenHeightDp uint16

	LocaleScript  [4]byte
	LocaleVariant [8]byte

	ScreenLayout2 uint8
	ColorMode     uint8

	LocaleNumberingSystem [8]byte
}

// IsDefault reports whether c is the any-device configuration.
func (c *Config) IsDefault() bool {
	return *c == Config{}
}

// encode serializes the descriptor into its fixed little-endian on-disk
// form, independent of the host byte order.
func (c *Config) encode() [configSize]byte {
	var out [configSize]byte
	le := binary.LittleEndian

	le.PutUint32(out[0:], configSize)
	le.PutUint16(out[4:], c.MCC)
	le.PutUint16(out[6:], c.MNC)
	out[8] = c.Language[0]
	out[9] = c.Language[1]
	out[10] = c.Country[0]
	out[11] = c.Country[1]
	out[12] = c.Orientation
	out[13] = c.Touchscreen
	le.PutUint16(out[14:], c.Density)
	out[16] = c.Keyboard
	out[17] = c.Navigation
	out[18] = c.InputFlags
	out[19] = c.GrammaticalInflection
	le.PutUint16(out[20:], c.ScreenWidth)
	le.PutUint16(out[22:], c.ScreenHeight)
	le.PutUint16(out[24:], c.SDKVersion)
	le.PutUint16(out[26:], c.MinorVersion)
	out[28] = c.ScreenLayout
	out[29] = c.UIMode
	le.PutUint16(out[30:], c.SmallestScreenWidthDp)
	le.PutUint16(out[32:], c.ScreenWidthDp)
	le.PutUint16(out[34:], c.ScreenHeightDp)
	copy(out[36:40], c.LocaleScript[:])
	copy(out[40:48], c.LocaleVariant[:])
	out[48] = c.ScreenLayout2
	out[49] = c.ColorMode
	// out[50:52] reserved padding, out[52] localeScriptWasComputed
	copy(out[53:61], c.LocaleNumberingSystem[:])
	return out
}

// decodeConfig reads an on-disk descriptor of at least 4 bytes. Descriptors
// shorter than configSize are zero-extended, longer ones truncated, the way
// the runtime loader tolerates foreign versions of the struct.
func decodeConfig(raw []byte) (Config, error) {
	if len(raw) < 4 {
		return Config{}, fmt.Errorf("config descriptor too short (%d bytes)", len(raw))
	}
	declared := binary.LittleEndian.Uint32(raw)
	if declared < 4 || int(declared) > len(raw) {
		return Config{}, fmt.Errorf("config descriptor size %d out of bounds", declared)
	}

	var buf [configSize]byte
	copy(buf[:], raw[:declared])
	le := binary.LittleEndian

	var c Config
	c.MCC = le.Uint16(buf[4:])
	c.MNC = le.Uint16(buf[6:])
	c.Language[0] = buf[8]
	c.Language[1] = buf[9]
	c.Country[0] = buf[10]
	c.Country[1] = buf[11]
	c.Orientation = buf[12]
	c.Touchscreen = buf[13]
	c.Density = le.Uint16(buf[14:])
	c.Keyboard = buf[16]
	c.Navigation = buf[17]
	c.InputFlags = buf[18]
	c.GrammaticalInflection = buf[19]
	c.ScreenWidth = le.Uint16(buf[20:])
	c.ScreenHeight = le.Uint16(buf[22:])
	c.SDKVersion = le.Uint16(buf[24:])
	c.MinorVersion = le.Uint16(buf[26:])
	c.ScreenLayout = buf[28]
	c.UIMode = buf[29]
	c.SmallestScreenWidthDp = le.Uint16(buf[30:])
	c.ScreenWidthDp = le.Uint16(buf[32:])
	c.ScreenHeightDp = le.Uint16(buf[34:])
	copy(c.LocaleScript[:], buf[36:40])
	copy(c.LocaleVariant[:], buf[40:48])
	c.ScreenLayout2 = buf[48]
	c.ColorMode = buf[49]
	copy(c.LocaleNumberingSystem[:], buf[53:61])
	return c, nil
}

func compareLocales(a, b *Config) int {
	if d := bytes.Compare(a.Language[:], b.Language[:]); d != 0 {
		return d
	}
	if d := bytes.Compare(a.Country[:], b.Country[:]); d != 0 {
		return d
	}
	if d := bytes.Compare(a.LocaleScript[:], b.LocaleScript[:]); d != 0 {
		return d
	}
	if d := bytes.Compare(a.LocaleVariant[:], b.LocaleVariant[:]); d != 0 {
		return d
	}
	return bytes.Compare(a.LocaleNumberingSystem[:], b.LocaleNumberingSystem[:])
}

func compareU32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Compare imposes the canonical field-by-field ordering used for sorting
// type chunks and string pool contexts. Deterministic, not a match ranking.
func (c *Config) Compare(o *Config) int {
	if d := compareU32(uint32(c.MCC)<<16|uint32(c.MNC), uint32(o.MCC)<<16|uint32(o.MNC)); d != 0 {
		return d
	}
	if d := compareLocales(c, o); d != 0 {
		return d
	}
	pack := func(cfg *Config) []uint32 {
		return []uint32{
			uint32(cfg.Orientation)<<24 | uint32(cfg.Touchscreen)<<16 | uint32(cfg.Density),
			uint32(cfg.Keyboard)<<24 | uint32(cfg.Navigation)<<16 | uint32(cfg.InputFlags)<<8 | uint32(cfg.GrammaticalInflection),
			uint32(cfg.ScreenWidth)<<16 | uint32(cfg.ScreenHeight),
			uint32(cfg.SDKVersion)<<16 | uint32(cfg.MinorVersion),
			uint32(cfg.ScreenLayout),
			uint32(cfg.ScreenLayout2),
			uint32(cfg.ColorMode),
			uint32(cfg.UIMode),
			uint32(cfg.SmallestScreenWidthDp),
			uint32(cfg.ScreenWidthDp)<<16 | uint32(cfg.ScreenHeightDp),
		}
	}
	a, b := pack(c), pack(o)
	for i := range a {
		if d := compareU32(a[i], b[i]); d != 0 {
			return d
		}
	}
	return 0
}

// Diff returns the set of configuration axes on which c and o disagree.
func (c *Config) Diff(o *Config) uint32 {
	var diffs uint32
	if c.MCC != o.MCC {
		diffs |= ConfigMCC
	}
	if c.MNC != o.MNC {
		diffs |= ConfigMNC
	}
	if c.Orientation != o.Orientation {
		diffs |= ConfigOrientation
	}
	if c.Density != o.Density {
		diffs |= ConfigDensity
	}
	if c.Touchscreen != o.Touchscreen {
		diffs |= ConfigTouchscreen
	}
	if (c.InputFlags^o.InputFlags)&(maskKeysHidden|maskNavHidden) != 0 {
		diffs |= ConfigKeyboardHidden
	}
	if c.Keyboard != o.Keyboard {
		diffs |= ConfigKeyboard
	}
	if c.Navigation != o.Navigation {
		diffs |= ConfigNavigation
	}
	if c.ScreenWidth != o.ScreenWidth || c.ScreenHeight != o.ScreenHeight {
		diffs |= ConfigScreenSize
	}
	if c.ScreenWidthDp != o.ScreenWidthDp || c.ScreenHeightDp != o.ScreenHeightDp {
		diffs |= ConfigScreenSize
	}
	if c.SDKVersion != o.SDKVersion || c.MinorVersion != o.MinorVersion {
		diffs |= ConfigVersion
	}
	if c.ScreenLayout&maskLayoutDir != o.ScreenLayout&maskLayoutDir {
		diffs |= ConfigLayoutDir
	}
	if c.ScreenLayout&^uint8(maskLayoutDir) != o.ScreenLayout&^uint8(maskLayoutDir) {
		diffs |= ConfigScreenLayout
	}
	if c.ScreenLayout2&maskScreenRound != o.ScreenLayout2&maskScreenRound {
		diffs |= ConfigScreenRound
	}
	if c.ColorMode&(maskWideColorGamut|maskHdr) != o.ColorMode&(maskWideColorGamut|maskHdr) {
		diffs |= ConfigColorMode
	}
	if c.UIMode != o.UIMode {
		diffs |= ConfigUIMode
	}
	if c.SmallestScreenWidthDp != o.SmallestScreenWidthDp {
		diffs |= ConfigSmallestScreenSize
	}
	if c.GrammaticalInflection&maskGrammaticalGend != o.GrammaticalInflection&maskGrammaticalGend {
		diffs |= ConfigGrammaticalGender
	}
	if compareLocales(c, o) != 0 {
		diffs |= ConfigLocale
	}
	return diffs
}

func (c *Config) String() string {
	if c.IsDefault() {
		return "DEFAULT"
	}
	var parts []string
	add := func(cond bool, format string, args ...interface{}) {
		if cond {
			parts = append(parts, fmt.Sprintf(format, args...))
		}
	}
	add(c.MCC != 0, "mcc%d", c.MCC)
	add(c.MNC != 0, "mnc%d", c.MNC)
	add(c.Language[0] != 0, "%s", strings.TrimRight(string(c.Language[:]), "\x00"))
	add(c.Country[0] != 0, "r%s", strings.TrimRight(string(c.Country[:]), "\x00"))
	add(c.SmallestScreenWidthDp != 0, "sw%ddp", c.SmallestScreenWidthDp)
	add(c.ScreenWidthDp != 0, "w%ddp", c.ScreenWidthDp)
	add(c.ScreenHeightDp != 0, "h%ddp", c.ScreenHeightDp)
	add(c.Orientation == 1, "port")
	add(c.Orientation == 2, "land")
	add(c.Density != 0, "%ddpi", c.Density)
	add(c.SDKVersion != 0, "v%d", c.SDKVersion)
	if len(parts) == 0 {
		return "DEFAULT"
	}
	return strings.Join(parts, "-")
}
