package arscwriter

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigEncodeDecodeRoundTrip(t *testing.T) {
	c := Config{
		MCC:                   310,
		MNC:                   26,
		Language:              [2]byte{'e', 'n'},
		Country:               [2]byte{'U', 'S'},
		Orientation:           2,
		Density:               240,
		InputFlags:            0x01,
		SDKVersion:            26,
		ScreenLayout:          0x42,
		UIMode:                0x11,
		SmallestScreenWidthDp: 600,
		ScreenWidthDp:         960,
		ScreenHeightDp:        600,
		LocaleScript:          [4]byte{'L', 'a', 't', 'n'},
		ScreenLayout2:         0x01,
		ColorMode:             0x05,
	}

	raw := c.encode()
	decoded, err := decodeConfig(raw[:])
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestConfigDecodeShortDescriptor(t *testing.T) {
	// Old toolchains emit smaller descriptors; missing fields read as zero.
	c := Config{MCC: 310, Language: [2]byte{'d', 'e'}}
	raw := c.encode()

	short := make([]byte, 28)
	copy(short, raw[:28])
	short[0] = 28

	decoded, err := decodeConfig(short)
	require.NoError(t, err)
	assert.Equal(t, uint16(310), decoded.MCC)
	assert.Equal(t, [2]byte{'d', 'e'}, decoded.Language)
	assert.Equal(t, uint16(0), decoded.SDKVersion)

	_, err = decodeConfig([]byte{1, 2})
	assert.Error(t, err)
}

func TestConfigDiffAxes(t *testing.T) {
	def := Config{}

	cases := []struct {
		name string
		cfg  Config
		want uint32
	}{
		{"density", Config{Density: 240}, ConfigDensity},
		{"orientation", Config{Orientation: 2}, ConfigOrientation},
		{"locale", Config{Language: [2]byte{'d', 'e'}}, ConfigLocale},
		{"sdk", Config{SDKVersion: 26}, ConfigVersion},
		{"screen size dp", Config{ScreenWidthDp: 600}, ConfigScreenSize},
		{"smallest width", Config{SmallestScreenWidthDp: 600}, ConfigSmallestScreenSize},
		{"layout direction", Config{ScreenLayout: 0x40}, ConfigLayoutDir},
		{"screen layout", Config{ScreenLayout: 0x02}, ConfigScreenLayout},
		{"round screen", Config{ScreenLayout2: 0x01}, ConfigScreenRound},
		{"color mode", Config{ColorMode: 0x01}, ConfigColorMode},
		{"keyboard hidden", Config{InputFlags: 0x01}, ConfigKeyboardHidden},
		{"grammatical gender", Config{GrammaticalInflection: 0x02}, ConfigGrammaticalGender},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, def.Diff(&tc.cfg), tc.name)
		assert.Equal(t, tc.want, tc.cfg.Diff(&def), tc.name)
	}

	assert.Zero(t, def.Diff(&Config{}))

	multi := Config{Density: 480, SDKVersion: 30}
	assert.Equal(t, uint32(ConfigDensity|ConfigVersion), def.Diff(&multi))
}

func TestConfigCompareTotalOrder(t *testing.T) {
	configs := []Config{
		{},
		{Language: [2]byte{'d', 'e'}},
		{Language: [2]byte{'e', 'n'}, Country: [2]byte{'U', 'S'}},
		{Density: 160},
		{Density: 240},
		{Orientation: 2},
		{SDKVersion: 21},
		{SDKVersion: 26},
		{MCC: 310},
	}

	sorted := append([]Config(nil), configs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Compare(&sorted[j]) < 0 })

	for i := range sorted {
		for j := range sorted {
			d := sorted[i].Compare(&sorted[j])
			switch {
			case i < j:
				assert.Negative(t, d, "%d vs %d", i, j)
			case i > j:
				assert.Positive(t, d, "%d vs %d", i, j)
			default:
				assert.Zero(t, d)
			}
		}
	}
}

func TestConfigString(t *testing.T) {
	assert.Equal(t, "DEFAULT", (&Config{}).String())

	c := Config{
		Language:    [2]byte{'e', 'n'},
		Country:     [2]byte{'G', 'B'},
		Orientation: 2,
		Density:     240,
		SDKVersion:  26,
	}
	assert.Equal(t, "en-rGB-land-240dpi-v26", c.String())
}
