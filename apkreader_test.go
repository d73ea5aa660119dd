package arscwriter

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flattenedTestTable(t *testing.T) []byte {
	t.Helper()
	table, pkg := newTestPackage()
	strs := pkg.FindOrCreateType("string")
	strs.ID = 1
	addEntry(t, strs, "app_name", 0, Config{}, &String{Ref: table.Strings.MakeRef("Example")})

	var diag Diagnostics
	out, err := FlattenTable(table, FlattenOptions{}, &diag)
	require.NoError(t, err)
	return out
}

func TestExtractTableFromZip(t *testing.T) {
	arsc := flattenedTestTable(t)

	var apk bytes.Buffer
	zw := zip.NewWriter(&apk)
	w, err := zw.Create("AndroidManifest.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<manifest/>"))
	require.NoError(t, err)
	w, err = zw.Create(TableFileName)
	require.NoError(t, err)
	_, err = w.Write(arsc)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := ExtractTableReader(bytes.NewReader(apk.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, arsc, got)

	parsed, err := ParseTable(bytes.NewReader(got))
	require.NoError(t, err)
	require.Len(t, parsed.Packages, 1)
	assert.Equal(t, "com.example.app", parsed.Packages[0].Name)
}

func TestExtractTableMissing(t *testing.T) {
	var apk bytes.Buffer
	zw := zip.NewWriter(&apk)
	_, err := zw.Create("classes.dex")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ExtractTableReader(bytes.NewReader(apk.Bytes()))
	assert.Error(t, err)
}

// rawStoredEntry builds a bare local file header with no central
// directory, the kind of archive the fallback scan exists for.
func rawStoredEntry(name string, data []byte) []byte {
	var buf bytes.Buffer
	hdr := make([]byte, 30)
	copy(hdr, []byte{0x50, 0x4B, 0x03, 0x04})
	binary.LittleEndian.PutUint16(hdr[8:], 0) // store
	binary.LittleEndian.PutUint16(hdr[26:], uint16(len(name)))
	binary.LittleEndian.PutUint16(hdr[28:], 0)
	buf.Write(hdr)
	buf.WriteString(name)
	buf.Write(data)
	return buf.Bytes()
}

func TestExtractTableLocalHeaderFallback(t *testing.T) {
	arsc := flattenedTestTable(t)

	var apk bytes.Buffer
	apk.Write(rawStoredEntry("classes.dex", []byte{0xde, 0xad}))
	apk.Write(rawStoredEntry(TableFileName, arsc))
	apk.Write([]byte("trailing junk"))

	got, err := ExtractTableReader(bytes.NewReader(apk.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, arsc, got)
}
