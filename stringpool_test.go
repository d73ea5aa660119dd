package arscwriter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flattenPool(t *testing.T, pool *StringPool, utf8 bool) stringTable {
	t.Helper()
	buf := &bigBuffer{}
	var err error
	if utf8 {
		err = pool.FlattenUTF8(buf)
	} else {
		err = pool.FlattenUTF16(buf)
	}
	require.NoError(t, err)

	parsed, err := parseStringTableWithChunk(bytes.NewReader(buf.bytes()))
	require.NoError(t, err)
	return parsed
}

func TestStringPoolInterning(t *testing.T) {
	pool := NewStringPool()
	a1 := pool.MakeRef("alpha")
	b := pool.MakeRef("beta")
	a2 := pool.MakeRef("alpha")

	assert.Equal(t, a1.Index(), a2.Index())
	assert.NotEqual(t, a1.Index(), b.Index())
	assert.Equal(t, 2, pool.Len())
}

func TestStringPoolSortOrder(t *testing.T) {
	pool := NewStringPool()
	z := pool.MakeRef("zebra")
	a := pool.MakeRef("apple")
	urgent := pool.MakeRefWithContext("urgent", 0, Config{})
	pool.Sort()

	// Priority beats content, content breaks ties.
	assert.EqualValues(t, 0, urgent.Index())
	assert.EqualValues(t, 1, a.Index())
	assert.EqualValues(t, 2, z.Index())
}

func TestStringPoolRoundTripUTF8(t *testing.T) {
	long := strings.Repeat("x", 300) // forces the two-byte length prefix
	values := []string{"", "hello", "ümläut", "\U0001F600", long}

	pool := NewStringPool()
	refs := make([]StringRef, len(values))
	for i, v := range values {
		refs[i] = pool.MakeRef(v)
	}
	pool.Sort()

	parsed := flattenPool(t, pool, true)
	require.Equal(t, len(values), parsed.count())
	for i, v := range values {
		got, err := parsed.get(refs[i].Index())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestStringPoolRoundTripUTF16(t *testing.T) {
	values := []string{"plain", "éèê", "\U0001F680 launch"}

	pool := NewStringPool()
	refs := make([]StringRef, len(values))
	for i, v := range values {
		refs[i] = pool.MakeRef(v)
	}
	pool.Sort()

	parsed := flattenPool(t, pool, false)
	for i, v := range values {
		got, err := parsed.get(refs[i].Index())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestStringPoolStyles(t *testing.T) {
	pool := NewStringPool()
	tag := pool.MakeRef("b")
	styled := pool.MakeRefStyled("hello world", []Span{
		{Name: tag, FirstChar: 0, LastChar: 4},
	})
	plain := pool.MakeRef("unstyled")
	pool.Sort()

	// Styled strings occupy the lowest indices.
	assert.EqualValues(t, 0, styled.Index())

	parsed := flattenPool(t, pool, true)
	got, err := parsed.get(styled.Index())
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	spans, err := parsed.getStyle(styled.Index())
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, tag.Index(), spans[0].Name)
	assert.EqualValues(t, 0, spans[0].FirstChar)
	assert.EqualValues(t, 4, spans[0].LastChar)

	spans, err = parsed.getStyle(plain.Index())
	require.NoError(t, err)
	assert.Nil(t, spans)
}

func TestChunkWriterPatchesSize(t *testing.T) {
	buf := &bigBuffer{}
	cw := startChunk(buf, chunkTable, tableHeaderSize)
	cw.setU32(8, 1)
	buf.appendBytes([]byte{1, 2, 3}) // finish pads to a 4 byte boundary
	total := cw.finish()

	raw := buf.bytes()
	require.EqualValues(t, total, len(raw))
	assert.EqualValues(t, 0, total%4)

	id, headerLen, size, err := parseChunkHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.EqualValues(t, chunkTable, id)
	assert.EqualValues(t, tableHeaderSize, headerLen)
	assert.EqualValues(t, total, size)
}
