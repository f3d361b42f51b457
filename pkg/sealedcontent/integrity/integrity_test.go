package integrity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_KnownVector(t *testing.T) {
	// sha512("abc")
	want := "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
		"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"
	assert.Equal(t, want, Sum([]byte("abc")).String())
}

func TestVerify(t *testing.T) {
	data := []byte("payload under test")
	d := Sum(data)

	assert.True(t, Verify(data, d))
	assert.False(t, Verify([]byte("payload under tesT"), d))
	assert.False(t, Verify(nil, d))
}

func TestParse(t *testing.T) {
	d := Sum([]byte("round trip"))

	parsed, err := Parse(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	_, err = Parse("abc")
	assert.Error(t, err)

	_, err = Parse(strings.Repeat("zz", Size))
	assert.Error(t, err)
}
