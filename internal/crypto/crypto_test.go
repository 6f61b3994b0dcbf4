package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashHwid(t *testing.T) {
	a := HashHwid("machine-a")
	assert.Len(t, a, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, a)
	assert.Equal(t, a, HashHwid("machine-a"))
	assert.NotEqual(t, a, HashHwid("machine-b"))
}

func TestGenerateKeyValue(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v, err := GenerateKeyValue()
		require.NoError(t, err)
		assert.Regexp(t, `^GOU-[0-9A-F]{8}-[0-9A-F]{8}-[0-9A-F]{8}-[0-9A-F]{8}$`, v)
		assert.False(t, seen[v], "duplicate key %s", v)
		seen[v] = true
	}
}

func TestGenerateAppSecret(t *testing.T) {
	a, err := GenerateAppSecret()
	require.NoError(t, err)
	b, err := GenerateAppSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43) // 32 bytes, base64url without padding
}
