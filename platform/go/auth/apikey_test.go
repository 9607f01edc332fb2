package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKeyRoundTripsThroughParse(t *testing.T) {
	t.Parallel()

	keyID, secret, secretHash, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, keyID, 8)
	require.Len(t, secret, 32)

	parsedID, parsedHash, err := ParsePresentedKey(keyID + "." + secret)
	require.NoError(t, err)
	require.Equal(t, keyID, parsedID)
	require.Equal(t, secretHash, parsedHash)
}

func TestParsePresentedKeyRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		presented string
	}{
		{"empty", ""},
		{"no separator", "abcdef12aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"short key id", "abc." + strings.Repeat("a", 32)},
		{"short secret", "abcdef12.tooshort"},
		{"extra segment", "abcdef12." + strings.Repeat("a", 32) + ".x"},
		{"non-hex key id", "zzzzzzzz." + strings.Repeat("a", 32)},
		{"non-hex secret", "abcdef12." + strings.Repeat("z", 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := ParsePresentedKey(tt.presented)
			require.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}

func TestDigestSecretIsStable(t *testing.T) {
	t.Parallel()

	a := DigestSecret("some-secret")
	b := DigestSecret("some-secret")
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.NotEqual(t, a, DigestSecret("other-secret"))
}

func TestAPIKeyHasPermission(t *testing.T) {
	t.Parallel()

	key := &APIKey{Permissions: []string{"events:read", "members:read"}}
	require.True(t, key.HasPermission("events:read"))
	require.False(t, key.HasPermission("events:write"))

	wildcard := &APIKey{Permissions: []string{"*"}}
	require.True(t, wildcard.HasPermission("anything:at:all"))
}
