package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_OpenReversesSeal(t *testing.T) {
	s := NewSealer("passphrase")

	sealed, err := s.Seal("upstream-bearer-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "upstream-bearer-token")

	again, err := s.Seal("upstream-bearer-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "upstream-bearer-token", plain)
}

func TestSealer_RejectsTamperedOrForeign(t *testing.T) {
	sealed, err := NewSealer("a").Seal("value")
	require.NoError(t, err)

	_, err = NewSealer("b").Open(sealed)
	assert.ErrorIs(t, err, ErrUnseal)

	_, err = NewSealer("a").Open("not base64!")
	assert.ErrorIs(t, err, ErrUnseal)

	_, err = NewSealer("a").Open("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrUnseal)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("x"), HashToken("x"))
	assert.NotEqual(t, HashToken("x"), HashToken("y"))
	assert.Len(t, HashToken("x"), 64)
}
