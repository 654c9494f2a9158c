package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorage(t *testing.T) {
	s := NewMemStorage()

	_, err := s.Get(TrustedStateKey)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	value := []byte{1, 2, 3}
	require.NoError(t, s.Set(TrustedStateKey, value))
	value[0] = 9

	got, err := s.Get(TrustedStateKey)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	again, err := s.Get(TrustedStateKey)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again)
}
