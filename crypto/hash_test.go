package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashOfIsDomainSeparated(t *testing.T) {
	data := []byte("payload")

	a := HashOf(DomainTransaction, data)
	b := HashOf(DomainContractEvent, data)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashOf(DomainTransaction, []byte("pay"), []byte("load")))
	assert.NotEqual(t, AccumulatorPlaceholderHash, SparseMerklePlaceholderHash)
}

func TestHashValueText(t *testing.T) {
	h := HashOf(DomainLedgerInfo, []byte{1})

	txt, err := h.MarshalText()
	require.NoError(t, err)

	var parsed HashValue
	require.NoError(t, parsed.UnmarshalText(txt))
	assert.Equal(t, h, parsed)

	_, err = HashFromHex("0x1234")
	require.Error(t, err)
	_, err = HashFromHex("nothex")
	require.Error(t, err)
}

func TestCommonPrefixBits(t *testing.T) {
	var a, b HashValue
	assert.Equal(t, 256, a.CommonPrefixBits(b))

	b[0] = 0x80
	assert.Equal(t, 0, a.CommonPrefixBits(b))
	assert.True(t, b.Bit(0))
	assert.False(t, b.Bit(1))

	b[0] = 0
	b[2] = 0x10
	assert.Equal(t, 19, a.CommonPrefixBits(b))
	assert.True(t, b.Bit(19))
}
