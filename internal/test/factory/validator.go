package factory

import (
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto/ed25519"
	"github.com/ledgerlight/ledgerlight/types"
)

// ValidatorKeys returns n deterministic keys for the validators of epoch.
func ValidatorKeys(epoch uint64, n int) []ed25519.PrivKey {
	keys := make([]ed25519.PrivKey, n)
	for i := range keys {
		keys[i] = ed25519.GenPrivKeyFromSecret([]byte(fmt.Sprintf("validator-%d-%d", epoch, i)))
	}
	return keys
}

// ValidatorVerifier gives every key a voting power of 1.
func ValidatorVerifier(keys []ed25519.PrivKey) *types.ValidatorVerifier {
	infos := make([]types.ValidatorConsensusInfo, len(keys))
	for i, key := range keys {
		infos[i] = types.NewValidatorConsensusInfo(key.PubKey().(ed25519.PubKey), 1)
	}
	v, err := types.NewValidatorVerifier(infos)
	if err != nil {
		panic(err)
	}
	return v
}

// Sign returns h signed by each of keys.
func Sign(h types.LedgerHeader, keys []ed25519.PrivKey) *types.LedgerHeaderWithSignatures {
	lhs := types.NewLedgerHeaderWithSignatures(h)
	for _, key := range keys {
		if err := lhs.Sign(key); err != nil {
			panic(err)
		}
	}
	return lhs
}
