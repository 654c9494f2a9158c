package crypto

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

const (
	// HashSize is the size in bytes of a HashValue.
	HashSize = 32

	hashPrefix = "LEDGERLIGHT::"
)

// Hash domains. Every value that is hashed is hashed under exactly one of
// these, so a digest of one kind can never be replayed as another.
const (
	DomainLedgerInfo             = "LedgerInfo"
	DomainWaypoint               = "Waypoint"
	DomainTransaction            = "Transaction"
	DomainTransactionInfo        = "TransactionInfo"
	DomainContractEvent          = "ContractEvent"
	DomainTransactionAccumulator = "TransactionAccumulator"
	DomainEventAccumulator       = "EventAccumulator"
	DomainSparseMerkleInternal   = "SparseMerkleInternal"
	DomainSparseMerkleLeaf       = "SparseMerkleLeaf"
	DomainAccountAddress         = "AccountAddress"
	DomainAccountStateBlob       = "AccountStateBlob"
)

var (
	saltsMtx sync.RWMutex
	salts    = make(map[string][]byte)

	// AccumulatorPlaceholderHash stands in for empty subtrees of an accumulator.
	AccumulatorPlaceholderHash = HashOf("AccumulatorPlaceholder")
	// SparseMerklePlaceholderHash stands in for empty subtrees of a sparse Merkle tree.
	SparseMerklePlaceholderHash = HashOf("SparseMerklePlaceholder")
)

// HashValue is a SHA3-256 digest.
type HashValue [HashSize]byte

// ZeroHash is the all-zero HashValue.
var ZeroHash HashValue

// HashFromBytes copies bz into a HashValue. bz must be exactly HashSize long.
func HashFromBytes(bz []byte) (HashValue, error) {
	var h HashValue
	if len(bz) != HashSize {
		return h, fmt.Errorf("invalid hash length: expected %d bytes, got %d", HashSize, len(bz))
	}
	copy(h[:], bz)
	return h, nil
}

// HashFromHex parses a hex encoded HashValue, with or without a 0x prefix.
func HashFromHex(s string) (HashValue, error) {
	bz, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return HashValue{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	return HashFromBytes(bz)
}

// Bytes returns a copy of the digest.
func (h HashValue) Bytes() []byte {
	bz := make([]byte, HashSize)
	copy(bz, h[:])
	return bz
}

func (h HashValue) IsZero() bool { return h == ZeroHash }

func (h HashValue) String() string { return strings.ToUpper(hex.EncodeToString(h[:])) }

// Short returns the first four bytes in hex, for log lines.
func (h HashValue) Short() string { return strings.ToUpper(hex.EncodeToString(h[:4])) }

func (h HashValue) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *HashValue) UnmarshalText(data []byte) error {
	v, err := HashFromHex(string(data))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// CommonPrefixBits returns the number of leading bits h and other share.
func (h HashValue) CommonPrefixBits(other HashValue) int {
	for i := 0; i < HashSize; i++ {
		if x := h[i] ^ other[i]; x != 0 {
			n := 0
			for x&0x80 == 0 {
				x <<= 1
				n++
			}
			return i*8 + n
		}
	}
	return HashSize * 8
}

// Bit returns the i-th bit of h, most significant bit first.
func (h HashValue) Bit(i int) bool {
	return h[i/8]&(0x80>>(uint(i)%8)) != 0
}

// Hasher computes domain separated SHA3-256 digests:
//
//	H_d(x) = SHA3-256(SHA3-256("LEDGERLIGHT::" || d) || x)
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a Hasher seeded with the salt of domain.
func NewHasher(domain string) *Hasher {
	h := sha3.New256()
	h.Write(salt(domain))
	return &Hasher{h: h}
}

// Write never returns an error.
func (hs *Hasher) Write(bz []byte) (int, error) {
	return hs.h.Write(bz)
}

// Sum returns the digest of everything written so far.
func (hs *Hasher) Sum() HashValue {
	var out HashValue
	copy(out[:], hs.h.Sum(nil))
	return out
}

// HashOf hashes the concatenation of parts under domain.
func HashOf(domain string, parts ...[]byte) HashValue {
	hs := NewHasher(domain)
	for _, p := range parts {
		_, _ = hs.Write(p)
	}
	return hs.Sum()
}

// Checksum returns the plain SHA3-256 of bz.
func Checksum(bz []byte) []byte {
	h := sha3.Sum256(bz)
	return h[:]
}

func salt(domain string) []byte {
	saltsMtx.RLock()
	s, ok := salts[domain]
	saltsMtx.RUnlock()
	if ok {
		return s
	}

	s = Checksum(append([]byte(hashPrefix), domain...))
	saltsMtx.Lock()
	salts[domain] = s
	saltsMtx.Unlock()
	return s
}
