package types

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/ed25519"
)

// EpochState is the validator set governing one epoch.
type EpochState struct {
	Epoch    uint64
	Verifier *ValidatorVerifier
}

// Verify checks that lhs belongs to this epoch and carries a valid quorum of
// signatures.
func (s *EpochState) Verify(lhs *LedgerHeaderWithSignatures) error {
	if lhs.Header.Epoch != s.Epoch {
		return ErrEpochMismatch{Expected: s.Epoch, Got: lhs.Header.Epoch}
	}
	return s.Verifier.VerifySignatures(lhs.Header.SignBytes(), lhs.Signatures)
}

func (s *EpochState) Equal(other *EpochState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Epoch == other.Epoch && s.Verifier.Equal(other.Verifier)
}

func (s *EpochState) String() string {
	if s == nil {
		return "EpochState{nil}"
	}
	return fmt.Sprintf("EpochState{%d %v}", s.Epoch, s.Verifier)
}

func (s *EpochState) encode(e *encoder) {
	e.uint64(s.Epoch)
	e.message(s.Verifier.encode)
}

func decodeEpochState(d *decoder) *EpochState {
	s := &EpochState{Epoch: d.uint64()}
	d.message(func(d *decoder) { s.Verifier = decodeValidatorVerifier(d) })
	if d.err != nil {
		return nil
	}
	return s
}

// LedgerHeader commits to the whole ledger at one version through the root
// of the transaction accumulator.
type LedgerHeader struct {
	Version                    uint64
	TransactionAccumulatorHash crypto.HashValue
	ConsensusDataHash          crypto.HashValue
	Epoch                      uint64
	Round                      uint64
	TimestampUsecs             uint64
	// NextEpochState is set on the last header of an epoch.
	NextEpochState *EpochState
}

// IsEpochBoundary reports whether the header ends its epoch.
func (h *LedgerHeader) IsEpochBoundary() bool { return h.NextEpochState != nil }

// ValidateBasic performs stateless checks.
func (h *LedgerHeader) ValidateBasic() error {
	if h.NextEpochState == nil {
		return nil
	}
	if h.NextEpochState.Verifier == nil {
		return errors.New("next epoch state has no validators")
	}
	if h.NextEpochState.Epoch != h.Epoch+1 {
		return fmt.Errorf("next epoch state is for epoch %d, header is in epoch %d",
			h.NextEpochState.Epoch, h.Epoch)
	}
	return nil
}

// Hash is the digest validators sign.
func (h *LedgerHeader) Hash() crypto.HashValue {
	return crypto.HashOf(crypto.DomainLedgerInfo, h.Marshal())
}

// SignBytes returns the bytes validators sign.
func (h *LedgerHeader) SignBytes() []byte {
	return h.Hash().Bytes()
}

func (h *LedgerHeader) String() string {
	return fmt.Sprintf("LedgerHeader{v%d e%d r%d ts:%d acc:%v next:%v}",
		h.Version, h.Epoch, h.Round, h.TimestampUsecs, h.TransactionAccumulatorHash.Short(), h.IsEpochBoundary())
}

func (h *LedgerHeader) Marshal() []byte {
	return encode(h.encode)
}

func (h *LedgerHeader) encode(e *encoder) {
	e.uint64(h.Version)
	e.hash(h.TransactionAccumulatorHash)
	e.hash(h.ConsensusDataHash)
	e.uint64(h.Epoch)
	e.uint64(h.Round)
	e.uint64(h.TimestampUsecs)
	e.optional(h.NextEpochState != nil, func(e *encoder) { h.NextEpochState.encode(e) })
}

func decodeLedgerHeader(d *decoder) LedgerHeader {
	var h LedgerHeader
	h.Version = d.uint64()
	h.TransactionAccumulatorHash = d.hash()
	h.ConsensusDataHash = d.hash()
	h.Epoch = d.uint64()
	h.Round = d.uint64()
	h.TimestampUsecs = d.uint64()
	d.optional(func(d *decoder) { h.NextEpochState = decodeEpochState(d) })
	return h
}

// LedgerHeaderWithSignatures is a ledger header certified by validators of
// the header's epoch.
type LedgerHeaderWithSignatures struct {
	Header     LedgerHeader
	Signatures map[Address][]byte
}

// NewLedgerHeaderWithSignatures returns lhs with no signatures.
func NewLedgerHeaderWithSignatures(h LedgerHeader) *LedgerHeaderWithSignatures {
	return &LedgerHeaderWithSignatures{Header: h, Signatures: make(map[Address][]byte)}
}

// Sign adds a signature by key under the address derived from it.
func (lhs *LedgerHeaderWithSignatures) Sign(key ed25519.PrivKey) error {
	sig, err := key.Sign(lhs.Header.SignBytes())
	if err != nil {
		return err
	}
	if lhs.Signatures == nil {
		lhs.Signatures = make(map[Address][]byte)
	}
	lhs.Signatures[AddressFromPubKey(key.PubKey())] = sig
	return nil
}

func (lhs *LedgerHeaderWithSignatures) ValidateBasic() error {
	if err := lhs.Header.ValidateBasic(); err != nil {
		return err
	}
	for author, sig := range lhs.Signatures {
		if len(sig) != ed25519.SignatureSize {
			return fmt.Errorf("signature by %v has %d bytes", author, len(sig))
		}
	}
	return nil
}

// Copy returns a deep copy of the signature map sharing the header.
func (lhs *LedgerHeaderWithSignatures) Copy() *LedgerHeaderWithSignatures {
	sigs := make(map[Address][]byte, len(lhs.Signatures))
	for a, s := range lhs.Signatures {
		sigs[a] = append([]byte(nil), s...)
	}
	return &LedgerHeaderWithSignatures{Header: lhs.Header, Signatures: sigs}
}

func (lhs *LedgerHeaderWithSignatures) Marshal() []byte {
	return encode(lhs.encode)
}

func (lhs *LedgerHeaderWithSignatures) encode(e *encoder) {
	authors := make([]Address, 0, len(lhs.Signatures))
	for a := range lhs.Signatures {
		authors = append(authors, a)
	}
	sort.Slice(authors, func(i, j int) bool { return bytes.Compare(authors[i][:], authors[j][:]) < 0 })

	e.message(lhs.Header.encode)
	e.repeated(len(authors), func(i int, e *encoder) {
		e.bytes(authors[i][:])
		e.bytes(lhs.Signatures[authors[i]])
	})
}

func decodeLedgerHeaderWithSignatures(d *decoder) *LedgerHeaderWithSignatures {
	lhs := &LedgerHeaderWithSignatures{Signatures: make(map[Address][]byte)}
	d.message(func(d *decoder) { lhs.Header = decodeLedgerHeader(d) })
	d.repeated(func(d *decoder) {
		addrBz, sig := d.bytes(), d.bytes()
		if d.err != nil {
			return
		}
		addr, err := addressFromBytes(addrBz)
		if err != nil {
			d.failf("signer: %w", err)
			return
		}
		if _, dup := lhs.Signatures[addr]; dup {
			d.failf("duplicate signature by %v", addr)
			return
		}
		lhs.Signatures[addr] = sig
	})
	if d.err != nil {
		return nil
	}
	return lhs
}

// UnmarshalLedgerHeaderWithSignatures decodes the canonical encoding.
func UnmarshalLedgerHeaderWithSignatures(bz []byte) (*LedgerHeaderWithSignatures, error) {
	var lhs *LedgerHeaderWithSignatures
	if err := decode(bz, func(d *decoder) { lhs = decodeLedgerHeaderWithSignatures(d) }); err != nil {
		return nil, fmt.Errorf("ledger header with signatures: %w", err)
	}
	return lhs, lhs.ValidateBasic()
}
