package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ledgerlight/ledgerlight/crypto"
)

const (
	// AddressLength is the size of an account address in bytes.
	AddressLength = 16
	// EventKeyLength is the size of an event stream key in bytes.
	EventKeyLength = 8 + AddressLength

	newBlockEventCreationNumber = 17
)

// Address identifies an account and, for validators, the signer of a ledger
// header.
type Address [AddressLength]byte

// RootAddress is the account holding on-chain configuration.
var RootAddress = Address{12: 0x0A, 13: 0x55, 14: 0x0C, 15: 0x18}

// AddressFromHex parses a hex encoded address, with or without a 0x prefix.
func AddressFromHex(s string) (Address, error) {
	var addr Address
	bz, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(bz) != AddressLength {
		return addr, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, AddressLength, len(bz))
	}
	copy(addr[:], bz)
	return addr, nil
}

// AddressFromPubKey derives an address from the hash of a public key.
func AddressFromPubKey(pk crypto.PubKey) Address {
	var addr Address
	h := crypto.HashOf(crypto.DomainAccountAddress, pk.Bytes())
	copy(addr[:], h[crypto.HashSize-AddressLength:])
	return addr
}

func addressFromBytes(bz []byte) (Address, error) {
	var addr Address
	if len(bz) != AddressLength {
		return addr, fmt.Errorf("invalid address length: expected %d bytes, got %d", AddressLength, len(bz))
	}
	copy(addr[:], bz)
	return addr, nil
}

func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// Hash is the key of the account in the state tree.
func (a Address) Hash() crypto.HashValue {
	return crypto.HashOf(crypto.DomainAccountAddress, a[:])
}

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(data []byte) error {
	addr, err := AddressFromHex(string(data))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// EventKey identifies an event stream: a creation number followed by the
// address of the account that owns the stream.
type EventKey [EventKeyLength]byte

// NewEventKey builds the key of the creationNumber-th stream of addr.
func NewEventKey(creationNumber uint64, addr Address) EventKey {
	var key EventKey
	binary.LittleEndian.PutUint64(key[:8], creationNumber)
	copy(key[8:], addr[:])
	return key
}

// NewBlockEventKey is the stream the root account emits one event to per block.
func NewBlockEventKey() EventKey {
	return NewEventKey(newBlockEventCreationNumber, RootAddress)
}

// EventKeyFromHex parses a hex encoded event key.
func EventKeyFromHex(s string) (EventKey, error) {
	var key EventKey
	bz, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return key, fmt.Errorf("invalid event key %q: %w", s, err)
	}
	if len(bz) != EventKeyLength {
		return key, fmt.Errorf("invalid event key %q: expected %d bytes, got %d", s, EventKeyLength, len(bz))
	}
	copy(key[:], bz)
	return key, nil
}

func eventKeyFromBytes(bz []byte) (EventKey, error) {
	return EventKeyFromHex(hex.EncodeToString(bz))
}

func (k EventKey) CreationNumber() uint64 { return binary.LittleEndian.Uint64(k[:8]) }

func (k EventKey) Address() Address {
	var addr Address
	copy(addr[:], k[8:])
	return addr
}

func (k EventKey) String() string { return hex.EncodeToString(k[:]) }

func (k EventKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EventKey) UnmarshalText(data []byte) error {
	key, err := EventKeyFromHex(string(data))
	if err != nil {
		return err
	}
	*k = key
	return nil
}
