package factory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/ed25519"
	"github.com/ledgerlight/ledgerlight/types"
)

// Payload operations understood by the chain.
const (
	opPayment byte = iota + 1
	opCreateAccount
)

// Signer owns an account key.
type Signer struct {
	Key     ed25519.PrivKey
	Address types.Address
}

func NewSigner(secret string) Signer {
	key := ed25519.GenPrivKeyFromSecret([]byte(secret))
	return Signer{Key: key, Address: types.AddressFromPubKey(key.PubKey())}
}

// AuthenticationKey is the hash of the signer's public key.
func (s Signer) AuthenticationKey() []byte {
	return authenticationKey(s.Key.PubKey().(ed25519.PubKey))
}

// Sign fills in the sender fields of txn and signs it.
func (s Signer) Sign(txn *types.Transaction) *types.Transaction {
	txn.Kind = types.TransactionKindUser
	txn.Sender = s.Address
	txn.PublicKey = s.Key.PubKey().Bytes()
	txn.Signature = nil
	sig, err := s.Key.Sign(txn.Marshal())
	if err != nil {
		panic(err)
	}
	txn.Signature = sig
	return txn
}

// Transfer returns a signed payment of amount from s to to.
func (s Signer) Transfer(seq uint64, to types.Address, amount uint64, currency string) *types.Transaction {
	payload := make([]byte, 0, 1+types.AddressLength+8+len(currency))
	payload = append(payload, opPayment)
	payload = append(payload, to[:]...)
	payload = appendUint64(payload, amount)
	payload = append(payload, currency...)
	return s.Sign(userTransaction(seq, payload))
}

// CreateAccount returns a signed transaction creating an account for owner
// funded with balances.
func (s Signer) CreateAccount(seq uint64, owner Signer, balances ...types.Balance) *types.Transaction {
	payload := []byte{opCreateAccount}
	payload = append(payload, owner.Address[:]...)
	payload = append(payload, owner.AuthenticationKey()...)
	for _, b := range balances {
		payload = appendUint64(payload, b.Amount)
		payload = append(payload, byte(len(b.Currency)))
		payload = append(payload, b.Currency...)
	}
	return s.Sign(userTransaction(seq, payload))
}

// WithExpiration re-signs txn with another expiration time.
func (s Signer) WithExpiration(txn *types.Transaction, secs uint64) *types.Transaction {
	txn.ExpirationTimestampSecs = secs
	return s.Sign(txn)
}

func userTransaction(seq uint64, payload []byte) *types.Transaction {
	return &types.Transaction{
		Kind:                    types.TransactionKindUser,
		SequenceNumber:          seq,
		MaxGasAmount:            1_000_000,
		GasUnitPrice:            0,
		GasCurrencyCode:         "XUS",
		ExpirationTimestampSecs: math.MaxUint32,
		Payload:                 payload,
	}
}

func verifyTransactionSignature(txn *types.Transaction, authKey []byte) error {
	pub, err := ed25519.PubKeyFromBytes(txn.PublicKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(authenticationKey(pub), authKey) {
		return errors.New("public key does not match the authentication key")
	}
	unsigned := *txn
	unsigned.Signature = nil
	if !pub.VerifySignature(unsigned.Marshal(), txn.Signature) {
		return errors.New("invalid transaction signature")
	}
	return nil
}

func authenticationKey(pub ed25519.PubKey) []byte {
	return crypto.HashOf(crypto.DomainAccountAddress, pub.Bytes()).Bytes()
}

type payment struct {
	to       types.Address
	amount   uint64
	currency string
}

type accountCreation struct {
	owner    types.Address
	authKey  []byte
	balances []types.Balance
}

func decodePayload(bz []byte) (interface{}, error) {
	if len(bz) == 0 {
		return nil, errors.New("empty payload")
	}
	op, bz := bz[0], bz[1:]
	switch op {
	case opPayment:
		if len(bz) < types.AddressLength+8 {
			return nil, errors.New("short payment payload")
		}
		var p payment
		copy(p.to[:], bz)
		p.amount = binary.BigEndian.Uint64(bz[types.AddressLength:])
		p.currency = string(bz[types.AddressLength+8:])
		return p, nil
	case opCreateAccount:
		if len(bz) < types.AddressLength+crypto.HashSize {
			return nil, errors.New("short account creation payload")
		}
		var c accountCreation
		copy(c.owner[:], bz)
		c.authKey = append([]byte(nil), bz[types.AddressLength:types.AddressLength+crypto.HashSize]...)
		bz = bz[types.AddressLength+crypto.HashSize:]
		for len(bz) > 0 {
			if len(bz) < 9 || len(bz) < 9+int(bz[8]) {
				return nil, errors.New("short balance")
			}
			n := int(bz[8])
			c.balances = append(c.balances, types.Balance{Amount: binary.BigEndian.Uint64(bz), Currency: string(bz[9 : 9+n])})
			bz = bz[9+n:]
		}
		return c, nil
	default:
		return nil, errors.New("unknown payload operation")
	}
}

func appendUint64(bz []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(bz, buf[:]...)
}
