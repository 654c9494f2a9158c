package types

import (
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// TransactionKind tells which of the transaction variants a Transaction is.
type TransactionKind uint8

const (
	TransactionKindGenesis TransactionKind = iota + 1
	TransactionKindBlockMetadata
	TransactionKindUser
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionKindGenesis:
		return "genesis"
	case TransactionKindBlockMetadata:
		return "blockmetadata"
	case TransactionKindUser:
		return "user"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Transaction is an entry of the ledger. Only the fields of its Kind are
// meaningful; the others are zero.
type Transaction struct {
	Kind TransactionKind

	// user
	Sender                  Address
	SequenceNumber          uint64
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	GasCurrencyCode         string
	ExpirationTimestampSecs uint64
	Payload                 []byte
	PublicKey               []byte
	Signature               []byte

	// blockmetadata
	Round          uint64
	TimestampUsecs uint64
	Proposer       Address

	// genesis
	WriteSet []byte
}

// NewBlockMetadataTransaction returns the transaction opening a block.
func NewBlockMetadataTransaction(round, timestampUsecs uint64, proposer Address) *Transaction {
	return &Transaction{
		Kind:           TransactionKindBlockMetadata,
		Round:          round,
		TimestampUsecs: timestampUsecs,
		Proposer:       proposer,
	}
}

// IsUser reports whether txn was submitted by an account.
func (txn *Transaction) IsUser() bool { return txn.Kind == TransactionKindUser }

func (txn *Transaction) ValidateBasic() error {
	switch txn.Kind {
	case TransactionKindGenesis, TransactionKindBlockMetadata, TransactionKindUser:
		return nil
	default:
		return fmt.Errorf("unknown transaction kind %d", txn.Kind)
	}
}

// Hash is the transaction hash committed to by TransactionInfo.
func (txn *Transaction) Hash() crypto.HashValue {
	return crypto.HashOf(crypto.DomainTransaction, txn.Marshal())
}

func (txn *Transaction) Marshal() []byte { return encode(txn.encode) }

func (txn *Transaction) encode(e *encoder) {
	e.uint64(uint64(txn.Kind))
	e.bytes(txn.Sender[:])
	e.uint64(txn.SequenceNumber)
	e.uint64(txn.MaxGasAmount)
	e.uint64(txn.GasUnitPrice)
	e.string(txn.GasCurrencyCode)
	e.uint64(txn.ExpirationTimestampSecs)
	e.bytes(txn.Payload)
	e.bytes(txn.PublicKey)
	e.bytes(txn.Signature)
	e.uint64(txn.Round)
	e.uint64(txn.TimestampUsecs)
	e.bytes(txn.Proposer[:])
	e.bytes(txn.WriteSet)
}

func decodeTransaction(d *decoder) *Transaction {
	txn := &Transaction{}
	txn.Kind = TransactionKind(d.uint64())
	txn.Sender = d.address()
	txn.SequenceNumber = d.uint64()
	txn.MaxGasAmount = d.uint64()
	txn.GasUnitPrice = d.uint64()
	txn.GasCurrencyCode = d.string()
	txn.ExpirationTimestampSecs = d.uint64()
	txn.Payload = d.bytes()
	txn.PublicKey = d.bytes()
	txn.Signature = d.bytes()
	txn.Round = d.uint64()
	txn.TimestampUsecs = d.uint64()
	txn.Proposer = d.address()
	txn.WriteSet = d.bytes()
	if d.err == nil {
		if err := txn.ValidateBasic(); err != nil {
			d.failf("transaction: %w", err)
		}
	}
	return txn
}

// UnmarshalTransaction decodes a transaction, for example a submitted one.
func UnmarshalTransaction(bz []byte) (*Transaction, error) {
	var txn *Transaction
	if err := decode(bz, func(d *decoder) { txn = decodeTransaction(d) }); err != nil {
		return nil, fmt.Errorf("transaction: %w", err)
	}
	return txn, nil
}

// VMStatus is the outcome of executing a transaction.
type VMStatus uint8

const (
	VMStatusExecuted VMStatus = iota
	VMStatusOutOfGas
	VMStatusMoveAbort
	VMStatusExecutionFailure
	VMStatusMiscellaneousError
)

func (s VMStatus) IsExecuted() bool { return s == VMStatusExecuted }

func (s VMStatus) String() string {
	switch s {
	case VMStatusExecuted:
		return "executed"
	case VMStatusOutOfGas:
		return "out_of_gas"
	case VMStatusMoveAbort:
		return "move_abort"
	case VMStatusExecutionFailure:
		return "execution_failure"
	case VMStatusMiscellaneousError:
		return "miscellaneous_error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// TransactionInfo is the leaf of the transaction accumulator. It commits to
// the transaction, the state after it and the events it emitted.
type TransactionInfo struct {
	TransactionHash crypto.HashValue
	StateRootHash   crypto.HashValue
	EventRootHash   crypto.HashValue
	GasUsed         uint64
	Status          VMStatus
}

func (info *TransactionInfo) Hash() crypto.HashValue {
	return crypto.HashOf(crypto.DomainTransactionInfo, encode(info.encode))
}

func (info *TransactionInfo) encode(e *encoder) {
	e.hash(info.TransactionHash)
	e.hash(info.StateRootHash)
	e.hash(info.EventRootHash)
	e.uint64(info.GasUsed)
	e.uint64(uint64(info.Status))
}

func decodeTransactionInfo(d *decoder) TransactionInfo {
	return TransactionInfo{
		TransactionHash: d.hash(),
		StateRootHash:   d.hash(),
		EventRootHash:   d.hash(),
		GasUsed:         d.uint64(),
		Status:          VMStatus(d.uint64()),
	}
}

func (d *decoder) address() Address {
	bz := d.bytes()
	if d.err != nil {
		return Address{}
	}
	addr, err := addressFromBytes(bz)
	if err != nil {
		d.failf("field %d: %w", d.field, err)
	}
	return addr
}

func (d *decoder) eventKey() EventKey {
	bz := d.bytes()
	if d.err != nil {
		return EventKey{}
	}
	key, err := eventKeyFromBytes(bz)
	if err != nil {
		d.failf("field %d: %w", d.field, err)
	}
	return key
}
