package types

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
)

// TransactionInfoWithProof proves a TransactionInfo is the leaf at some
// version of the accumulator committed to by a ledger header.
type TransactionInfoWithProof struct {
	LedgerInfoToTransactionInfoProof merkle.AccumulatorProof
	TransactionInfo                  TransactionInfo
}

func (p *TransactionInfoWithProof) Verify(li *LedgerHeader, version uint64) error {
	if version > li.Version {
		return fmt.Errorf("version %d is past the ledger header version %d", version, li.Version)
	}
	return p.LedgerInfoToTransactionInfoProof.Verify(
		merkle.TransactionAccumulator,
		li.TransactionAccumulatorHash,
		p.TransactionInfo.Hash(),
		version,
	)
}

func (p *TransactionInfoWithProof) encode(e *encoder) {
	e.hashes(p.LedgerInfoToTransactionInfoProof.Siblings)
	e.message(p.TransactionInfo.encode)
}

func decodeTransactionInfoWithProof(d *decoder) TransactionInfoWithProof {
	var p TransactionInfoWithProof
	p.LedgerInfoToTransactionInfoProof.Siblings = d.hashes()
	d.message(func(d *decoder) { p.TransactionInfo = decodeTransactionInfo(d) })
	return p
}

// AccountStateWithProof proves the state of one account at one version.
// A nil Blob proves that the account does not exist.
type AccountStateWithProof struct {
	Version                       uint64
	Blob                          []byte
	TransactionInfoWithProof      TransactionInfoWithProof
	TransactionInfoToAccountProof merkle.SparseMerkleProof
}

// Verify checks the proof for address at version against li.
func (p *AccountStateWithProof) Verify(li *LedgerHeader, version uint64, address Address) error {
	if p.Version != version {
		return fmt.Errorf("account state is at version %d, expected %d", p.Version, version)
	}
	var valueHash *crypto.HashValue
	if p.Blob != nil {
		h := AccountStateBlobHash(p.Blob)
		valueHash = &h
	}
	if err := p.TransactionInfoToAccountProof.Verify(
		p.TransactionInfoWithProof.TransactionInfo.StateRootHash,
		address.Hash(),
		valueHash,
	); err != nil {
		return fmt.Errorf("account %v: %w", address, err)
	}
	return p.TransactionInfoWithProof.Verify(li, version)
}

// AccountState decodes the blob. It returns nil for an absent account.
func (p *AccountStateWithProof) AccountState() (*AccountState, error) {
	if p.Blob == nil {
		return nil, nil
	}
	return UnmarshalAccountState(p.Blob)
}

func (p *AccountStateWithProof) Marshal() []byte {
	return encode(func(e *encoder) {
		e.uint64(p.Version)
		e.optional(p.Blob != nil, func(e *encoder) { e.bytes(p.Blob) })
		e.message(p.TransactionInfoWithProof.encode)
		e.message(func(e *encoder) { encodeSparseMerkleProof(e, p.TransactionInfoToAccountProof) })
	})
}

func UnmarshalAccountStateWithProof(bz []byte) (*AccountStateWithProof, error) {
	p := &AccountStateWithProof{}
	err := decode(bz, func(d *decoder) {
		p.Version = d.uint64()
		d.optional(func(d *decoder) {
			p.Blob = d.bytes()
			if p.Blob == nil {
				p.Blob = []byte{}
			}
		})
		d.message(func(d *decoder) { p.TransactionInfoWithProof = decodeTransactionInfoWithProof(d) })
		d.message(func(d *decoder) { p.TransactionInfoToAccountProof = decodeSparseMerkleProof(d) })
	})
	if err != nil {
		return nil, fmt.Errorf("account state with proof: %w", err)
	}
	return p, nil
}

func encodeSparseMerkleProof(e *encoder, p merkle.SparseMerkleProof) {
	e.optional(p.Leaf != nil, func(e *encoder) {
		e.hash(p.Leaf.Key)
		e.hash(p.Leaf.ValueHash)
	})
	e.hashes(p.Siblings)
}

func decodeSparseMerkleProof(d *decoder) merkle.SparseMerkleProof {
	var p merkle.SparseMerkleProof
	d.optional(func(d *decoder) {
		p.Leaf = &merkle.SparseMerkleLeaf{Key: d.hash(), ValueHash: d.hash()}
	})
	p.Siblings = d.hashes()
	return p
}

// EventWithProof proves an event was emitted by the transaction at
// TransactionVersion as its EventIndex-th event.
type EventWithProof struct {
	TransactionVersion          uint64
	EventIndex                  uint64
	Event                       ContractEvent
	TransactionInfoWithProof    TransactionInfoWithProof
	TransactionInfoToEventProof merkle.AccumulatorProof
}

// Verify checks that the event is the seqNum-th event of the stream key,
// emitted at txnVersion as event eventIndex.
func (p *EventWithProof) Verify(li *LedgerHeader, key EventKey, seqNum, txnVersion, eventIndex uint64) error {
	switch {
	case p.Event.Key != key:
		return fmt.Errorf("event key mismatch: expected %v, got %v", key, p.Event.Key)
	case p.Event.SequenceNumber != seqNum:
		return fmt.Errorf("event sequence number mismatch: expected %d, got %d", seqNum, p.Event.SequenceNumber)
	case p.TransactionVersion != txnVersion:
		return fmt.Errorf("event transaction version mismatch: expected %d, got %d", txnVersion, p.TransactionVersion)
	case p.EventIndex != eventIndex:
		return fmt.Errorf("event index mismatch: expected %d, got %d", eventIndex, p.EventIndex)
	}
	if err := p.TransactionInfoToEventProof.Verify(
		merkle.EventAccumulator,
		p.TransactionInfoWithProof.TransactionInfo.EventRootHash,
		p.Event.Hash(),
		eventIndex,
	); err != nil {
		return fmt.Errorf("event %v #%d: %w", key, seqNum, err)
	}
	return p.TransactionInfoWithProof.Verify(li, txnVersion)
}

func (p *EventWithProof) Marshal() []byte { return encode(p.encode) }

func (p *EventWithProof) encode(e *encoder) {
	e.uint64(p.TransactionVersion)
	e.uint64(p.EventIndex)
	e.message(p.Event.encode)
	e.message(p.TransactionInfoWithProof.encode)
	e.hashes(p.TransactionInfoToEventProof.Siblings)
}

func decodeEventWithProof(d *decoder) *EventWithProof {
	p := &EventWithProof{}
	p.TransactionVersion = d.uint64()
	p.EventIndex = d.uint64()
	d.message(func(d *decoder) { p.Event = decodeContractEvent(d) })
	d.message(func(d *decoder) { p.TransactionInfoWithProof = decodeTransactionInfoWithProof(d) })
	p.TransactionInfoToEventProof.Siblings = d.hashes()
	return p
}

func UnmarshalEventWithProof(bz []byte) (*EventWithProof, error) {
	var p *EventWithProof
	if err := decode(bz, func(d *decoder) { p = decodeEventWithProof(d) }); err != nil {
		return nil, fmt.Errorf("event with proof: %w", err)
	}
	return p, nil
}

// EventByVersionWithProof proves which event of a stream was the latest one
// at a version: LowerBoundIncl is the last event at or before the version,
// UpperBoundExcl the first event after it. Either may be absent.
type EventByVersionWithProof struct {
	LowerBoundIncl *EventWithProof
	UpperBoundExcl *EventWithProof
}

// Verify checks the bounds for stream key at version. eventCount is the
// number of events in the stream at li, if known; without it an absent
// upper bound cannot be proven and the caller must establish it otherwise.
func (p *EventByVersionWithProof) Verify(li *LedgerHeader, key EventKey, eventCount *uint64, version uint64) error {
	if version > li.Version {
		return fmt.Errorf("version %d is past the ledger header version %d", version, li.Version)
	}

	lower, upper := p.LowerBoundIncl, p.UpperBoundExcl
	if lower != nil {
		if lower.TransactionVersion > version {
			return fmt.Errorf("lower bound event at version %d is after version %d", lower.TransactionVersion, version)
		}
		if err := lower.Verify(li, key, lower.Event.SequenceNumber, lower.TransactionVersion, lower.EventIndex); err != nil {
			return fmt.Errorf("lower bound: %w", err)
		}
	}
	if upper != nil {
		if upper.TransactionVersion <= version {
			return fmt.Errorf("upper bound event at version %d is not after version %d", upper.TransactionVersion, version)
		}
		if err := upper.Verify(li, key, upper.Event.SequenceNumber, upper.TransactionVersion, upper.EventIndex); err != nil {
			return fmt.Errorf("upper bound: %w", err)
		}
	}

	switch {
	case lower == nil && upper == nil:
		if eventCount != nil && *eventCount != 0 {
			return fmt.Errorf("no bounds given for a stream of %d events", *eventCount)
		}
	case lower != nil && upper == nil:
		if eventCount != nil && lower.Event.SequenceNumber+1 != *eventCount {
			return fmt.Errorf("lower bound #%d is not the last of %d events", lower.Event.SequenceNumber, *eventCount)
		}
	case lower == nil && upper != nil:
		if upper.Event.SequenceNumber != 0 {
			return fmt.Errorf("upper bound #%d is not the first event of the stream", upper.Event.SequenceNumber)
		}
	default:
		if upper.Event.SequenceNumber != lower.Event.SequenceNumber+1 {
			return fmt.Errorf("bounds #%d and #%d are not adjacent", lower.Event.SequenceNumber, upper.Event.SequenceNumber)
		}
	}
	return nil
}

func (p *EventByVersionWithProof) Marshal() []byte {
	return encode(func(e *encoder) {
		e.optional(p.LowerBoundIncl != nil, func(e *encoder) { p.LowerBoundIncl.encode(e) })
		e.optional(p.UpperBoundExcl != nil, func(e *encoder) { p.UpperBoundExcl.encode(e) })
	})
}

func UnmarshalEventByVersionWithProof(bz []byte) (*EventByVersionWithProof, error) {
	p := &EventByVersionWithProof{}
	err := decode(bz, func(d *decoder) {
		d.optional(func(d *decoder) { p.LowerBoundIncl = decodeEventWithProof(d) })
		d.optional(func(d *decoder) { p.UpperBoundExcl = decodeEventWithProof(d) })
	})
	if err != nil {
		return nil, fmt.Errorf("event by version with proof: %w", err)
	}
	return p, nil
}

// TransactionListWithProof proves a contiguous range of transactions.
type TransactionListWithProof struct {
	Transactions []*Transaction
	// Events is nil unless events were requested; then it has one list per
	// transaction.
	Events                  [][]ContractEvent
	FirstTransactionVersion *uint64
	TransactionInfos        []TransactionInfo
	RangeProof              merkle.AccumulatorRangeProof
}

// Verify checks the list against li. firstVersion must equal the version of
// the first transaction, or be nil for an empty list.
func (p *TransactionListWithProof) Verify(li *LedgerHeader, firstVersion *uint64) error {
	switch {
	case (firstVersion == nil) != (p.FirstTransactionVersion == nil):
		return errors.New("first transaction version presence mismatch")
	case firstVersion != nil && *firstVersion != *p.FirstTransactionVersion:
		return fmt.Errorf("first transaction version mismatch: expected %d, got %d", *firstVersion, *p.FirstTransactionVersion)
	case len(p.Transactions) != len(p.TransactionInfos):
		return fmt.Errorf("%d transactions but %d transaction infos", len(p.Transactions), len(p.TransactionInfos))
	case p.Events != nil && len(p.Events) != len(p.Transactions):
		return fmt.Errorf("%d transactions but %d event lists", len(p.Transactions), len(p.Events))
	}
	if p.FirstTransactionVersion != nil && len(p.Transactions) > 0 {
		last := *p.FirstTransactionVersion + uint64(len(p.Transactions)) - 1
		if last < *p.FirstTransactionVersion || last > li.Version {
			return fmt.Errorf("transactions up to version %d are past the ledger header version %d", last, li.Version)
		}
	}

	leaves := make([]crypto.HashValue, len(p.TransactionInfos))
	for i := range p.TransactionInfos {
		info := &p.TransactionInfos[i]
		if h := p.Transactions[i].Hash(); h != info.TransactionHash {
			return fmt.Errorf("transaction #%d hash %v does not match its info %v", i, h, info.TransactionHash)
		}
		if p.Events != nil {
			if root := EventRootHash(p.Events[i]); root != info.EventRootHash {
				return fmt.Errorf("events of transaction #%d have root %v, info has %v", i, root, info.EventRootHash)
			}
		}
		leaves[i] = info.Hash()
	}

	if err := p.RangeProof.Verify(merkle.TransactionAccumulator, li.TransactionAccumulatorHash, p.FirstTransactionVersion, leaves); err != nil {
		return fmt.Errorf("transaction range: %w", err)
	}
	return nil
}

// TransactionWithProof proves one transaction at Version.
type TransactionWithProof struct {
	Version     uint64
	Transaction *Transaction
	// Events is nil unless events were requested.
	Events []ContractEvent
	Proof  TransactionInfoWithProof
}

// VerifyUserTransaction checks that the transaction at Version is the
// seqNum-th transaction sent by sender.
func (p *TransactionWithProof) VerifyUserTransaction(li *LedgerHeader, sender Address, seqNum uint64, includeEvents bool) error {
	txn := p.Transaction
	switch {
	case txn == nil:
		return errors.New("missing transaction")
	case !txn.IsUser():
		return fmt.Errorf("transaction at version %d is a %v transaction", p.Version, txn.Kind)
	case txn.Sender != sender:
		return fmt.Errorf("transaction at version %d is sent by %v, expected %v", p.Version, txn.Sender, sender)
	case txn.SequenceNumber != seqNum:
		return fmt.Errorf("transaction at version %d has sequence number %d, expected %d", p.Version, txn.SequenceNumber, seqNum)
	case includeEvents != (p.Events != nil):
		return fmt.Errorf("expected events: %v, received events: %v", includeEvents, p.Events != nil)
	}
	info := &p.Proof.TransactionInfo
	if h := txn.Hash(); h != info.TransactionHash {
		return fmt.Errorf("transaction hash %v does not match its info %v", h, info.TransactionHash)
	}
	if p.Events != nil {
		if root := EventRootHash(p.Events); root != info.EventRootHash {
			return fmt.Errorf("events have root %v, info has %v", root, info.EventRootHash)
		}
	}
	return p.Proof.Verify(li, p.Version)
}

// AccountTransactionsWithProof proves consecutive transactions sent by one
// account. The server may return a prefix of what was asked for.
type AccountTransactionsWithProof struct {
	Transactions []*TransactionWithProof
}

// Verify checks the list against li: at most limit transactions from sender
// starting at startSeqNum, at strictly increasing versions.
func (p *AccountTransactionsWithProof) Verify(
	li *LedgerHeader,
	sender Address,
	startSeqNum, limit uint64,
	includeEvents bool,
) error {
	if uint64(len(p.Transactions)) > limit {
		return fmt.Errorf("more transactions than limit: limit %d, received %d", limit, len(p.Transactions))
	}
	for i, txn := range p.Transactions {
		if txn == nil {
			return fmt.Errorf("transaction #%d is missing", i)
		}
		if i > 0 && txn.Version <= p.Transactions[i-1].Version {
			return fmt.Errorf("transaction #%d at version %d is not after version %d", i, txn.Version, p.Transactions[i-1].Version)
		}
		if err := txn.VerifyUserTransaction(li, sender, startSeqNum+uint64(i), includeEvents); err != nil {
			return fmt.Errorf("transaction #%d: %w", i, err)
		}
	}
	return nil
}

func (p *TransactionWithProof) encode(e *encoder) {
	e.uint64(p.Version)
	e.message(p.Transaction.encode)
	e.optional(p.Events != nil, func(e *encoder) { encodeEvents(e, p.Events) })
	e.message(p.Proof.encode)
}

func decodeTransactionWithProof(d *decoder) *TransactionWithProof {
	p := &TransactionWithProof{}
	p.Version = d.uint64()
	d.message(func(d *decoder) { p.Transaction = decodeTransaction(d) })
	d.optional(func(d *decoder) { p.Events = decodeEvents(d) })
	d.message(func(d *decoder) { p.Proof = decodeTransactionInfoWithProof(d) })
	return p
}

func (p *AccountTransactionsWithProof) Marshal() []byte {
	return encode(func(e *encoder) {
		e.repeated(len(p.Transactions), func(i int, e *encoder) { p.Transactions[i].encode(e) })
	})
}

func UnmarshalAccountTransactionsWithProof(bz []byte) (*AccountTransactionsWithProof, error) {
	p := &AccountTransactionsWithProof{}
	err := decode(bz, func(d *decoder) {
		d.repeated(func(d *decoder) { p.Transactions = append(p.Transactions, decodeTransactionWithProof(d)) })
	})
	if err != nil {
		return nil, fmt.Errorf("account transactions with proof: %w", err)
	}
	return p, nil
}

func encodeEvents(e *encoder, events []ContractEvent) {
	e.repeated(len(events), func(i int, e *encoder) { events[i].encode(e) })
}

// decodeEvents never returns nil so that a present but empty list stays
// distinguishable from an absent one.
func decodeEvents(d *decoder) []ContractEvent {
	events := []ContractEvent{}
	d.repeated(func(d *decoder) { events = append(events, decodeContractEvent(d)) })
	return events
}

// MarshalTransactions encodes the transactions of a list proof.
func (p *TransactionListWithProof) MarshalTransactions() [][]byte {
	out := make([][]byte, len(p.Transactions))
	for i, txn := range p.Transactions {
		out[i] = txn.Marshal()
	}
	return out
}

// MarshalEvents encodes the per-transaction event lists, or returns nil.
func (p *TransactionListWithProof) MarshalEvents() [][]byte {
	if p.Events == nil {
		return nil
	}
	out := make([][]byte, len(p.Events))
	for i := range p.Events {
		out[i] = encode(func(e *encoder) { encodeEvents(e, p.Events[i]) })
	}
	return out
}

// MarshalProof encodes the infos and the range proof.
func (p *TransactionListWithProof) MarshalProof() []byte {
	return encode(func(e *encoder) {
		e.repeated(len(p.TransactionInfos), func(i int, e *encoder) { p.TransactionInfos[i].encode(e) })
		e.hashes(p.RangeProof.LeftSiblings)
		e.hashes(p.RangeProof.RightSiblings)
	})
}

// UnmarshalTransactionListWithProof reassembles a list proof from the parts
// served by get_transactions_with_proofs. events is nil when events were not
// requested.
func UnmarshalTransactionListWithProof(
	firstVersion uint64,
	txns [][]byte,
	events [][]byte,
	proof []byte,
) (*TransactionListWithProof, error) {
	p := &TransactionListWithProof{}
	if len(txns) > 0 {
		v := firstVersion
		p.FirstTransactionVersion = &v
	}
	for i, bz := range txns {
		txn, err := UnmarshalTransaction(bz)
		if err != nil {
			return nil, fmt.Errorf("transaction #%d: %w", i, err)
		}
		p.Transactions = append(p.Transactions, txn)
	}
	if events != nil {
		p.Events = make([][]ContractEvent, len(events))
		for i, bz := range events {
			if err := decode(bz, func(d *decoder) { p.Events[i] = decodeEvents(d) }); err != nil {
				return nil, fmt.Errorf("events of transaction #%d: %w", i, err)
			}
		}
	}
	err := decode(proof, func(d *decoder) {
		d.repeated(func(d *decoder) {
			p.TransactionInfos = append(p.TransactionInfos, decodeTransactionInfo(d))
		})
		p.RangeProof.LeftSiblings = d.hashes()
		p.RangeProof.RightSiblings = d.hashes()
	})
	if err != nil {
		return nil, fmt.Errorf("transaction list proof: %w", err)
	}
	return p, nil
}
