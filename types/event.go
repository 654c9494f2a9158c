package types

import (
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
)

// Event type tags.
const (
	EventTypeNewBlock        = "NewBlockEvent"
	EventTypeSentPayment     = "SentPaymentEvent"
	EventTypeReceivedPayment = "ReceivedPaymentEvent"
)

// ContractEvent is an event emitted by a transaction to an event stream.
type ContractEvent struct {
	Key            EventKey
	SequenceNumber uint64
	TypeTag        string
	Data           []byte
}

func (ev *ContractEvent) Hash() crypto.HashValue {
	return crypto.HashOf(crypto.DomainContractEvent, encode(ev.encode))
}

func (ev *ContractEvent) encode(e *encoder) {
	e.bytes(ev.Key[:])
	e.uint64(ev.SequenceNumber)
	e.string(ev.TypeTag)
	e.bytes(ev.Data)
}

func decodeContractEvent(d *decoder) ContractEvent {
	return ContractEvent{
		Key:            d.eventKey(),
		SequenceNumber: d.uint64(),
		TypeTag:        d.string(),
		Data:           d.bytes(),
	}
}

func (ev ContractEvent) String() string {
	return fmt.Sprintf("ContractEvent{%v #%d %s}", ev.Key, ev.SequenceNumber, ev.TypeTag)
}

// EventRootHash is the root of the event accumulator of one transaction.
func EventRootHash(events []ContractEvent) crypto.HashValue {
	hashes := make([]crypto.HashValue, len(events))
	for i := range events {
		hashes[i] = events[i].Hash()
	}
	return merkle.RootHashOf(merkle.EventAccumulator, hashes)
}

// NewBlockEvent is emitted by the root account at the start of every block.
type NewBlockEvent struct {
	Round        uint64
	Proposer     Address
	ProposedTime uint64
}

func (ev NewBlockEvent) Marshal() []byte {
	return encode(func(e *encoder) {
		e.uint64(ev.Round)
		e.bytes(ev.Proposer[:])
		e.uint64(ev.ProposedTime)
	})
}

// NewBlockEventFromContractEvent decodes the payload of a block event.
func NewBlockEventFromContractEvent(ev *ContractEvent) (NewBlockEvent, error) {
	if ev.TypeTag != EventTypeNewBlock {
		return NewBlockEvent{}, fmt.Errorf("expected %s, got %s", EventTypeNewBlock, ev.TypeTag)
	}
	var nb NewBlockEvent
	err := decode(ev.Data, func(d *decoder) {
		nb.Round = d.uint64()
		nb.Proposer = d.address()
		nb.ProposedTime = d.uint64()
	})
	if err != nil {
		return NewBlockEvent{}, fmt.Errorf("new block event: %w", err)
	}
	return nb, nil
}

// PaymentEvent is the payload of sent and received payment events.
type PaymentEvent struct {
	Amount       uint64
	Currency     string
	Counterparty Address
	Metadata     []byte
}

func (ev PaymentEvent) Marshal() []byte {
	return encode(func(e *encoder) {
		e.uint64(ev.Amount)
		e.string(ev.Currency)
		e.bytes(ev.Counterparty[:])
		e.bytes(ev.Metadata)
	})
}

// PaymentEventFromContractEvent decodes the payload of a payment event.
func PaymentEventFromContractEvent(ev *ContractEvent) (PaymentEvent, error) {
	if ev.TypeTag != EventTypeSentPayment && ev.TypeTag != EventTypeReceivedPayment {
		return PaymentEvent{}, fmt.Errorf("%s is not a payment event", ev.TypeTag)
	}
	var p PaymentEvent
	err := decode(ev.Data, func(d *decoder) {
		p.Amount = d.uint64()
		p.Currency = d.string()
		p.Counterparty = d.address()
		p.Metadata = d.bytes()
	})
	if err != nil {
		return PaymentEvent{}, fmt.Errorf("payment event: %w", err)
	}
	return p, nil
}
