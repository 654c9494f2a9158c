package coretypes

import (
	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
	"github.com/ledgerlight/ledgerlight/libs/bytes"
	"github.com/ledgerlight/ledgerlight/types"
)

// Proof views carry the canonical encoding of the proof types, hex encoded.

type StateProofView struct {
	LedgerInfoWithSignatures bytes.HexBytes `json:"ledger_info_with_signatures"`
	EpochChangeProof         bytes.HexBytes `json:"epoch_change_proof"`
	LedgerConsistencyProof   bytes.HexBytes `json:"ledger_consistency_proof"`
}

func NewStateProofView(p *types.StateProof) StateProofView {
	target, changes, consistency := p.Marshal()
	return StateProofView{
		LedgerInfoWithSignatures: target,
		EpochChangeProof:         changes,
		LedgerConsistencyProof:   consistency,
	}
}

func (v StateProofView) Decode() (*types.StateProof, error) {
	return types.UnmarshalStateProof(v.LedgerInfoWithSignatures, v.EpochChangeProof, v.LedgerConsistencyProof)
}

type AccumulatorConsistencyProofView struct {
	LedgerConsistencyProof bytes.HexBytes `json:"ledger_consistency_proof"`
}

func NewAccumulatorConsistencyProofView(p merkle.ConsistencyProof) AccumulatorConsistencyProofView {
	return AccumulatorConsistencyProofView{LedgerConsistencyProof: types.MarshalConsistencyProof(p)}
}

func (v AccumulatorConsistencyProofView) Decode() (merkle.ConsistencyProof, error) {
	return types.UnmarshalConsistencyProof(v.LedgerConsistencyProof)
}

type AccountStateWithProofView struct {
	Proof bytes.HexBytes `json:"proof"`
}

func NewAccountStateWithProofView(p *types.AccountStateWithProof) AccountStateWithProofView {
	return AccountStateWithProofView{Proof: p.Marshal()}
}

func (v AccountStateWithProofView) Decode() (*types.AccountStateWithProof, error) {
	return types.UnmarshalAccountStateWithProof(v.Proof)
}

type TransactionsWithProofsView struct {
	FirstTransactionVersion uint64           `json:"first_transaction_version"`
	SerializedTransactions  []bytes.HexBytes `json:"serialized_transactions"`
	// SerializedEvents is absent unless events were requested.
	SerializedEvents []bytes.HexBytes `json:"serialized_events,omitempty"`
	Proofs           bytes.HexBytes   `json:"proofs"`
}

// NewTransactionsWithProofsView returns nil for an empty list.
func NewTransactionsWithProofsView(p *types.TransactionListWithProof) *TransactionsWithProofsView {
	if p.FirstTransactionVersion == nil {
		return nil
	}
	return &TransactionsWithProofsView{
		FirstTransactionVersion: *p.FirstTransactionVersion,
		SerializedTransactions:  toHex(p.MarshalTransactions()),
		SerializedEvents:        toHex(p.MarshalEvents()),
		Proofs:                  p.MarshalProof(),
	}
}

// HasEvents reports whether the server included events.
func (v *TransactionsWithProofsView) HasEvents() bool { return v.SerializedEvents != nil }

func (v *TransactionsWithProofsView) Decode() (*types.TransactionListWithProof, error) {
	return types.UnmarshalTransactionListWithProof(
		v.FirstTransactionVersion,
		fromHex(v.SerializedTransactions),
		fromHex(v.SerializedEvents),
		v.Proofs,
	)
}

type AccountTransactionsWithProofsView struct {
	Proof bytes.HexBytes `json:"proof"`
}

func NewAccountTransactionsWithProofsView(p *types.AccountTransactionsWithProof) AccountTransactionsWithProofsView {
	return AccountTransactionsWithProofsView{Proof: p.Marshal()}
}

func (v AccountTransactionsWithProofsView) Decode() (*types.AccountTransactionsWithProof, error) {
	return types.UnmarshalAccountTransactionsWithProof(v.Proof)
}

type EventWithProofView struct {
	EventWithProof bytes.HexBytes `json:"event_with_proof"`
}

func NewEventWithProofView(p *types.EventWithProof) EventWithProofView {
	return EventWithProofView{EventWithProof: p.Marshal()}
}

func (v EventWithProofView) Decode() (*types.EventWithProof, error) {
	return types.UnmarshalEventWithProof(v.EventWithProof)
}

type EventByVersionWithProofView struct {
	Proof bytes.HexBytes `json:"proof"`
}

func NewEventByVersionWithProofView(p *types.EventByVersionWithProof) EventByVersionWithProofView {
	return EventByVersionWithProofView{Proof: p.Marshal()}
}

func (v EventByVersionWithProofView) Decode() (*types.EventByVersionWithProof, error) {
	return types.UnmarshalEventByVersionWithProof(v.Proof)
}

func toHex(items [][]byte) []bytes.HexBytes {
	if items == nil {
		return nil
	}
	out := make([]bytes.HexBytes, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

func fromHex(items []bytes.HexBytes) [][]byte {
	if items == nil {
		return nil
	}
	out := make([][]byte, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

// Views of verified values.

type AmountView struct {
	Amount   uint64 `json:"amount"`
	Currency string `json:"currency"`
}

type AccountView struct {
	Address           types.Address  `json:"address"`
	Version           uint64         `json:"version"`
	SequenceNumber    uint64         `json:"sequence_number"`
	AuthenticationKey bytes.HexBytes `json:"authentication_key"`
	SentEventsKey     types.EventKey `json:"sent_events_key"`
	ReceivedEventsKey types.EventKey `json:"received_events_key"`
	Balances          []AmountView   `json:"balances"`
	Role              string         `json:"role"`
	IsFrozen          bool           `json:"is_frozen"`
}

func NewAccountView(addr types.Address, state *types.AccountState, version uint64) *AccountView {
	r := &state.Account
	view := &AccountView{
		Address:           addr,
		Version:           version,
		SequenceNumber:    r.SequenceNumber,
		AuthenticationKey: r.AuthenticationKey,
		SentEventsKey:     r.SentEventsKey,
		ReceivedEventsKey: r.ReceivedEventsKey,
		Balances:          make([]AmountView, 0, len(r.Balances)),
		Role:              r.Role,
		IsFrozen:          r.IsFrozen,
	}
	for _, b := range r.Balances {
		view.Balances = append(view.Balances, AmountView{Amount: b.Amount, Currency: b.Currency})
	}
	return view
}

type MetadataView struct {
	Version             uint64           `json:"version"`
	AccumulatorRootHash crypto.HashValue `json:"accumulator_root_hash"`
	Timestamp           uint64           `json:"timestamp"`
	ChainID             uint8            `json:"chain_id"`
	// Only set for the latest version.
	ScriptHashAllowList     []crypto.HashValue `json:"script_hash_allow_list,omitempty"`
	ModulePublishingAllowed *bool              `json:"module_publishing_allowed,omitempty"`
	ProtocolVersion         *uint64            `json:"protocol_version,omitempty"`
}

func NewMetadataView(version uint64, root crypto.HashValue, timestamp uint64, chainID uint8) MetadataView {
	return MetadataView{Version: version, AccumulatorRootHash: root, Timestamp: timestamp, ChainID: chainID}
}

// WithChainConfig adds the on-chain configuration read from the root account.
func (v MetadataView) WithChainConfig(c *types.ChainConfig) MetadataView {
	allowed, protocol := c.ModulePublishingAllowed, c.ProtocolVersion
	v.ScriptHashAllowList = append([]crypto.HashValue{}, c.ScriptAllowList...)
	v.ModulePublishingAllowed = &allowed
	v.ProtocolVersion = &protocol
	return v
}

type CurrencyInfoView struct {
	Code                        string         `json:"code"`
	ScalingFactor               uint64         `json:"scaling_factor"`
	FractionalPart              uint64         `json:"fractional_part"`
	ToXDXExchangeRate           float64        `json:"to_xdx_exchange_rate"`
	MintEventsKey               types.EventKey `json:"mint_events_key"`
	BurnEventsKey               types.EventKey `json:"burn_events_key"`
	PreburnEventsKey            types.EventKey `json:"preburn_events_key"`
	CancelBurnEventsKey         types.EventKey `json:"cancel_burn_events_key"`
	ExchangeRateUpdateEventsKey types.EventKey `json:"exchange_rate_update_events_key"`
}

func NewCurrencyInfoView(c types.CurrencyInfo) CurrencyInfoView {
	return CurrencyInfoView{
		Code:                        c.Code,
		ScalingFactor:               c.ScalingFactor,
		FractionalPart:              c.FractionalPart,
		ToXDXExchangeRate:           c.ExchangeRate(),
		MintEventsKey:               c.MintEventsKey,
		BurnEventsKey:               c.BurnEventsKey,
		PreburnEventsKey:            c.PreburnEventsKey,
		CancelBurnEventsKey:         c.CancelBurnEventsKey,
		ExchangeRateUpdateEventsKey: c.ExchangeRateUpdateEventsKey,
	}
}

type EventDataView struct {
	Type string `json:"type"`

	// payment events
	Amount   *AmountView    `json:"amount,omitempty"`
	Sender   *types.Address `json:"sender,omitempty"`
	Receiver *types.Address `json:"receiver,omitempty"`
	Metadata bytes.HexBytes `json:"metadata,omitempty"`

	// new block events
	Round        uint64         `json:"round,omitempty"`
	Proposer     *types.Address `json:"proposer,omitempty"`
	ProposedTime uint64         `json:"proposed_time,omitempty"`

	// unknown events
	Bytes bytes.HexBytes `json:"bytes,omitempty"`
}

type EventView struct {
	Key                types.EventKey `json:"key"`
	SequenceNumber     uint64         `json:"sequence_number"`
	TransactionVersion uint64         `json:"transaction_version"`
	Data               EventDataView  `json:"data"`
}

// NewEventView projects an event emitted at version. Payloads that fail to
// decode are shown as raw bytes.
func NewEventView(version uint64, ev *types.ContractEvent) EventView {
	view := EventView{
		Key:                ev.Key,
		SequenceNumber:     ev.SequenceNumber,
		TransactionVersion: version,
		Data:               EventDataView{Type: "unknown", Bytes: ev.Data},
	}
	switch ev.TypeTag {
	case types.EventTypeNewBlock:
		if nb, err := types.NewBlockEventFromContractEvent(ev); err == nil {
			proposer := nb.Proposer
			view.Data = EventDataView{Type: "newblock", Round: nb.Round, Proposer: &proposer, ProposedTime: nb.ProposedTime}
		}
	case types.EventTypeSentPayment, types.EventTypeReceivedPayment:
		if p, err := types.PaymentEventFromContractEvent(ev); err == nil {
			data := EventDataView{
				Amount:   &AmountView{Amount: p.Amount, Currency: p.Currency},
				Metadata: p.Metadata,
			}
			self, other := ev.Key.Address(), p.Counterparty
			if ev.TypeTag == types.EventTypeSentPayment {
				data.Type, data.Sender, data.Receiver = "sentpayment", &self, &other
			} else {
				data.Type, data.Sender, data.Receiver = "receivedpayment", &other, &self
			}
			view.Data = data
		}
	}
	return view
}

type TransactionDataView struct {
	Type string `json:"type"`

	// user
	Sender                  *types.Address `json:"sender,omitempty"`
	SequenceNumber          uint64         `json:"sequence_number,omitempty"`
	MaxGasAmount            uint64         `json:"max_gas_amount,omitempty"`
	GasUnitPrice            uint64         `json:"gas_unit_price,omitempty"`
	GasCurrency             string         `json:"gas_currency,omitempty"`
	ExpirationTimestampSecs uint64         `json:"expiration_timestamp_secs,omitempty"`
	PublicKey               bytes.HexBytes `json:"public_key,omitempty"`
	Signature               bytes.HexBytes `json:"signature,omitempty"`
	Payload                 bytes.HexBytes `json:"payload,omitempty"`

	// blockmetadata
	TimestampUsecs uint64 `json:"timestamp_usecs,omitempty"`
}

type TransactionView struct {
	Version     uint64              `json:"version"`
	Transaction TransactionDataView `json:"transaction"`
	Hash        crypto.HashValue    `json:"hash"`
	// Events is nil unless events were requested.
	Events   []EventView `json:"events,omitempty"`
	VMStatus string      `json:"vm_status"`
	GasUsed  uint64      `json:"gas_used"`
}

// IsExecuted reports whether the transaction executed successfully.
func (v *TransactionView) IsExecuted() bool {
	return v.VMStatus == types.VMStatusExecuted.String()
}

func NewTransactionView(
	version uint64,
	txn *types.Transaction,
	info *types.TransactionInfo,
	events []types.ContractEvent,
) TransactionView {
	data := TransactionDataView{Type: txn.Kind.String()}
	switch txn.Kind {
	case types.TransactionKindUser:
		sender := txn.Sender
		data.Sender = &sender
		data.SequenceNumber = txn.SequenceNumber
		data.MaxGasAmount = txn.MaxGasAmount
		data.GasUnitPrice = txn.GasUnitPrice
		data.GasCurrency = txn.GasCurrencyCode
		data.ExpirationTimestampSecs = txn.ExpirationTimestampSecs
		data.PublicKey = txn.PublicKey
		data.Signature = txn.Signature
		data.Payload = txn.Payload
	case types.TransactionKindBlockMetadata:
		data.TimestampUsecs = txn.TimestampUsecs
	}

	view := TransactionView{
		Version:     version,
		Transaction: data,
		Hash:        info.TransactionHash,
		VMStatus:    info.Status.String(),
		GasUsed:     info.GasUsed,
	}
	if events != nil {
		view.Events = make([]EventView, len(events))
		for i := range events {
			view.Events[i] = NewEventView(version, &events[i])
		}
	}
	return view
}
