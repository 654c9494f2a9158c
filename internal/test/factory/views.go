package factory

import (
	"fmt"

	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

// Unproven answers, as a full node serves them to clients that do not verify.

func (l *Ledger) Metadata(version *uint64) (coretypes.MetadataView, error) {
	lv := l.latest().Header.Version
	v := lv
	if version != nil {
		if *version > lv {
			return coretypes.MetadataView{}, fmt.Errorf("version %d is after the ledger version %d", *version, lv)
		}
		v = *version
	}

	var timestamp uint64
	for i := int(v); i >= 0; i-- {
		if txn := l.txns[i]; txn.Kind == types.TransactionKindBlockMetadata {
			timestamp = txn.TimestampUsecs
			break
		}
	}
	view := coretypes.NewMetadataView(v, l.acc.RootHashAt(v+1), timestamp, l.chainID)
	if version == nil {
		root, err := l.account(types.RootAddress, v)
		if err != nil {
			return coretypes.MetadataView{}, err
		}
		view = view.WithChainConfig(root.Config)
	}
	return view, nil
}

func (l *Ledger) Account(addr types.Address, version *uint64) (*coretypes.AccountView, error) {
	v, err := l.ledgerVersion(version)
	if err != nil {
		return nil, err
	}
	state, err := l.account(addr, v)
	if err != nil || state == nil {
		return nil, err
	}
	return coretypes.NewAccountView(addr, state, v), nil
}

func (l *Ledger) account(addr types.Address, version uint64) (*types.AccountState, error) {
	blob, ok := l.states[version][addr]
	if !ok {
		return nil, nil
	}
	return types.UnmarshalAccountState(blob)
}

func (l *Ledger) Transactions(start, limit uint64, includeEvents bool) []coretypes.TransactionView {
	lv := l.latest().Header.Version
	var out []coretypes.TransactionView
	for v := start; v <= lv && v-start < limit; v++ {
		out = append(out, l.transactionView(v, includeEvents))
	}
	return out
}

func (l *Ledger) AccountTransactions(addr types.Address, start, limit uint64, includeEvents bool) []coretypes.TransactionView {
	lv := l.latest().Header.Version
	versions := l.sent[addr]
	var out []coretypes.TransactionView
	for seq := start; seq < uint64(len(versions)) && seq-start < limit && versions[seq] <= lv; seq++ {
		out = append(out, l.transactionView(versions[seq], includeEvents))
	}
	return out
}

func (l *Ledger) Events(key types.EventKey, start, limit uint64) []coretypes.EventView {
	lv := l.latest().Header.Version
	positions := l.streams[key]
	var out []coretypes.EventView
	for seq := start; seq < uint64(len(positions)) && seq-start < limit && positions[seq].version <= lv; seq++ {
		pos := positions[seq]
		out = append(out, coretypes.NewEventView(pos.version, &l.events[pos.version][pos.index]))
	}
	return out
}

func (l *Ledger) Currencies() ([]coretypes.CurrencyInfoView, error) {
	root, err := l.account(types.RootAddress, l.latest().Header.Version)
	if err != nil {
		return nil, err
	}
	out := make([]coretypes.CurrencyInfoView, 0, len(root.Config.Currencies))
	for _, c := range root.Config.Currencies {
		out = append(out, coretypes.NewCurrencyInfoView(c))
	}
	return out, nil
}

func (l *Ledger) transactionView(version uint64, includeEvents bool) coretypes.TransactionView {
	var events []types.ContractEvent
	if includeEvents {
		events = l.events[version]
	}
	return coretypes.NewTransactionView(version, l.txns[version], &l.infos[version], events)
}
