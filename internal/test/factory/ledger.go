package factory

import (
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

// Ledger is an immutable snapshot of a Chain. It answers the proof queries a
// full node serves, always against its latest header.
type Ledger struct {
	chainID uint8

	txns   []*types.Transaction
	infos  []types.TransactionInfo
	events [][]types.ContractEvent
	states []map[types.Address][]byte
	leaves []crypto.HashValue
	acc    *merkle.InMemoryAccumulator

	headers      []*types.LedgerHeaderWithSignatures
	epochEndings []*types.LedgerHeaderWithSignatures

	streams map[types.EventKey][]eventPosition
	sent    map[types.Address][]uint64
}

func (l *Ledger) latest() *types.LedgerHeaderWithSignatures {
	return l.headers[len(l.headers)-1]
}

// Latest returns the header every proof is served against.
func (l *Ledger) Latest() *types.LedgerHeaderWithSignatures { return l.latest() }

// State is the ledger state of the latest header.
func (l *Ledger) State() coretypes.State {
	h := &l.latest().Header
	return coretypes.State{ChainID: l.chainID, Version: h.Version, TimestampUsecs: h.TimestampUsecs}
}

// Transaction returns the transaction at version with its info and events.
func (l *Ledger) Transaction(version uint64) (*types.Transaction, types.TransactionInfo, []types.ContractEvent) {
	return l.txns[version], l.infos[version], l.events[version]
}

// StateProof proves the latest header to a client trusting known. It carries
// every epoch ending header from known on, at most maxEpochChanges of them;
// when truncated the target is the last included epoch change. A zero
// maxEpochChanges means no limit.
func (l *Ledger) StateProof(known uint64, maxEpochChanges int) (*types.StateProof, error) {
	latest := l.latest()
	if known > latest.Header.Version {
		return nil, fmt.Errorf("known version %d is ahead of the ledger version %d", known, latest.Header.Version)
	}

	var changes []*types.LedgerHeaderWithSignatures
	for _, lhs := range l.epochEndings {
		if lhs.Header.Version >= known {
			changes = append(changes, lhs)
		}
	}
	// An ending at known itself is what a waypoint is checked against and
	// does not count towards the limit.
	limit := maxEpochChanges
	if len(changes) > 0 && changes[0].Header.Version == known {
		limit++
	}
	target, more := latest, false
	if maxEpochChanges > 0 && len(changes) > limit {
		changes = changes[:limit]
		target, more = changes[len(changes)-1], true
	}

	consistency, err := l.acc.ConsistencyProof(known+1, target.Header.Version+1)
	if err != nil {
		return nil, err
	}
	return &types.StateProof{
		EpochChanges: types.EpochChangeProof{LedgerInfoWithSigs: changes, More: more},
		Target:       target,
		Consistency:  consistency,
	}, nil
}

// ConsistencyProof proves the accumulator at ledgerVersion extends the one
// at clientKnownVersion. A nil clientKnownVersion proves from the empty
// accumulator and a nil ledgerVersion means the latest version.
func (l *Ledger) ConsistencyProof(clientKnownVersion, ledgerVersion *uint64) (merkle.ConsistencyProof, error) {
	to, err := l.ledgerVersion(ledgerVersion)
	if err != nil {
		return merkle.ConsistencyProof{}, err
	}
	var from uint64
	if clientKnownVersion != nil {
		if *clientKnownVersion > to {
			return merkle.ConsistencyProof{}, fmt.Errorf("client known version %d is after version %d", *clientKnownVersion, to)
		}
		from = *clientKnownVersion + 1
	}
	return l.acc.ConsistencyProof(from, to+1)
}

// AccountStateWithProof proves addr at version, or at the ledger version
// when version is nil.
func (l *Ledger) AccountStateWithProof(addr types.Address, version, ledgerVersion *uint64) (*types.AccountStateWithProof, error) {
	lv, err := l.ledgerVersion(ledgerVersion)
	if err != nil {
		return nil, err
	}
	v := lv
	if version != nil {
		if *version > lv {
			return nil, fmt.Errorf("version %d is after the ledger version %d", *version, lv)
		}
		v = *version
	}

	infoProof, err := l.transactionInfoWithProof(v, lv)
	if err != nil {
		return nil, err
	}
	states := l.states[v]
	leaves := make(map[crypto.HashValue]crypto.HashValue, len(states))
	for a, blob := range states {
		leaves[a.Hash()] = types.AccountStateBlobHash(blob)
	}
	return &types.AccountStateWithProof{
		Version:                       v,
		Blob:                          states[addr],
		TransactionInfoWithProof:      infoProof,
		TransactionInfoToAccountProof: merkle.NewSparseMerkleTree(leaves).Proof(addr.Hash()),
	}, nil
}

// TransactionsWithProof proves up to limit transactions from start.
func (l *Ledger) TransactionsWithProof(start, limit uint64, includeEvents bool) (*types.TransactionListWithProof, error) {
	lv := l.latest().Header.Version
	p := &types.TransactionListWithProof{}
	if includeEvents {
		p.Events = [][]types.ContractEvent{}
	}
	if start > lv || limit == 0 {
		return p, nil
	}
	count := lv - start + 1
	if limit < count {
		count = limit
	}

	first := start
	p.FirstTransactionVersion = &first
	p.Transactions = append(p.Transactions, l.txns[start:start+count]...)
	p.TransactionInfos = append(p.TransactionInfos, l.infos[start:start+count]...)
	if includeEvents {
		p.Events = append(p.Events, l.events[start:start+count]...)
	}
	rangeProof, err := l.acc.RangeProof(start, count, lv+1)
	if err != nil {
		return nil, err
	}
	p.RangeProof = rangeProof
	return p, nil
}

// AccountTransactionsWithProof proves up to limit transactions sent by addr
// starting at sequence number start.
func (l *Ledger) AccountTransactionsWithProof(
	addr types.Address,
	start, limit uint64,
	includeEvents bool,
	ledgerVersion *uint64,
) (*types.AccountTransactionsWithProof, error) {
	lv, err := l.ledgerVersion(ledgerVersion)
	if err != nil {
		return nil, err
	}
	p := &types.AccountTransactionsWithProof{}
	versions := l.sent[addr]
	for seq := start; seq < uint64(len(versions)) && seq-start < limit; seq++ {
		v := versions[seq]
		if v > lv {
			break
		}
		proof, err := l.transactionInfoWithProof(v, lv)
		if err != nil {
			return nil, err
		}
		txn := &types.TransactionWithProof{Version: v, Transaction: l.txns[v], Proof: proof}
		if includeEvents {
			txn.Events = l.events[v]
		}
		p.Transactions = append(p.Transactions, txn)
	}
	return p, nil
}

// EventsWithProof proves up to limit events of key starting at sequence
// number start.
func (l *Ledger) EventsWithProof(key types.EventKey, start, limit uint64) ([]*types.EventWithProof, error) {
	lv := l.latest().Header.Version
	positions := l.streams[key]
	var out []*types.EventWithProof
	for seq := start; seq < uint64(len(positions)) && seq-start < limit; seq++ {
		if positions[seq].version > lv {
			break
		}
		p, err := l.eventWithProof(positions[seq], lv)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// EventByVersionWithProof proves the latest event of key at version and
// the event following it, if any.
func (l *Ledger) EventByVersionWithProof(key types.EventKey, version *uint64) (*types.EventByVersionWithProof, error) {
	lv := l.latest().Header.Version
	v := lv
	if version != nil {
		if *version > lv {
			return nil, fmt.Errorf("version %d is after the ledger version %d", *version, lv)
		}
		v = *version
	}

	p := &types.EventByVersionWithProof{}
	for _, pos := range l.streams[key] {
		if pos.version > lv {
			break
		}
		bound, err := l.eventWithProof(pos, lv)
		if err != nil {
			return nil, err
		}
		if pos.version <= v {
			p.LowerBoundIncl = bound
			continue
		}
		p.UpperBoundExcl = bound
		break
	}
	return p, nil
}

func (l *Ledger) ledgerVersion(v *uint64) (uint64, error) {
	lv := l.latest().Header.Version
	if v == nil {
		return lv, nil
	}
	if *v > lv {
		return 0, fmt.Errorf("ledger version %d is after the latest version %d", *v, lv)
	}
	return *v, nil
}

func (l *Ledger) transactionInfoWithProof(version, ledgerVersion uint64) (types.TransactionInfoWithProof, error) {
	proof, err := l.acc.Proof(version, ledgerVersion+1)
	if err != nil {
		return types.TransactionInfoWithProof{}, err
	}
	return types.TransactionInfoWithProof{
		LedgerInfoToTransactionInfoProof: proof,
		TransactionInfo:                  l.infos[version],
	}, nil
}

func (l *Ledger) eventWithProof(pos eventPosition, ledgerVersion uint64) (*types.EventWithProof, error) {
	infoProof, err := l.transactionInfoWithProof(pos.version, ledgerVersion)
	if err != nil {
		return nil, err
	}
	events := l.events[pos.version]
	hashes := make([]crypto.HashValue, len(events))
	for i := range events {
		hashes[i] = events[i].Hash()
	}
	eventProof, err := merkle.NewInMemoryAccumulator(merkle.EventAccumulator, hashes...).Proof(pos.index, uint64(len(hashes)))
	if err != nil {
		return nil, err
	}
	return &types.EventWithProof{
		TransactionVersion:          pos.version,
		EventIndex:                  pos.index,
		Event:                       events[pos.index],
		TransactionInfoWithProof:    infoProof,
		TransactionInfoToEventProof: eventProof,
	}, nil
}
