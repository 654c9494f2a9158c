package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/ed25519"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
	"github.com/ledgerlight/ledgerlight/types"
)

const (
	DefaultChainID = 4
	BlockInterval  = time.Second
)

// Chain is an in-memory ledger run by a single process: it executes
// transactions, signs a ledger header per block with the validators of the
// current epoch and serves proofs through Ledger snapshots.
type Chain struct {
	mtx sync.RWMutex

	root       Signer
	validators []ed25519.PrivKey
	epoch      uint64
	round      uint64
	timestamp  uint64

	accounts map[types.Address]*types.AccountState
	mempool  []*types.Transaction

	ledger Ledger
}

type eventPosition struct {
	version uint64
	index   uint64
}

// NewChain commits the genesis transaction with numValidators validators for
// epoch 1. The genesis header ends epoch 0 and is not signed.
func NewChain(numValidators int) *Chain {
	c := &Chain{
		root:       Signer{Key: ed25519.GenPrivKeyFromSecret([]byte("root")), Address: types.RootAddress},
		validators: ValidatorKeys(1, numValidators),
		accounts:   make(map[types.Address]*types.AccountState),
		ledger: Ledger{
			chainID: DefaultChainID,
			streams: make(map[types.EventKey][]eventPosition),
			sent:    make(map[types.Address][]uint64),
		},
	}

	c.accounts[types.RootAddress] = &types.AccountState{
		Account: types.AccountResource{
			AuthenticationKey: c.root.AuthenticationKey(),
			SentEventsKey:     types.NewEventKey(types.SentEventsCreationNumber, types.RootAddress),
			ReceivedEventsKey: types.NewEventKey(types.ReceivedEventsCreationNumber, types.RootAddress),
			Role:              types.RoleRoot,
		},
		Config: &types.ChainConfig{
			ProtocolVersion: 2,
			Currencies: []types.CurrencyInfo{
				genesisCurrency("XDX", 2),
				genesisCurrency("XUS", 7),
			},
		},
	}

	genesis := &types.Transaction{Kind: types.TransactionKindGenesis, WriteSet: []byte("genesis")}
	c.commitTransaction(genesis, types.VMStatusExecuted, 0, nil)

	h := c.header()
	h.NextEpochState = &types.EpochState{Epoch: 1, Verifier: ValidatorVerifier(c.validators)}
	lhs := types.NewLedgerHeaderWithSignatures(h)
	c.ledger.headers = append(c.ledger.headers, lhs)
	c.ledger.epochEndings = append(c.ledger.epochEndings, lhs)
	c.epoch = 1
	return c
}

func genesisCurrency(code string, firstCreationNumber uint64) types.CurrencyInfo {
	key := func(i uint64) types.EventKey { return types.NewEventKey(firstCreationNumber+i, types.RootAddress) }
	return types.CurrencyInfo{
		Code:                        code,
		ScalingFactor:               1_000_000,
		FractionalPart:              100,
		ToXDXExchangeRate:           1 << 32,
		MintEventsKey:               key(0),
		BurnEventsKey:               key(1),
		PreburnEventsKey:            key(2),
		CancelBurnEventsKey:         key(3),
		ExchangeRateUpdateEventsKey: key(4),
	}
}

// Root is the signer of the root account, the only account allowed to
// create accounts.
func (c *Chain) Root() Signer { return c.root }

// Ledger returns a snapshot of the committed ledger.
func (c *Chain) Ledger() *Ledger {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	l := c.ledger
	l.acc = merkle.NewInMemoryAccumulator(merkle.TransactionAccumulator, c.ledger.leaves...)
	l.streams = make(map[types.EventKey][]eventPosition, len(c.ledger.streams))
	for k, v := range c.ledger.streams {
		l.streams[k] = v[:len(v):len(v)]
	}
	l.sent = make(map[types.Address][]uint64, len(c.ledger.sent))
	for k, v := range c.ledger.sent {
		l.sent[k] = v[:len(v):len(v)]
	}
	return &l
}

// Latest returns the header of the last committed block.
func (c *Chain) Latest() *types.LedgerHeaderWithSignatures {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.ledger.latest()
}

// EpochEnding returns the header that ended epoch.
func (c *Chain) EpochEnding(epoch uint64) *types.LedgerHeaderWithSignatures {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.ledger.epochEndings[epoch]
}

// GenesisWaypoint commits to the genesis header.
func (c *Chain) GenesisWaypoint() types.Waypoint {
	return c.Waypoint(0)
}

// Waypoint commits to the header that ended epoch.
func (c *Chain) Waypoint(epoch uint64) types.Waypoint {
	w, err := types.NewWaypoint(&c.EpochEnding(epoch).Header)
	if err != nil {
		panic(err)
	}
	return w
}

// Validators returns the keys signing the current epoch.
func (c *Chain) Validators() []ed25519.PrivKey {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return append([]ed25519.PrivKey(nil), c.validators...)
}

func (c *Chain) Epoch() uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.epoch
}

// Account returns the current state of addr, or nil.
func (c *Chain) Account(addr types.Address) *types.AccountState {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	acct, ok := c.accounts[addr]
	if !ok {
		return nil
	}
	cp, err := types.UnmarshalAccountState(acct.Marshal())
	if err != nil {
		panic(err)
	}
	return cp
}

// Submit queues txn for the next block.
func (c *Chain) Submit(txn *types.Transaction) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	expected := uint64(0)
	if acct, ok := c.accounts[txn.Sender]; ok {
		expected = acct.Account.SequenceNumber
	}
	for _, queued := range c.mempool {
		if queued.Sender == txn.Sender {
			expected++
		}
	}
	if err := c.validate(txn, expected); err != nil {
		return err
	}
	c.mempool = append(c.mempool, txn)
	return nil
}

// CommitBlock executes the queued transactions and txns in a new block and
// returns its signed header. Invalid transactions are dropped.
func (c *Chain) CommitBlock(txns ...*types.Transaction) *types.LedgerHeaderWithSignatures {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.commitBlock(nil, txns)
}

// CommitBlocks commits n empty blocks.
func (c *Chain) CommitBlocks(n int) *types.LedgerHeaderWithSignatures {
	var lhs *types.LedgerHeaderWithSignatures
	for i := 0; i < n; i++ {
		lhs = c.CommitBlock()
	}
	return lhs
}

// Reconfigure commits a block that ends the current epoch and hands over to
// next.
func (c *Chain) Reconfigure(next []ed25519.PrivKey, txns ...*types.Transaction) *types.LedgerHeaderWithSignatures {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.commitBlock(next, txns)
}

func (c *Chain) commitBlock(next []ed25519.PrivKey, txns []*types.Transaction) *types.LedgerHeaderWithSignatures {
	c.round++
	c.timestamp += uint64(BlockInterval / time.Microsecond)

	proposer := types.AddressFromPubKey(c.validators[int(c.round)%len(c.validators)].PubKey())
	c.executeBlockMetadata(proposer)

	pending := append(c.mempool, txns...)
	c.mempool = nil
	for _, txn := range pending {
		acct, ok := c.accounts[txn.Sender]
		if !ok {
			continue
		}
		if err := c.validate(txn, acct.Account.SequenceNumber); err != nil {
			continue
		}
		c.executeUser(txn)
	}

	h := c.header()
	if next != nil {
		h.NextEpochState = &types.EpochState{Epoch: c.epoch + 1, Verifier: ValidatorVerifier(next)}
	}
	lhs := Sign(h, c.validators)
	c.ledger.headers = append(c.ledger.headers, lhs)
	if next != nil {
		c.ledger.epochEndings = append(c.ledger.epochEndings, lhs)
		c.epoch++
		c.round = 0
		c.validators = next
	}
	return lhs
}

func (c *Chain) header() types.LedgerHeader {
	var round [8]byte
	for i := range round {
		round[i] = byte(c.round >> (8 * i))
	}
	return types.LedgerHeader{
		Version:                    uint64(len(c.ledger.leaves)) - 1,
		TransactionAccumulatorHash: merkle.RootHashOf(merkle.TransactionAccumulator, c.ledger.leaves),
		ConsensusDataHash:          crypto.HashOf("ConsensusData", []byte(fmt.Sprint(c.epoch)), round[:]),
		Epoch:                      c.epoch,
		Round:                      c.round,
		TimestampUsecs:             c.timestamp,
	}
}

func (c *Chain) validate(txn *types.Transaction, expectedSeq uint64) error {
	if txn.Kind != types.TransactionKindUser {
		return fmt.Errorf("cannot submit a %v transaction", txn.Kind)
	}
	acct, ok := c.accounts[txn.Sender]
	if !ok {
		return fmt.Errorf("sender %v does not exist", txn.Sender)
	}
	if err := verifyTransactionSignature(txn, acct.Account.AuthenticationKey); err != nil {
		return err
	}
	if txn.SequenceNumber != expectedSeq {
		return fmt.Errorf("sequence number %d, expected %d", txn.SequenceNumber, expectedSeq)
	}
	if txn.ExpirationTimestampSecs <= c.timestamp/1_000_000 {
		return errors.New("transaction expired")
	}
	return nil
}

func (c *Chain) executeBlockMetadata(proposer types.Address) {
	txn := types.NewBlockMetadataTransaction(c.round, c.timestamp, proposer)
	data := types.NewBlockEvent{Round: c.round, Proposer: proposer, ProposedTime: c.timestamp}.Marshal()
	events := []types.ContractEvent{c.event(types.NewBlockEventKey(), types.EventTypeNewBlock, data)}
	c.commitTransaction(txn, types.VMStatusExecuted, 0, events)
}

func (c *Chain) executeUser(txn *types.Transaction) {
	sender := c.accounts[txn.Sender]
	sender.Account.SequenceNumber++

	abort := func() { c.commitTransaction(txn, types.VMStatusMoveAbort, 1, nil) }

	op, err := decodePayload(txn.Payload)
	if err != nil {
		c.commitTransaction(txn, types.VMStatusMiscellaneousError, 1, nil)
		return
	}
	switch op := op.(type) {
	case payment:
		receiver, ok := c.accounts[op.to]
		balance, _ := sender.Account.Balance(op.currency)
		if !ok || balance < op.amount {
			abort()
			return
		}
		setBalance(&sender.Account, op.currency, balance-op.amount)
		received, _ := receiver.Account.Balance(op.currency)
		setBalance(&receiver.Account, op.currency, received+op.amount)

		sent := types.PaymentEvent{Amount: op.amount, Currency: op.currency, Counterparty: op.to}
		recv := types.PaymentEvent{Amount: op.amount, Currency: op.currency, Counterparty: txn.Sender}
		c.commitTransaction(txn, types.VMStatusExecuted, 10, []types.ContractEvent{
			c.event(sender.Account.SentEventsKey, types.EventTypeSentPayment, sent.Marshal()),
			c.event(receiver.Account.ReceivedEventsKey, types.EventTypeReceivedPayment, recv.Marshal()),
		})

	case accountCreation:
		if txn.Sender != types.RootAddress {
			abort()
			return
		}
		if _, ok := c.accounts[op.owner]; ok {
			abort()
			return
		}
		acct := &types.AccountState{Account: types.AccountResource{
			AuthenticationKey: op.authKey,
			SentEventsKey:     types.NewEventKey(types.SentEventsCreationNumber, op.owner),
			ReceivedEventsKey: types.NewEventKey(types.ReceivedEventsCreationNumber, op.owner),
			Role:              types.RoleParentVASP,
		}}
		for _, b := range op.balances {
			setBalance(&acct.Account, b.Currency, b.Amount)
		}
		c.accounts[op.owner] = acct
		c.commitTransaction(txn, types.VMStatusExecuted, 10, nil)
	}
}

func setBalance(r *types.AccountResource, currency string, amount uint64) {
	for i := range r.Balances {
		if r.Balances[i].Currency == currency {
			r.Balances[i].Amount = amount
			return
		}
	}
	r.Balances = append(r.Balances, types.Balance{Currency: currency, Amount: amount})
	sort.Slice(r.Balances, func(i, j int) bool { return r.Balances[i].Currency < r.Balances[j].Currency })
}

// event builds the next event of key. Every transaction emits at most one
// event per stream.
func (c *Chain) event(key types.EventKey, typeTag string, data []byte) types.ContractEvent {
	return types.ContractEvent{
		Key:            key,
		SequenceNumber: uint64(len(c.ledger.streams[key])),
		TypeTag:        typeTag,
		Data:           data,
	}
}

// commitTransaction appends txn with its outcome to the ledger and snapshots
// the account states it left behind.
func (c *Chain) commitTransaction(txn *types.Transaction, status types.VMStatus, gasUsed uint64, events []types.ContractEvent) {
	l := &c.ledger
	version := uint64(len(l.txns))

	blobs := make(map[types.Address][]byte, len(c.accounts))
	leaves := make(map[crypto.HashValue]crypto.HashValue, len(c.accounts))
	for addr, acct := range c.accounts {
		blob := acct.Marshal()
		blobs[addr] = blob
		leaves[addr.Hash()] = types.AccountStateBlobHash(blob)
	}

	if events == nil {
		events = []types.ContractEvent{}
	}
	info := types.TransactionInfo{
		TransactionHash: txn.Hash(),
		StateRootHash:   merkle.NewSparseMerkleTree(leaves).RootHash(),
		EventRootHash:   types.EventRootHash(events),
		GasUsed:         gasUsed,
		Status:          status,
	}

	l.txns = append(l.txns, txn)
	l.infos = append(l.infos, info)
	l.events = append(l.events, events)
	l.states = append(l.states, blobs)
	l.leaves = append(l.leaves, info.Hash())
	for i, ev := range events {
		l.streams[ev.Key] = append(l.streams[ev.Key], eventPosition{version: version, index: uint64(i)})
	}
	if txn.IsUser() {
		l.sent[txn.Sender] = append(l.sent[txn.Sender], version)
	}
}
