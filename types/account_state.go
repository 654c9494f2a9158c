package types

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// Account roles.
const (
	RoleUnknown            = "unknown"
	RoleRoot               = "root"
	RoleTreasuryCompliance = "treasury_compliance"
	RoleDesignatedDealer   = "designated_dealer"
	RoleParentVASP         = "parent_vasp"
	RoleChildVASP          = "child_vasp"
	RoleValidator          = "validator"
)

// Creation numbers of the event streams every account owns.
const (
	ReceivedEventsCreationNumber = 0
	SentEventsCreationNumber     = 1
)

// Balance is an amount held in one currency.
type Balance struct {
	Currency string
	Amount   uint64
}

// AccountResource is the part of an account every account has.
type AccountResource struct {
	AuthenticationKey []byte
	SequenceNumber    uint64
	SentEventsKey     EventKey
	ReceivedEventsKey EventKey
	// Balances are sorted by currency code.
	Balances []Balance
	Role     string
	IsFrozen bool
}

// CurrencyInfo describes a registered currency.
type CurrencyInfo struct {
	Code           string
	ScalingFactor  uint64
	FractionalPart uint64
	// ToXDXExchangeRate is a 32.32 fixed point number.
	ToXDXExchangeRate           uint64
	MintEventsKey               EventKey
	BurnEventsKey               EventKey
	PreburnEventsKey            EventKey
	CancelBurnEventsKey         EventKey
	ExchangeRateUpdateEventsKey EventKey
}

// ExchangeRate converts the fixed point rate.
func (c CurrencyInfo) ExchangeRate() float64 {
	return float64(c.ToXDXExchangeRate) / float64(uint64(1)<<32)
}

// ChainConfig is the on-chain configuration held by the root account.
type ChainConfig struct {
	ProtocolVersion         uint64
	ModulePublishingAllowed bool
	ScriptAllowList         []crypto.HashValue
	Currencies              []CurrencyInfo
}

// AccountState is the decoded blob stored under an account address.
type AccountState struct {
	Account AccountResource
	// Config is only set on the root account.
	Config *ChainConfig
}

// AccountStateBlobHash is the value hash stored in the state tree.
func AccountStateBlobHash(blob []byte) crypto.HashValue {
	return crypto.HashOf(crypto.DomainAccountStateBlob, blob)
}

func (s *AccountState) Marshal() []byte {
	return encode(func(e *encoder) {
		e.message(s.Account.encode)
		e.optional(s.Config != nil, func(e *encoder) { s.Config.encode(e) })
	})
}

// UnmarshalAccountState decodes an account state blob.
func UnmarshalAccountState(blob []byte) (*AccountState, error) {
	s := &AccountState{}
	err := decode(blob, func(d *decoder) {
		d.message(func(d *decoder) { s.Account = decodeAccountResource(d) })
		d.optional(func(d *decoder) { s.Config = decodeChainConfig(d) })
	})
	if err != nil {
		return nil, fmt.Errorf("account state: %w", err)
	}
	return s, nil
}

// Balance returns the amount held in currency.
func (r *AccountResource) Balance(currency string) (uint64, bool) {
	for _, b := range r.Balances {
		if b.Currency == currency {
			return b.Amount, true
		}
	}
	return 0, false
}

func (r *AccountResource) encode(e *encoder) {
	balances := make([]Balance, len(r.Balances))
	copy(balances, r.Balances)
	sort.Slice(balances, func(i, j int) bool { return balances[i].Currency < balances[j].Currency })

	e.bytes(r.AuthenticationKey)
	e.uint64(r.SequenceNumber)
	e.bytes(r.SentEventsKey[:])
	e.bytes(r.ReceivedEventsKey[:])
	e.repeated(len(balances), func(i int, e *encoder) {
		e.string(balances[i].Currency)
		e.uint64(balances[i].Amount)
	})
	e.string(r.Role)
	e.bool(r.IsFrozen)
}

func decodeAccountResource(d *decoder) AccountResource {
	var r AccountResource
	r.AuthenticationKey = d.bytes()
	r.SequenceNumber = d.uint64()
	r.SentEventsKey = d.eventKey()
	r.ReceivedEventsKey = d.eventKey()
	d.repeated(func(d *decoder) {
		b := Balance{Currency: d.string(), Amount: d.uint64()}
		if n := len(r.Balances); n > 0 && r.Balances[n-1].Currency >= b.Currency {
			d.failf("balances: %w", errors.New("currencies must be sorted and unique"))
			return
		}
		r.Balances = append(r.Balances, b)
	})
	r.Role = d.string()
	r.IsFrozen = d.bool()
	return r
}

func (c *ChainConfig) encode(e *encoder) {
	e.uint64(c.ProtocolVersion)
	e.bool(c.ModulePublishingAllowed)
	e.hashes(c.ScriptAllowList)
	e.repeated(len(c.Currencies), func(i int, e *encoder) {
		ci := c.Currencies[i]
		e.string(ci.Code)
		e.uint64(ci.ScalingFactor)
		e.uint64(ci.FractionalPart)
		e.uint64(ci.ToXDXExchangeRate)
		e.bytes(ci.MintEventsKey[:])
		e.bytes(ci.BurnEventsKey[:])
		e.bytes(ci.PreburnEventsKey[:])
		e.bytes(ci.CancelBurnEventsKey[:])
		e.bytes(ci.ExchangeRateUpdateEventsKey[:])
	})
}

func decodeChainConfig(d *decoder) *ChainConfig {
	c := &ChainConfig{}
	c.ProtocolVersion = d.uint64()
	c.ModulePublishingAllowed = d.bool()
	c.ScriptAllowList = d.hashes()
	d.repeated(func(d *decoder) {
		c.Currencies = append(c.Currencies, CurrencyInfo{
			Code:                        d.string(),
			ScalingFactor:               d.uint64(),
			FractionalPart:              d.uint64(),
			ToXDXExchangeRate:           d.uint64(),
			MintEventsKey:               d.eventKey(),
			BurnEventsKey:               d.eventKey(),
			PreburnEventsKey:            d.eventKey(),
			CancelBurnEventsKey:         d.eventKey(),
			ExchangeRateUpdateEventsKey: d.eventKey(),
		})
	})
	return c
}
