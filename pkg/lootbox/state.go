package lootbox

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// StateVersion is the leading byte of a state account and selects its layout.
type StateVersion uint8

const (
	// StateVersion2 holds a single price and the first issue index.
	StateVersion2 StateVersion = 2

	// StateVersion3 replaces the first issue index with the withdraw counter.
	StateVersion3 StateVersion = 3

	// StateVersion4 adds the lootbox id, a sale window and a price table.
	StateVersion4 StateVersion = 4
)

// LatestStateVersion is the layout written by Migrate.
const LatestStateVersion = StateVersion4

// Price is the unit price of a ticket when paying into Ata.
type Price struct {
	Amount uint64
	Ata    ed25519.PublicKey
}

// State is the decoded lootbox state account. Single price layouts expose
// their price as a one entry table.
type State struct {
	Version     StateVersion
	LootboxId   uint16
	Owner       ed25519.PublicKey
	VaultBump   uint8
	TotalSupply uint32
	MaxSupply   uint32
	BeginTs     uint32
	EndTs       uint32
	Name        string
	Signer      SignerKey
	Prices      []Price
	BaseUrl     string

	// FirstIndex is only present in StateVersion2.
	FirstIndex uint32

	// WithdrawCounter is incremented by every successful withdrawal.
	WithdrawCounter uint32
}

// LoadState decodes a state account using the layout named by its version
// byte. Trailing bytes after the layout are ignored.
func LoadState(data []byte) (*State, error) {
	if len(data) == 0 || data[0] == 0 {
		return nil, ErrAccountNotFound
	}

	s := &State{Version: StateVersion(data[0])}
	d := newDecoder(data[1:])

	switch s.Version {
	case StateVersion2, StateVersion3:
		s.Owner = key(d, "owner")
		s.VaultBump = d.u8("vault_bump")
		s.TotalSupply = d.u32("total_supply")
		s.MaxSupply = d.u32("max_supply")
		s.Name = d.str("name")
		d.fixed("signer", s.Signer[:])
		amount := d.u64("price")
		s.BaseUrl = d.str("base_url")
		s.Prices = []Price{{Amount: amount, Ata: key(d, "payment_ata")}}
		if s.Version == StateVersion2 {
			s.FirstIndex = d.u32("first_index")
		} else {
			s.WithdrawCounter = d.u32("withdraw_counter")
		}
	case StateVersion4:
		s.LootboxId = d.u16("lootbox_id")
		s.Owner = key(d, "owner")
		s.VaultBump = d.u8("vault_bump")
		s.TotalSupply = d.u32("total_supply")
		s.MaxSupply = d.u32("max_supply")
		s.BeginTs = d.u32("begin_ts")
		s.EndTs = d.u32("end_ts")
		s.Name = d.str("name")
		d.fixed("signer", s.Signer[:])
		n := d.length("prices", 8+ed25519.PublicKeySize)
		s.Prices = make([]Price, n)
		for i := range s.Prices {
			s.Prices[i].Amount = d.u64("prices.amount")
			s.Prices[i].Ata = key(d, "prices.ata")
		}
		s.BaseUrl = d.str("base_url")
		s.WithdrawCounter = d.u32("withdraw_counter")
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", data[0])
	}

	if err := d.done(false); err != nil {
		return nil, errors.Wrapf(err, "state v%d", s.Version)
	}
	return s, nil
}

// Marshal encodes s in the layout of s.Version.
func (s *State) Marshal() ([]byte, error) {
	if len(s.Owner) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrInvalidParameter, "owner must be 32 bytes")
	}
	for _, p := range s.Prices {
		if len(p.Ata) != ed25519.PublicKeySize {
			return nil, errors.Wrap(ErrInvalidParameter, "price ata must be 32 bytes")
		}
	}

	e := newEncoder()
	e.u8(uint8(s.Version))

	switch s.Version {
	case StateVersion2, StateVersion3:
		if len(s.Prices) != 1 {
			return nil, errors.Wrapf(ErrInvalidParameter, "state v%d holds exactly one price, got %d", s.Version, len(s.Prices))
		}
		e.fixed(s.Owner)
		e.u8(s.VaultBump)
		e.u32(s.TotalSupply)
		e.u32(s.MaxSupply)
		e.str(s.Name)
		e.fixed(s.Signer[:])
		e.u64(s.Prices[0].Amount)
		e.str(s.BaseUrl)
		e.fixed(s.Prices[0].Ata)
		if s.Version == StateVersion2 {
			e.u32(s.FirstIndex)
		} else {
			e.u32(s.WithdrawCounter)
		}
	case StateVersion4:
		e.u16(s.LootboxId)
		e.fixed(s.Owner)
		e.u8(s.VaultBump)
		e.u32(s.TotalSupply)
		e.u32(s.MaxSupply)
		e.u32(s.BeginTs)
		e.u32(s.EndTs)
		e.str(s.Name)
		e.fixed(s.Signer[:])
		e.length(len(s.Prices))
		for _, p := range s.Prices {
			e.u64(p.Amount)
			e.fixed(p.Ata)
		}
		e.str(s.BaseUrl)
		e.u32(s.WithdrawCounter)
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", s.Version)
	}

	return e.bytes(), nil
}

// FindPrice returns the unit price for payments into ata.
func (s *State) FindPrice(ata ed25519.PublicKey) (uint64, error) {
	for _, p := range s.Prices {
		if bytes.Equal(p.Ata, ata) {
			return p.Amount, nil
		}
	}
	return 0, errors.Wrapf(ErrPriceNotConfigured, "payment account %s", base58.Encode(ata))
}

// Available returns the number of tickets left before MaxSupply.
func (s *State) Available() uint32 {
	if s.TotalSupply >= s.MaxSupply {
		return 0
	}
	return s.MaxSupply - s.TotalSupply
}

func (s *State) String() string {
	return fmt.Sprintf(
		"State{version=%d lootbox_id=%d owner=%s supply=%d/%d window=[%d,%d] name=%q prices=%d withdraw_counter=%d}",
		s.Version,
		s.LootboxId,
		base58.Encode(s.Owner),
		s.TotalSupply,
		s.MaxSupply,
		s.BeginTs,
		s.EndTs,
		s.Name,
		len(s.Prices),
		s.WithdrawCounter,
	)
}

func key(d *decoder, field string) ed25519.PublicKey {
	k := make(ed25519.PublicKey, ed25519.PublicKeySize)
	d.fixed(field, k)
	return k
}
