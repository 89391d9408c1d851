package command

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agorahub/lootbox-client/pkg/database/query"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/solana"
	address_lookup_table "github.com/agorahub/lootbox-client/pkg/solana/addresslookuptable"
)

const ledgerPageSize = 100

var (
	ErrNotLookupTable = errors.New("account is not an address lookup table")
	ErrNotAuthority   = errors.New("payer is not the lookup table authority")
)

// LookupTable joins an on-chain table with its ledger record. Either side
// may be missing.
type LookupTable struct {
	Address ed25519.PublicKey
	Account *address_lookup_table.Account
	Record  *alt.Record
}

// OnChain reports whether the table account still exists.
func (t *LookupTable) OnChain() bool {
	return t.Account != nil
}

// RemainingSlots is the number of slots until a deactivated table can be
// closed.
func (t *LookupTable) RemainingSlots(slot uint64) uint64 {
	if t.Account == nil || t.Account.IsActive() || t.Account.IsClosable(slot) {
		return 0
	}
	return t.Account.DeactivationSlot + address_lookup_table.DeactivationCooldown + 1 - slot
}

// Status describes what close-alt would do with the table at slot.
func (t *LookupTable) Status(slot uint64) string {
	switch {
	case t.Account == nil:
		return "closed"
	case t.Account.IsActive():
		return "active"
	case t.Account.IsClosable(slot):
		return "closable"
	}
	return fmt.Sprintf("cooling down, %d slots left", t.RemainingSlots(slot))
}

// LookupTables is a listing of the payer's tables at Slot.
type LookupTables struct {
	Authority ed25519.PublicKey
	Slot      uint64
	Tables    []*LookupTable
}

// ListAlt lists the lookup tables the payer is authority of, merging the
// ledger with the tables found on chain.
func (s *Service) ListAlt(ctx context.Context) (*LookupTables, error) {
	authority := s.payer()

	slot, err := s.sc.GetSlot(solana.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get slot")
	}

	byAddress := make(map[string]*LookupTable)
	var order []string
	add := func(address ed25519.PublicKey) *LookupTable {
		key := string(address)
		if t, ok := byAddress[key]; ok {
			return t
		}
		t := &LookupTable{Address: address}
		byAddress[key] = t
		order = append(order, key)
		return t
	}

	records, err := s.ledgerRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Authority != base58.Encode(authority) {
			continue
		}
		address, err := base58.Decode(r.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ledger address %q", r.Address)
		}
		add(address).Record = r
	}

	accounts, err := s.sc.GetFilteredProgramAccounts(address_lookup_table.ProgramKey, address_lookup_table.AuthorityOffset, authority)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get lookup tables")
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].PublicKey, accounts[j].PublicKey) < 0
	})
	for _, pa := range accounts {
		var account address_lookup_table.Account
		if err := account.Unmarshal(pa.Account.Data); err != nil {
			s.log.WithError(err).WithField("alt", base58.Encode(pa.PublicKey)).Warn("skipping undecodable lookup table")
			continue
		}
		add(pa.PublicKey).Account = &account
	}

	res := &LookupTables{Authority: authority, Slot: slot}
	for _, key := range order {
		res.Tables = append(res.Tables, byAddress[key])
	}
	return res, nil
}

func (s *Service) ledgerRecords(ctx context.Context) ([]*alt.Record, error) {
	var all []*alt.Record
	var cursor query.Cursor
	for {
		opts := []query.Option{query.WithLimit(ledgerPageSize)}
		if len(cursor) > 0 {
			opts = append(opts, query.WithCursor(cursor))
		}

		page, err := s.ledger.GetAll(ctx, opts...)
		if err == alt.ErrNotFound {
			return all, nil
		} else if err != nil {
			return nil, errors.Wrap(err, "failed to read lookup table ledger")
		}

		all = append(all, page...)
		if len(page) < ledgerPageSize {
			return all, nil
		}
		cursor = query.ToCursor(page[len(page)-1].Id)
	}
}

// CloseAction is the step CloseAlt took.
type CloseAction string

const (
	CloseActionDeactivated CloseAction = "deactivated"
	CloseActionClosed      CloseAction = "closed"
	CloseActionWaiting     CloseAction = "waiting"
	CloseActionGone        CloseAction = "already closed"
)

// CloseAltResult describes the outcome of CloseAlt.
type CloseAltResult struct {
	*packer.Result

	Address        ed25519.PublicKey
	Action         CloseAction
	RemainingSlots uint64
}

// CloseAlt moves a payer owned table one step towards reclaiming its rent:
// an active table is deactivated, a cooled down table is closed.
func (s *Service) CloseAlt(ctx context.Context, address ed25519.PublicKey) (*CloseAltResult, error) {
	payer := s.payer()
	log := s.log.WithFields(logrus.Fields{
		"method": "CloseAlt",
		"alt":    base58.Encode(address),
	})

	result := &CloseAltResult{Address: address}

	info, err := s.sc.GetAccountInfo(address, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		result.Action = CloseActionGone
		s.markLedger(ctx, log, address, alt.StateClosed, nil)
		return result, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get lookup table")
	}
	if !bytes.Equal(info.Owner, address_lookup_table.ProgramKey) {
		return nil, errors.Wrapf(ErrNotLookupTable, "owner %s", base58.Encode(info.Owner))
	}

	var account address_lookup_table.Account
	if err := account.Unmarshal(info.Data); err != nil {
		return nil, errors.Wrap(ErrNotLookupTable, err.Error())
	}
	if !bytes.Equal(account.Authority, payer) {
		return nil, ErrNotAuthority
	}

	slot, err := s.sc.GetSlot(solana.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get slot")
	}

	table := &LookupTable{Address: address, Account: &account}
	switch {
	case account.IsActive():
		res, err := s.send(ctx, log, s.payerSigners(), address_lookup_table.Deactivate(address, payer))
		if err != nil {
			return nil, err
		}
		result.Result = res
		result.Action = CloseActionDeactivated
		result.RemainingSlots = address_lookup_table.DeactivationCooldown + 1
		s.markLedger(ctx, log, address, alt.StateDeactivating, res)
	case account.IsClosable(slot):
		res, err := s.send(ctx, log, s.payerSigners(), address_lookup_table.Close(address, payer, payer))
		if err != nil {
			return nil, err
		}
		result.Result = res
		result.Action = CloseActionClosed
		s.markLedger(ctx, log, address, alt.StateClosed, res)
	default:
		result.Action = CloseActionWaiting
		result.RemainingSlots = table.RemainingSlots(slot)
		log.WithField("remaining_slots", result.RemainingSlots).Info("lookup table is cooling down")
	}
	return result, nil
}

func (s *Service) markLedger(ctx context.Context, log *logrus.Entry, address ed25519.PublicKey, state alt.State, res *packer.Result) {
	record, err := s.ledger.Get(ctx, base58.Encode(address))
	if err == alt.ErrNotFound {
		log.Debug("lookup table not in ledger")
		return
	} else if err != nil {
		log.WithError(err).Warn("failed to read lookup table ledger")
		return
	}

	record.State = state
	record.UpdatedAt = s.now()
	if res != nil {
		record.LastSignature = res.Signature.String()
	}
	if err := s.ledger.Save(ctx, record); err != nil {
		log.WithError(err).Warn("failed to update lookup table ledger")
	}
}
