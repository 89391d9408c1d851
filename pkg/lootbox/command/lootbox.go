package command

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
)

// StateView is the decoded state with the addresses it was read from.
type StateView struct {
	Address ed25519.PublicKey
	Vault   ed25519.PublicKey
	State   *lootbox.State
}

// GetState reads the lootbox state of the profile.
func (s *Service) GetState(ctx context.Context) (*StateView, error) {
	d, err := s.deployment()
	if err != nil {
		return nil, err
	}

	address, _, err := d.State()
	if err != nil {
		return nil, err
	}
	vault, _, err := d.Vault()
	if err != nil {
		return nil, err
	}
	state, err := s.fetchState(d)
	if err != nil {
		return nil, err
	}
	return &StateView{Address: address, Vault: vault, State: state}, nil
}

// BuyResult describes a confirmed purchase.
type BuyResult struct {
	*packer.Result

	Tickets []ed25519.PublicKey
	Total   uint64
	State   *lootbox.State
}

// Buy purchases a batch of tickets for the payer, paying in mint.
func (s *Service) Buy(ctx context.Context, mint ed25519.PublicKey) (*BuyResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "Buy",
		"mint":   base58.Encode(mint),
	})

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	before, err := s.fetchState(d)
	if err != nil {
		return nil, err
	}
	if before.MaxSupply > 0 && before.Available() < lootbox.BuyBatchSize {
		return nil, errors.Wrapf(ErrSoldOut, "%d tickets available", before.Available())
	}

	buyer := s.payer()
	_, exists, err := s.ataExists(buyer, mint)
	if err != nil {
		return nil, err
	}

	built, err := lootbox.NewBuyInstructions(d, before, lootbox.BuyParams{
		Buyer:          buyer,
		PaymentMint:    mint,
		TicketSeed:     uint32(s.now().Unix()),
		CreateBuyerAta: !exists,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"unit_price": built.UnitPrice,
		"total":      built.Total,
		"tickets":    len(built.Tickets),
	}).Info("buying tickets")

	res, err := s.send(ctx, log, s.payerSigners(), built.Instructions...)
	if err != nil {
		return nil, err
	}

	return &BuyResult{
		Result:  res,
		Tickets: built.Tickets,
		Total:   built.Total,
		State:   s.refresh(log, d, before),
	}, nil
}

// RewardRequest is one token payout of a withdrawal.
type RewardRequest struct {
	Mint   ed25519.PublicKey
	Amount uint64
}

// WithdrawRequest carries a backend signed withdrawal for the payer.
type WithdrawRequest struct {
	ExpireAt    uint32
	Signature   string
	TicketMints []ed25519.PublicKey
	Rewards     []RewardRequest
}

// Withdraw claims ticket NFTs and token rewards into the payer's accounts.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*packer.Result, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":  "Withdraw",
		"tickets": len(req.TicketMints),
		"rewards": len(req.Rewards),
	})

	sig, err := lootbox.ParseSignature(req.Signature)
	if err != nil {
		return nil, err
	}

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	before, err := s.fetchState(d)
	if err != nil {
		return nil, err
	}

	receiver := s.payer()
	rewards := make([]lootbox.Reward, len(req.Rewards))
	for i, r := range req.Rewards {
		_, exists, err := s.ataExists(receiver, r.Mint)
		if err != nil {
			return nil, err
		}
		rewards[i] = lootbox.Reward{
			Mint:              r.Mint,
			Amount:            r.Amount,
			CreateReceiverAta: !exists,
		}
	}

	ixs, err := lootbox.NewWithdrawInstructions(d, lootbox.WithdrawParams{
		Receiver:    receiver,
		ExpireAt:    req.ExpireAt,
		Signature:   sig,
		TicketMints: req.TicketMints,
		Rewards:     rewards,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.send(ctx, log, s.payerSigners(), ixs...)
	if err != nil {
		return nil, err
	}
	s.refresh(log, d, before)
	return res, nil
}

// ObtainTicketResult describes a minted ticket NFT.
type ObtainTicketResult struct {
	*packer.Result

	Mint               ed25519.PublicKey
	DestinationAccount ed25519.PublicKey
}

// ObtainTicket mints the ticket NFT identified by ticketId to the payer.
func (s *Service) ObtainTicket(ctx context.Context, ticketId, expireAt uint32, signature string) (*ObtainTicketResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":    "ObtainTicket",
		"ticket_id": ticketId,
	})

	sig, err := lootbox.ParseSignature(signature)
	if err != nil {
		return nil, err
	}

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	before, err := s.fetchState(d)
	if err != nil {
		return nil, err
	}

	built, err := lootbox.NewObtainTicketInstructions(d, lootbox.ObtainTicketParams{
		Receiver:  s.payer(),
		TicketId:  ticketId,
		ExpireAt:  expireAt,
		Signature: sig,
	})
	if err != nil {
		return nil, err
	}

	log.WithField("ticket_mint", base58.Encode(built.Mint)).Info("obtaining ticket")

	res, err := s.send(ctx, log, s.payerSigners(), built.Instructions...)
	if err != nil {
		return nil, err
	}
	s.refresh(log, d, before)

	return &ObtainTicketResult{
		Result:             res,
		Mint:               built.Mint,
		DestinationAccount: built.DestinationAccount,
	}, nil
}

// PriceRequest is the unit price of a ticket in one mint.
type PriceRequest struct {
	Mint   ed25519.PublicKey
	Amount uint64
}

// InitializeRequest describes a new lootbox. A zero Signer falls back to the
// profile's signer key.
type InitializeRequest struct {
	MaxSupply uint32
	BeginTs   uint32
	EndTs     uint32
	Name      string
	BaseUrl   string
	Signer    lootbox.SignerKey
	Prices    []PriceRequest
}

// Initialize creates the profile's lootbox under the admin.
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (*StateView, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":     "Initialize",
		"lootbox_id": s.profile.LootboxId,
		"name":       req.Name,
	})

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	vault, _, err := d.Vault()
	if err != nil {
		return nil, err
	}

	signer := req.Signer
	if signer.IsZero() {
		signer = s.profile.Signer
	}

	prices := make([]lootbox.PriceParam, len(req.Prices))
	for i, p := range req.Prices {
		_, exists, err := s.ataExists(vault, p.Mint)
		if err != nil {
			return nil, err
		}
		prices[i] = lootbox.PriceParam{
			Mint:           p.Mint,
			Amount:         p.Amount,
			CreateVaultAta: !exists,
		}
	}

	ixs, err := lootbox.NewInitializeInstructions(d, lootbox.InitializeParams{
		MaxSupply: req.MaxSupply,
		BeginTs:   req.BeginTs,
		EndTs:     req.EndTs,
		Signer:    signer,
		Name:      req.Name,
		BaseUrl:   req.BaseUrl,
		Prices:    prices,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.send(ctx, log, s.adminSigners(), ixs...); err != nil {
		return nil, err
	}
	s.refresh(log, d, nil)
	return s.GetState(ctx)
}

// Migrate rewrites the state account in the latest layout.
func (s *Service) Migrate(ctx context.Context) (*StateView, error) {
	log := s.log.WithField("method", "Migrate")

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	before, err := s.fetchState(d)
	if err != nil {
		return nil, err
	}
	log.WithField("version", before.Version).Info("migrating state")

	ix, err := lootbox.NewMigrateInstruction(d)
	if err != nil {
		return nil, err
	}
	if _, err := s.send(ctx, log, s.adminSigners(), ix); err != nil {
		return nil, err
	}
	s.refresh(log, d, before)
	return s.GetState(ctx)
}

// UpdateState changes the supply cap, sale window or a price.
func (s *Service) UpdateState(ctx context.Context, params lootbox.UpdateStateParams) (*StateView, error) {
	log := s.log.WithField("method", "UpdateState")

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	before, err := s.fetchState(d)
	if err != nil {
		return nil, err
	}

	ix, err := lootbox.NewUpdateStateInstruction(d, params)
	if err != nil {
		return nil, err
	}
	if _, err := s.send(ctx, log, s.adminSigners(), ix); err != nil {
		return nil, err
	}
	s.refresh(log, d, before)
	return s.GetState(ctx)
}

// UpdatePrice sets the unit price for payments in mint.
func (s *Service) UpdatePrice(ctx context.Context, mint ed25519.PublicKey, amount uint64) (*StateView, error) {
	return s.UpdateState(ctx, lootbox.UpdateStateParams{
		Price: &lootbox.PriceUpdate{Mint: mint, Amount: amount},
	})
}

// AdminWithdraw moves amount of mint from the vault to the admin.
func (s *Service) AdminWithdraw(ctx context.Context, mint ed25519.PublicKey, amount uint64) (*packer.Result, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "AdminWithdraw",
		"mint":   base58.Encode(mint),
		"amount": amount,
	})

	d, err := s.deployment()
	if err != nil {
		return nil, err
	}
	_, exists, err := s.ataExists(d.Admin, mint)
	if err != nil {
		return nil, err
	}

	ixs, err := lootbox.NewAdminWithdrawInstructions(d, lootbox.AdminWithdrawParams{
		Mint:                 mint,
		Amount:               amount,
		CreateDestinationAta: !exists,
	})
	if err != nil {
		return nil, err
	}
	return s.send(ctx, log, s.adminSigners(), ixs...)
}
