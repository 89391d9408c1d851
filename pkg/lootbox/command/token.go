package command

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/system"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
)

// TokenResult describes a confirmed token operation.
type TokenResult struct {
	*packer.Result

	Mint    ed25519.PublicKey
	Account ed25519.PublicKey
}

// CreateAta creates owner's associated account for mint, paid by the payer.
// An existing account is left untouched.
func (s *Service) CreateAta(ctx context.Context, mint, owner ed25519.PublicKey) (*TokenResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "CreateAta",
		"mint":   base58.Encode(mint),
		"owner":  base58.Encode(owner),
	})

	ata, exists, err := s.ataExists(owner, mint)
	if err != nil {
		return nil, err
	}
	if exists {
		log.WithField("ata", base58.Encode(ata)).Info("associated account already exists")
		return &TokenResult{Mint: mint, Account: ata}, nil
	}

	create, ata, err := token.CreateAssociatedTokenAccountIdempotent(s.payer(), owner, mint)
	if err != nil {
		return nil, err
	}
	res, err := s.send(ctx, log, s.payerSigners(), create)
	if err != nil {
		return nil, err
	}
	return &TokenResult{Result: res, Mint: mint, Account: ata}, nil
}

// CreateToken creates a mint with the admin as mint authority and mints
// supply into the payer's associated account.
func (s *Service) CreateToken(ctx context.Context, decimals uint8, supply uint64) (*TokenResult, error) {
	admin, err := s.admin()
	if err != nil {
		return nil, err
	}

	mintPub, mintKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"method":   "CreateToken",
		"mint":     base58.Encode(mintPub),
		"decimals": decimals,
	})

	ixs, err := s.createMintInstructions(mintPub, admin, decimals)
	if err != nil {
		return nil, err
	}

	signers := packer.NewSigners(s.keys.Payer, mintKey)
	var ata ed25519.PublicKey
	if supply > 0 {
		var create solana.Instruction
		create, ata, err = token.CreateAssociatedTokenAccountIdempotent(s.payer(), s.payer(), mintPub)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, create, token.MintTo(mintPub, ata, admin, supply))
		signers = packer.NewSigners(s.keys.Payer, mintKey, s.keys.Admin)
	}

	res, err := s.send(ctx, log, signers, ixs...)
	if err != nil {
		return nil, err
	}
	return &TokenResult{Result: res, Mint: mintPub, Account: ata}, nil
}

// MintTokens mints amount of mint into the payer's associated account. The
// admin must be the mint authority.
func (s *Service) MintTokens(ctx context.Context, mint ed25519.PublicKey, amount uint64) (*TokenResult, error) {
	admin, err := s.admin()
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"method": "MintTokens",
		"mint":   base58.Encode(mint),
		"amount": amount,
	})

	create, ata, err := token.CreateAssociatedTokenAccountIdempotent(s.payer(), s.payer(), mint)
	if err != nil {
		return nil, err
	}
	res, err := s.send(ctx, log, s.adminSigners(), create, token.MintTo(mint, ata, admin, amount))
	if err != nil {
		return nil, err
	}
	return &TokenResult{Result: res, Mint: mint, Account: ata}, nil
}

// Transfer sends amount of mint from the payer to destination's associated
// account, creating it when missing.
func (s *Service) Transfer(ctx context.Context, mint ed25519.PublicKey, amount uint64, destination ed25519.PublicKey) (*TokenResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":      "Transfer",
		"mint":        base58.Encode(mint),
		"amount":      amount,
		"destination": base58.Encode(destination),
	})

	source, exists, err := s.ataExists(s.payer(), mint)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(ErrInsufficientFunds, "payer has no account for mint %s", base58.Encode(mint))
	}

	create, ata, err := token.CreateAssociatedTokenAccountIdempotent(s.payer(), destination, mint)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"source": base58.Encode(source),
		"ata":    base58.Encode(ata),
	}).Info("transferring")

	res, err := s.send(ctx, log, s.payerSigners(), create, token.Transfer(source, ata, s.payer(), amount))
	if err != nil {
		return nil, err
	}
	return &TokenResult{Result: res, Mint: mint, Account: ata}, nil
}

// MintNft creates a zero decimal mint owned by the payer and mints a single
// token to destination.
func (s *Service) MintNft(ctx context.Context, destination ed25519.PublicKey) (*TokenResult, error) {
	mintPub, mintKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"method":      "MintNft",
		"mint":        base58.Encode(mintPub),
		"destination": base58.Encode(destination),
	})

	ixs, err := s.createMintInstructions(mintPub, s.payer(), 0)
	if err != nil {
		return nil, err
	}
	create, ata, err := token.CreateAssociatedTokenAccountIdempotent(s.payer(), destination, mintPub)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, create, token.MintTo(mintPub, ata, s.payer(), 1))

	res, err := s.send(ctx, log, packer.NewSigners(s.keys.Payer, mintKey), ixs...)
	if err != nil {
		return nil, err
	}
	return &TokenResult{Result: res, Mint: mintPub, Account: ata}, nil
}

func (s *Service) createMintInstructions(mint, authority ed25519.PublicKey, decimals uint8) ([]solana.Instruction, error) {
	lamports, err := s.sc.GetMinimumBalanceForRentExemption(token.MintSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rent exemption")
	}
	return []solana.Instruction{
		system.CreateAccount(s.payer(), mint, token.ProgramKey, lamports, token.MintSize),
		token.InitializeMint(mint, authority, nil, decimals),
	}, nil
}
