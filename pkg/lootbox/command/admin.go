package command

import (
	"context"
	"crypto/ed25519"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/lootbox/secrets"
	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/system"
)

const keySearchProgressInterval = 100_000

var (
	ErrInvalidPrefix = errors.New("prefix is not base58")

	errKeyFound = errors.New("key found")
)

// NewAdminResult describes a completed admin rotation.
type NewAdminResult struct {
	*packer.Result

	OldAdmin   ed25519.PublicKey
	NewAdmin   ed25519.PublicKey
	OldKeyName string
	Lamports   uint64
}

// NewAdmin generates a new admin key, records it in the secrets file and
// moves the old admin's lamports, minus what keeps it rent exempt, into the
// new account.
func (s *Service) NewAdmin(ctx context.Context) (*NewAdminResult, error) {
	oldAdmin, err := s.admin()
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"method":    "NewAdmin",
		"old_admin": base58.Encode(oldAdmin),
	})

	info, err := s.sc.GetAccountInfo(oldAdmin, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		return nil, errors.Wrapf(ErrInsufficientFunds, "no account for admin %s", base58.Encode(oldAdmin))
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get admin account")
	}

	reserve, err := s.sc.GetMinimumBalanceForRentExemption(uint64(len(info.Data) + 2))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rent exemption")
	}
	if info.Lamports <= reserve {
		return nil, errors.Wrapf(ErrInsufficientFunds, "admin holds %d lamports, %d must stay", info.Lamports, reserve)
	}
	lamports := info.Lamports - reserve

	newPub, newKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}

	log = log.WithField("new_admin", base58.Encode(newPub))
	log.WithFields(logrus.Fields{
		"balance":  info.Lamports,
		"reserve":  reserve,
		"lamports": lamports,
	}).Info("rotating admin")

	oldKeyName, err := secrets.RotateAdmin(s.secretsPath, newKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rotate admin in secrets")
	}

	ix := system.CreateAccount(oldAdmin, newPub, system.ProgramKey[:], lamports, 0)
	res, err := s.send(ctx, log, packer.NewSigners(s.keys.Payer, s.keys.Admin, newKey), ix)
	if err != nil {
		log.WithField("old_key_name", oldKeyName).Warn("admin rotated in secrets but funding failed")
		return nil, err
	}

	s.keys.Admin = newKey
	return &NewAdminResult{
		Result:     res,
		OldAdmin:   oldAdmin,
		NewAdmin:   newPub,
		OldKeyName: oldKeyName,
		Lamports:   lamports,
	}, nil
}

// KeyResult is a generated keypair and the number of keys tried.
type KeyResult struct {
	Key      ed25519.PrivateKey
	Attempts uint64
}

func (r *KeyResult) Address() string {
	return base58.Encode(r.Key.Public().(ed25519.PublicKey))
}

func (s *Service) NewKey(ctx context.Context, prefix string, workers int) (*KeyResult, error) {
	return GenerateKey(ctx, prefix, workers)
}

// GenerateKey generates a keypair whose base58 address starts with prefix.
// The search runs on workers goroutines, one per CPU when workers is zero,
// until a match is found or ctx is done.
func GenerateKey(ctx context.Context, prefix string, workers int) (*KeyResult, error) {
	if prefix != "" {
		if _, err := base58.Decode(prefix); err != nil {
			return nil, errors.Wrapf(ErrInvalidPrefix, "%q", prefix)
		}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":    "lootbox/command",
		"method":  "GenerateKey",
		"prefix":  prefix,
		"workers": workers,
	})

	var attempts atomic.Uint64
	found := make(chan ed25519.PrivateKey, 1)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				pub, priv, err := ed25519.GenerateKey(nil)
				if err != nil {
					return err
				}

				n := attempts.Add(1)
				if n%keySearchProgressInterval == 0 {
					log.WithField("attempts", n).Info("searching")
				}

				if strings.HasPrefix(base58.Encode(pub), prefix) {
					select {
					case found <- priv:
					default:
					}
					return errKeyFound
				}
			}
			return nil
		})
	}

	err := g.Wait()
	select {
	case key := <-found:
		return &KeyResult{Key: key, Attempts: attempts.Load()}, nil
	default:
	}
	if err != nil && err != errKeyFound {
		return nil, err
	}
	return nil, ctx.Err()
}
