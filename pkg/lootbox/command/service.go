// Package command implements the lootbox CLI operations on top of the
// instruction builders and the transaction packer.
package command

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
	"github.com/agorahub/lootbox-client/pkg/lootbox/secrets"
	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
)

var (
	ErrMissingAdmin      = errors.New("admin key not configured")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSoldOut           = errors.New("lootbox sold out")
)

// Keys are the signing keys loaded from the secrets file.
type Keys struct {
	Payer ed25519.PrivateKey
	Admin ed25519.PrivateKey
}

// Option configures a Service.
type Option func(s *Service)

// WithSecretsPath sets the secrets file rewritten by NewAdmin.
func WithSecretsPath(path string) Option {
	return func(s *Service) {
		s.secretsPath = path
	}
}

// WithClock overrides the time source used for ticket seeds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service runs lootbox operations against one profile.
type Service struct {
	log         *logrus.Entry
	sc          solana.Client
	packer      *packer.Packer
	ledger      alt.Store
	profile     *profile.Profile
	keys        Keys
	secretsPath string
	now         func() time.Time
}

func New(sc solana.Client, p *packer.Packer, ledger alt.Store, prof *profile.Profile, keys Keys, opts ...Option) *Service {
	s := &Service{
		log:         logrus.StandardLogger().WithField("type", "lootbox/command"),
		sc:          sc,
		packer:      p,
		ledger:      ledger,
		profile:     prof,
		keys:        keys,
		secretsPath: secrets.DefaultPath,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Profile returns the profile the service operates on.
func (s *Service) Profile() *profile.Profile {
	return s.profile
}

func (s *Service) payer() ed25519.PublicKey {
	return s.keys.Payer.Public().(ed25519.PublicKey)
}

func (s *Service) admin() (ed25519.PublicKey, error) {
	if len(s.keys.Admin) != ed25519.PrivateKeySize {
		return nil, ErrMissingAdmin
	}
	return s.keys.Admin.Public().(ed25519.PublicKey), nil
}

// deployment addresses the profile's lootbox owned by the current admin.
func (s *Service) deployment() (lootbox.Deployment, error) {
	admin, err := s.admin()
	if err != nil {
		return lootbox.Deployment{}, err
	}
	return s.profile.Deployment(admin), nil
}

func (s *Service) payerSigners() packer.Signers {
	return packer.NewSigners(s.keys.Payer)
}

func (s *Service) adminSigners() packer.Signers {
	return packer.NewSigners(s.keys.Payer, s.keys.Admin)
}

func (s *Service) fetchState(d lootbox.Deployment) (*lootbox.State, error) {
	state, err := d.FetchState(s.sc, solana.CommitmentConfirmed)
	if err != nil {
		address, _, _ := d.State()
		return nil, errors.Wrapf(err, "failed to fetch state %s", base58.Encode(address))
	}
	return state, nil
}

// refresh re-reads the state after a mutation and logs how the supply and
// withdraw counter moved.
func (s *Service) refresh(log *logrus.Entry, d lootbox.Deployment, before *lootbox.State) *lootbox.State {
	after, err := s.fetchState(d)
	if err != nil {
		log.WithError(err).Warn("failed to refresh state")
		return nil
	}

	fields := logrus.Fields{
		"total_supply":     after.TotalSupply,
		"withdraw_counter": after.WithdrawCounter,
	}
	if before != nil {
		fields["supply_delta"] = int64(after.TotalSupply) - int64(before.TotalSupply)
		fields["withdraw_delta"] = int64(after.WithdrawCounter) - int64(before.WithdrawCounter)
	}
	log.WithFields(fields).Info("state refreshed")
	return after
}

// ataExists reports whether owner's associated account for mint exists.
func (s *Service) ataExists(owner, mint ed25519.PublicKey) (ed25519.PublicKey, bool, error) {
	ata, exists, err := token.NewClient(s.sc, mint).AssociatedAccountExists(owner, solana.CommitmentConfirmed)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to check associated account of %s for mint %s", base58.Encode(owner), base58.Encode(mint))
	}
	return ata, exists, nil
}

func (s *Service) send(ctx context.Context, log *logrus.Entry, signers packer.Signers, ixs ...solana.Instruction) (*packer.Result, error) {
	res, err := s.packer.Send(ctx, signers, ixs...)
	if err != nil {
		var submitErr *packer.SubmitError
		if errors.As(err, &submitErr) && len(submitErr.Logs) > 0 {
			log.WithField("logs", submitErr.LogString()).Warn("transaction failed")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"signature": res.Signature.String(),
		"size":      res.Size,
		"versioned": res.Versioned(),
	}).Info("transaction confirmed")
	return res, nil
}
