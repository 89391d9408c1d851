package packer

import (
	"context"
	"crypto/ed25519"
	"math"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
	"github.com/agorahub/lootbox-client/pkg/retry"
	"github.com/agorahub/lootbox-client/pkg/retry/backoff"
	"github.com/agorahub/lootbox-client/pkg/solana"
	address_lookup_table "github.com/agorahub/lootbox-client/pkg/solana/addresslookuptable"
)

const (
	// MaxLookupTableAddresses is the most addresses a single table can hold.
	MaxLookupTableAddresses = 256
)

var (
	ErrNoInstructions          = errors.New("no instructions to send")
	ErrTransactionSizeExceeded = errors.New("transaction exceeds the maximum size even with a lookup table")
	ErrNotConfirmed            = errors.New("transaction not confirmed")
)

// Signers are the keys signing a packed transaction. The payer pays fees and
// owns any lookup table created on its behalf.
type Signers struct {
	Payer      ed25519.PrivateKey
	Additional []ed25519.PrivateKey
}

func NewSigners(payer ed25519.PrivateKey, additional ...ed25519.PrivateKey) Signers {
	return Signers{Payer: payer, Additional: additional}
}

func (s Signers) PayerKey() ed25519.PublicKey {
	return s.Payer.Public().(ed25519.PublicKey)
}

func (s Signers) all() []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, 0, 1+len(s.Additional))
	keys = append(keys, s.Payer)
	for _, k := range s.Additional {
		if k.Public().(ed25519.PublicKey).Equal(s.PayerKey()) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Result describes a transaction that landed.
type Result struct {
	Signature solana.Signature

	// LookupTable is set when the instructions only fit in a versioned
	// transaction backed by a freshly provisioned lookup table.
	LookupTable ed25519.PublicKey
	Size        int
}

func (r *Result) Versioned() bool {
	return len(r.LookupTable) > 0
}

// Packer submits instruction lists as a single transaction, falling back to a
// temporary address lookup table when a legacy transaction would be too large.
type Packer struct {
	log    *logrus.Entry
	conf   *conf
	sc     solana.Client
	ledger alt.Store
}

func New(sc solana.Client, ledger alt.Store, configProvider ConfigProvider) *Packer {
	return &Packer{
		log:    logrus.StandardLogger().WithField("type", "lootbox/packer"),
		conf:   configProvider(),
		sc:     sc,
		ledger: ledger,
	}
}

// Send packs the instructions into one transaction, submits it and waits for
// confirmation.
func (p *Packer) Send(ctx context.Context, signers Signers, instructions ...solana.Instruction) (*Result, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}

	if err := checkSigners(signers, instructions); err != nil {
		return nil, err
	}

	payer := signers.PayerKey()
	log := p.log.WithFields(logrus.Fields{
		"method": "Send",
		"payer":  base58.Encode(payer),
	})

	blockhash, err := p.sc.GetLatestBlockhash()
	if err != nil {
		return nil, errors.Wrap(err, "error getting latest blockhash")
	}

	txn := solana.NewTransaction(payer, instructions...)
	txn.SetBlockhash(blockhash)

	size := trialSize(txn, signers.all())
	if size <= solana.MaxTransactionSize {
		log.WithField("size", size).Debug("sending legacy transaction")

		sig, err := p.submit(ctx, txn, signers.all())
		if err != nil {
			return nil, err
		}
		return &Result{Signature: sig, Size: size}, nil
	}

	log.WithField("size", size).Info("transaction too large, packing with an address lookup table")
	return p.sendWithLookupTable(ctx, log, signers, instructions)
}

func (p *Packer) sendWithLookupTable(ctx context.Context, log *logrus.Entry, signers Signers, instructions []solana.Instruction) (*Result, error) {
	payer := signers.PayerKey()

	candidates := solana.GetLookupTableCandidates(payer, instructions)
	if len(candidates) == 0 || len(candidates) > MaxLookupTableAddresses {
		return nil, ErrTransactionSizeExceeded
	}

	slot, err := p.sc.GetSlot(solana.CommitmentFinalized)
	if err != nil {
		return nil, errors.Wrap(err, "error getting recent slot")
	}

	table, bump, err := address_lookup_table.GetAddress(payer, slot)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving lookup table address")
	}

	versioned := func(blockhash solana.Blockhash) solana.Transaction {
		ixns := append(append([]solana.Instruction{}, instructions...), address_lookup_table.Deactivate(table, payer))
		txn := solana.NewVersionedTransaction(payer, []solana.AddressLookupTable{{PublicKey: table, Addresses: candidates}}, ixns)
		txn.SetBlockhash(blockhash)
		return txn
	}

	if size := trialSize(versioned(solana.Blockhash{}), signers.all()); size > solana.MaxTransactionSize {
		log.WithField("size", size).Warn("transaction too large even with a lookup table")
		return nil, ErrTransactionSizeExceeded
	}

	record := &alt.Record{
		Address:   base58.Encode(table),
		Authority: base58.Encode(payer),
		Slot:      slot,
		RunId:     uuid.New().String(),
		State:     alt.StateCreated,
	}
	log = log.WithFields(logrus.Fields{
		"table":  record.Address,
		"run_id": record.RunId,
	})

	if err := p.provision(ctx, log, signers, record, table, bump, candidates); err != nil {
		p.orphan(ctx, log, record, err)
		return nil, err
	}

	blockhash, err := p.sc.GetLatestBlockhash()
	if err != nil {
		p.orphan(ctx, log, record, err)
		return nil, errors.Wrap(err, "error getting latest blockhash")
	}

	txn := versioned(blockhash)
	size := trialSize(txn, signers.all())
	if size > solana.MaxTransactionSize {
		p.orphan(ctx, log, record, ErrTransactionSizeExceeded)
		return nil, ErrTransactionSizeExceeded
	}

	sig, err := p.submit(ctx, txn, signers.all())
	if err != nil {
		if submitErr, ok := err.(*SubmitError); ok {
			record.LastSignature = submitErr.Signature.String()
		}
		p.orphan(ctx, log, record, err)
		return nil, err
	}

	record.State = alt.StateDeactivating
	record.LastSignature = sig.String()
	p.save(ctx, log, record)

	log.WithField("signature", sig.String()).Info("versioned transaction confirmed")
	return &Result{Signature: sig, LookupTable: table, Size: size}, nil
}

// provision creates the table and registers every candidate, one confirmed
// batch at a time. The final batch waits for finalization so the table can be
// loaded by the next transaction.
func (p *Packer) provision(ctx context.Context, log *logrus.Entry, signers Signers, record *alt.Record, table ed25519.PublicKey, bump uint8, candidates []ed25519.PublicKey) error {
	payer := signers.PayerKey()
	payerOnly := []ed25519.PrivateKey{signers.Payer}

	batchSize := int(p.conf.altBatchSize.Get(ctx))
	if batchSize <= 0 || batchSize > maxAltBatchSize {
		batchSize = maxAltBatchSize
	}

	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		last := end == len(candidates)

		var ixns []solana.Instruction
		if start == 0 {
			ixns = append(ixns, address_lookup_table.Create(table, payer, payer, record.Slot, bump))
		}
		ixns = append(ixns, address_lookup_table.Extend(table, payer, payer, candidates[start:end]...))

		blockhash, err := p.sc.GetLatestBlockhash()
		if err != nil {
			return errors.Wrap(err, "error getting latest blockhash")
		}

		txn := solana.NewTransaction(payer, ixns...)
		txn.SetBlockhash(blockhash)

		if size := trialSize(txn, payerOnly); size > solana.MaxTransactionSize {
			log.WithFields(logrus.Fields{
				"size":       size,
				"batch_size": batchSize,
			}).Warn("lookup table batch too large")
			return ErrTransactionSizeExceeded
		}

		commitment := p.confirmCommitment(ctx)
		if last {
			commitment = solana.CommitmentFinalized
		}

		sig, err := p.sign(&txn, payerOnly)
		if err != nil {
			return err
		}
		if _, err := p.sc.SubmitTransaction(txn, commitment); err != nil {
			return newSubmitError(sig, err)
		}
		if err := p.Confirm(ctx, sig, commitment); err != nil {
			if _, failed := err.(*SubmitError); !failed {
				// Accepted but unconfirmed, so the batch may still land.
				record.LastSignature = sig.String()
			}
			return err
		}

		record.Addresses = uint32(end)
		record.LastSignature = sig.String()
		if last {
			record.State = alt.StateExtended
		}
		p.save(ctx, log, record)

		log.WithFields(logrus.Fields{
			"registered": end,
			"total":      len(candidates),
			"signature":  sig.String(),
		}).Debug("lookup table batch confirmed")
	}

	return nil
}

func (p *Packer) orphan(ctx context.Context, log *logrus.Entry, record *alt.Record, cause error) {
	log.WithError(cause).Warnf("lookup table %s left behind, reclaim it with close-alt", record.Address)

	if record.Addresses == 0 && len(record.LastSignature) == 0 {
		// Nothing landed on chain.
		return
	}

	record.State = alt.StateOrphaned
	p.save(ctx, log, record)
}

func (p *Packer) save(ctx context.Context, log *logrus.Entry, record *alt.Record) {
	if err := p.ledger.Save(ctx, record); err != nil {
		log.WithError(err).Warn("failure updating lookup table ledger")
	}
}

func (p *Packer) confirmCommitment(ctx context.Context) solana.Commitment {
	commitment, err := solana.ParseCommitment(p.conf.confirmCommitment.Get(ctx))
	if err != nil {
		p.log.WithError(err).Warn("invalid confirmation commitment, using confirmed")
		return solana.CommitmentConfirmed
	}
	return commitment
}

func (p *Packer) submit(ctx context.Context, txn solana.Transaction, signers []ed25519.PrivateKey) (solana.Signature, error) {
	return p.submitWithCommitment(ctx, txn, signers, p.confirmCommitment(ctx))
}

func (p *Packer) submitWithCommitment(ctx context.Context, txn solana.Transaction, signers []ed25519.PrivateKey, commitment solana.Commitment) (solana.Signature, error) {
	sig, err := p.sign(&txn, signers)
	if err != nil {
		return sig, err
	}

	if _, err := p.sc.SubmitTransaction(txn, commitment); err != nil {
		return sig, newSubmitError(sig, err)
	}

	if err := p.Confirm(ctx, sig, commitment); err != nil {
		return sig, err
	}
	return sig, nil
}

func (p *Packer) sign(txn *solana.Transaction, signers []ed25519.PrivateKey) (solana.Signature, error) {
	if err := txn.Sign(signers...); err != nil {
		return solana.Signature{}, errors.Wrap(err, "error signing transaction")
	}
	return txn.Signatures[0], nil
}

// Confirm polls the signature until it reaches commitment or the configured
// confirmation timeout elapses. A transaction that failed on chain is returned
// as a *SubmitError with its program logs.
func (p *Packer) Confirm(ctx context.Context, sig solana.Signature, commitment solana.Commitment) error {
	interval := p.conf.confirmPollInterval.Get(ctx)
	if interval <= 0 {
		interval = defaultConfirmPollInterval
	}
	timeout := p.conf.confirmTimeout.Get(ctx)
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var failed *solana.TransactionError
	_, err := retry.Retry(
		func() error {
			statuses, err := p.sc.GetSignatureStatuses([]solana.Signature{sig})
			if err != nil {
				return err
			}

			status := statuses[0]
			if status == nil {
				return ErrNotConfirmed
			}
			if status.ErrorResult != nil {
				failed = status.ErrorResult
				return nil
			}
			if !status.Reached(commitment) {
				return ErrNotConfirmed
			}
			return nil
		},
		retry.Context(pollCtx),
		retry.Backoff(backoff.Constant(interval), interval),
	)
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return ctxErr
	} else if err != nil {
		return errors.Wrapf(err, "error confirming %s", sig.String())
	}

	if failed != nil {
		var logs []string
		if confirmed, err := p.sc.GetTransaction(sig, commitment); err == nil && confirmed.Meta != nil {
			logs = confirmed.Meta.LogMessages
		}
		return &SubmitError{Signature: sig, Logs: logs, Err: failed}
	}
	return nil
}

// checkSigners rejects additional signers that no instruction asks for.
func checkSigners(signers Signers, instructions []solana.Instruction) error {
	for _, key := range signers.Additional {
		pub := key.Public().(ed25519.PublicKey)
		if pub.Equal(signers.PayerKey()) {
			continue
		}

		var found bool
		for _, ixn := range instructions {
			for _, account := range ixn.Accounts {
				if account.IsSigner && pub.Equal(account.PublicKey) {
					found = true
				}
			}
		}
		if !found {
			return errors.Errorf("signer %s is not required by any instruction", base58.Encode(pub))
		}
	}
	return nil
}

// trialSize signs a copy of txn and returns its wire size, or math.MaxInt if
// it cannot be produced.
func trialSize(txn solana.Transaction, signers []ed25519.PrivateKey) (size int) {
	defer func() {
		if r := recover(); r != nil {
			size = math.MaxInt
		}
	}()

	txn.Signatures = append([]solana.Signature(nil), txn.Signatures...)
	if err := txn.Sign(signers...); err != nil {
		return math.MaxInt
	}
	return len(txn.Marshal())
}
