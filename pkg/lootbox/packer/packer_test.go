package packer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt/memory"
	"github.com/agorahub/lootbox-client/pkg/solana"
	address_lookup_table "github.com/agorahub/lootbox-client/pkg/solana/addresslookuptable"
	"github.com/agorahub/lootbox-client/pkg/solana/solanatest"
	"github.com/agorahub/lootbox-client/pkg/testutil"
)

type testEnv struct {
	ctx     context.Context
	sc      *solanatest.Client
	ledger  alt.Store
	packer  *Packer
	payer   ed25519.PrivateKey
	program ed25519.PublicKey
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	sc := solanatest.NewClient()
	ledger := memory.New()

	return &testEnv{
		ctx:     context.Background(),
		sc:      sc,
		ledger:  ledger,
		packer:  New(sc, ledger, withManualTestOverrides(overrides)),
		payer:   testutil.GenerateSolanaKeypair(t),
		program: testutil.GenerateSolanaKeys(t, 1)[0],
	}
}

func (e *testEnv) wideInstruction(t *testing.T, accounts int) solana.Instruction {
	var metas []solana.AccountMeta
	for _, key := range testutil.GenerateSolanaKeys(t, accounts) {
		metas = append(metas, solana.NewReadonlyAccountMeta(key, false))
	}
	return solana.NewInstruction(e.program, []byte{1, 2, 3}, metas...)
}

func TestSend_Legacy(t *testing.T) {
	env := setup(t, &testOverrides{})

	result, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 5))
	require.NoError(t, err)
	assert.False(t, result.Versioned())
	assert.LessOrEqual(t, result.Size, solana.MaxTransactionSize)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, solana.MessageVersionLegacy, submitted[0].Message.Version())
	assert.Equal(t, result.Signature, submitted[0].Signatures[0])

	_, err = env.ledger.GetAll(env.ctx)
	assert.Equal(t, alt.ErrNotFound, err)
}

func TestSend_AdditionalSigner(t *testing.T) {
	env := setup(t, &testOverrides{})
	extra := testutil.GenerateSolanaKeypair(t)

	ixn := solana.NewInstruction(env.program, nil, solana.NewAccountMeta(testutil.PublicKey(extra), true))
	_, err := env.packer.Send(env.ctx, NewSigners(env.payer, extra), ixn)
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	assert.Len(t, submitted[0].Signatures, 2)
	assert.True(t, submitted[0].IsFullySigned())

	stranger := testutil.GenerateSolanaKeypair(t)
	_, err = env.packer.Send(env.ctx, NewSigners(env.payer, stranger), ixn)
	assert.Error(t, err)
	assert.Len(t, env.sc.Submitted(), 1)
}

func TestSend_NoInstructions(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.packer.Send(env.ctx, NewSigners(env.payer))
	assert.Equal(t, ErrNoInstructions, err)
}

func TestSend_LookupTable(t *testing.T) {
	env := setup(t, &testOverrides{})
	payer := testutil.PublicKey(env.payer)

	expectedTable, _, err := address_lookup_table.GetAddress(payer, 1000)
	require.NoError(t, err)

	ixn := env.wideInstruction(t, 40)
	result, err := env.packer.Send(env.ctx, NewSigners(env.payer), ixn)
	require.NoError(t, err)
	require.True(t, result.Versioned())
	assert.EqualValues(t, expectedTable, result.LookupTable)
	assert.LessOrEqual(t, result.Size, solana.MaxTransactionSize)

	// create + extend(28), extend(12), versioned send
	submitted := env.sc.Submitted()
	require.Len(t, submitted, 3)

	assert.Equal(t, solana.MessageVersionLegacy, submitted[0].Message.Version())
	assert.Len(t, submitted[0].Message.Instructions, 2)
	assert.Len(t, submitted[1].Message.Instructions, 1)

	final := submitted[2]
	assert.Equal(t, solana.MessageVersion0, final.Message.Version())
	require.Len(t, final.Message.AddressTableLookups, 1)
	lookup := final.Message.AddressTableLookups[0]
	assert.EqualValues(t, expectedTable, lookup.PublicKey)
	assert.Len(t, lookup.ReadonlyIndexes, 40)
	assert.Empty(t, lookup.WritableIndexes)

	require.Len(t, final.Message.Instructions, 2)
	deactivate := final.Message.Instructions[1]
	assert.True(t, bytes.Equal(address_lookup_table.ProgramKey, final.Message.Accounts[deactivate.ProgramIndex]))
	assert.Equal(t, []byte{3, 0, 0, 0}, deactivate.Data)

	// Every provisioning step and the final send used distinct blockhashes.
	assert.Len(t, env.sc.Blockhashes(), 4)

	record, err := env.ledger.Get(env.ctx, base58.Encode(expectedTable))
	require.NoError(t, err)
	assert.Equal(t, alt.StateDeactivating, record.State)
	assert.EqualValues(t, 40, record.Addresses)
	assert.EqualValues(t, 1000, record.Slot)
	assert.Equal(t, base58.Encode(payer), record.Authority)
	assert.Equal(t, result.Signature.String(), record.LastSignature)
	assert.NotEmpty(t, record.RunId)
}

func TestSend_LookupTableBatchSize(t *testing.T) {
	env := setup(t, &testOverrides{altBatchSize: 10})

	result, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 40))
	require.NoError(t, err)
	assert.True(t, result.Versioned())

	// four provisioning batches plus the versioned send
	assert.Len(t, env.sc.Submitted(), 5)
}

func TestSend_TooLargeForLookupTable(t *testing.T) {
	env := setup(t, &testOverrides{})

	ixn := env.wideInstruction(t, 40)
	ixn.Data = make([]byte, solana.MaxTransactionSize)

	_, err := env.packer.Send(env.ctx, NewSigners(env.payer), ixn)
	assert.Equal(t, ErrTransactionSizeExceeded, err)
	assert.Empty(t, env.sc.Submitted())

	_, err = env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, MaxLookupTableAddresses+1))
	assert.Equal(t, ErrTransactionSizeExceeded, err)
	assert.Empty(t, env.sc.Submitted())

	_, err = env.ledger.GetAll(env.ctx)
	assert.Equal(t, alt.ErrNotFound, err)
}

func TestSend_PreflightFailure(t *testing.T) {
	env := setup(t, &testOverrides{})

	txErr := solana.NewCustomInstructionError(0, 6)
	env.sc.OnSubmit(func(solana.Transaction) error {
		return txErr
	})

	_, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 2))
	require.Error(t, err)

	var submitErr *SubmitError
	require.True(t, errors.As(err, &submitErr))
	assert.Equal(t, txErr, submitErr.Err)
	assert.NotEqual(t, solana.Signature{}, submitErr.Signature)
}

func TestSend_LookupTableOnChainFailure(t *testing.T) {
	env := setup(t, &testOverrides{})
	payer := testutil.PublicKey(env.payer)

	logs := []string{"Program log: Error: sold out"}
	env.sc.OnSubmit(func(txn solana.Transaction) error {
		if txn.Message.Version() == solana.MessageVersion0 {
			env.sc.FailSignature(txn.Signatures[0], solana.NewCustomInstructionError(0, 3), logs)
		}
		return nil
	})

	hook, reset := testutil.CaptureLogs()
	defer reset()

	_, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 40))
	require.Error(t, err)

	var submitErr *SubmitError
	require.True(t, errors.As(err, &submitErr))
	assert.Equal(t, logs, submitErr.Logs)
	assert.Contains(t, submitErr.LogString(), "sold out")

	table, _, err := address_lookup_table.GetAddress(payer, 1000)
	require.NoError(t, err)

	records, err := env.ledger.GetAllByState(env.ctx, alt.StateOrphaned)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, base58.Encode(table), records[0].Address)
	assert.Equal(t, submitErr.Signature.String(), records[0].LastSignature)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["table"] == base58.Encode(table) {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestSend_ProvisioningFailure(t *testing.T) {
	env := setup(t, &testOverrides{})

	var calls int
	env.sc.OnSubmit(func(txn solana.Transaction) error {
		calls++
		if calls == 2 {
			return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
		}
		return nil
	})

	_, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 40))
	require.Error(t, err)
	assert.Len(t, env.sc.Submitted(), 1)

	records, err := env.ledger.GetAllByState(env.ctx, alt.StateOrphaned)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.EqualValues(t, 28, records[0].Addresses)
}

func TestSend_ProvisioningRejected(t *testing.T) {
	env := setup(t, &testOverrides{})

	env.sc.OnSubmit(func(solana.Transaction) error {
		return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	})

	_, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 40))
	require.Error(t, err)

	var submitErr *SubmitError
	require.True(t, errors.As(err, &submitErr))
	assert.Empty(t, env.sc.Submitted())

	// The table was never created, so there is nothing to reclaim.
	_, err = env.ledger.GetAll(env.ctx)
	assert.Equal(t, alt.ErrNotFound, err)
}

func TestSend_LookupTableBatchSizeCapped(t *testing.T) {
	env := setup(t, &testOverrides{altBatchSize: 64})

	result, err := env.packer.Send(env.ctx, NewSigners(env.payer), env.wideInstruction(t, 40))
	require.NoError(t, err)
	assert.True(t, result.Versioned())

	// create + extend(28), extend(12), versioned send
	submitted := env.sc.Submitted()
	require.Len(t, submitted, 3)
	for _, txn := range submitted {
		assert.LessOrEqual(t, len(txn.Marshal()), solana.MaxTransactionSize)
	}
}

func TestConfirm_Cancelled(t *testing.T) {
	env := setup(t, &testOverrides{})

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()

	err := env.packer.Confirm(ctx, solana.Signature{1}, solana.CommitmentConfirmed)
	assert.Equal(t, context.Canceled, err)
}

func TestConfirm_Timeout(t *testing.T) {
	env := setup(t, &testOverrides{})

	err := env.packer.Confirm(env.ctx, solana.Signature{1}, solana.CommitmentConfirmed)
	testutil.AssertErrorCause(t, err, ErrNotConfirmed)
}

func TestTrialSize(t *testing.T) {
	env := setup(t, &testOverrides{})
	payer := testutil.PublicKey(env.payer)

	txn := solana.NewTransaction(payer, env.wideInstruction(t, 1))
	size := trialSize(txn, []ed25519.PrivateKey{env.payer})
	assert.Equal(t, len(txn.Marshal()), size)
	assert.False(t, txn.IsFullySigned())

	assert.Equal(t, math.MaxInt, trialSize(txn, []ed25519.PrivateKey{testutil.GenerateSolanaKeypair(t)}))
}

func TestConfirm_TimeoutAgainstNode(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getSignatureStatuses", req.Method)
		atomic.AddInt32(&calls, 1)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value":   []interface{}{nil},
			},
		}))
	}))
	defer server.Close()

	p := New(solana.New(server.URL), memory.New(), withManualTestOverrides(&testOverrides{
		confirmTimeout:      200 * time.Millisecond,
		confirmPollInterval: 20 * time.Millisecond,
	}))

	start := time.Now()
	err := p.Confirm(context.Background(), solana.Signature{1}, solana.CommitmentConfirmed)
	testutil.AssertErrorCause(t, err, ErrNotConfirmed)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, atomic.LoadInt32(&calls), int32(1))
}
