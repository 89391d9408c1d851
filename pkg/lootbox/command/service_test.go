package command

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt/memory"
	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/solanatest"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
	"github.com/agorahub/lootbox-client/pkg/testutil"
)

type testEnv struct {
	ctx     context.Context
	sc      *solanatest.Client
	ledger  alt.Store
	profile *profile.Profile
	payer   ed25519.PrivateKey
	admin   ed25519.PrivateKey
	mint    ed25519.PublicKey
	secrets string
	service *Service
}

func setup(t *testing.T) *testEnv {
	prof, err := profile.Get(profile.Devnet)
	require.NoError(t, err)

	keys := testutil.GenerateSolanaKeypairs(t, 2)
	env := &testEnv{
		ctx:     context.Background(),
		sc:      solanatest.NewClient(),
		ledger:  memory.New(),
		profile: prof,
		payer:   keys[0],
		admin:   keys[1],
		mint:    testutil.GenerateSolanaKeys(t, 1)[0],
		secrets: filepath.Join(t.TempDir(), ".secrets.json"),
	}

	env.service = New(
		env.sc,
		packer.New(env.sc, env.ledger, packer.WithEnvConfigs()),
		env.ledger,
		prof,
		Keys{Payer: env.payer, Admin: env.admin},
		WithSecretsPath(env.secrets),
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)
	return env
}

func (e *testEnv) deployment() lootbox.Deployment {
	return e.profile.Deployment(testutil.PublicKey(e.admin))
}

func (e *testEnv) vaultAta(t *testing.T, mint ed25519.PublicKey) ed25519.PublicKey {
	ata, err := e.deployment().VaultTokenAccount(mint)
	require.NoError(t, err)
	return ata
}

func (e *testEnv) state(t *testing.T) *lootbox.State {
	_, bump, err := e.deployment().Vault()
	require.NoError(t, err)

	return &lootbox.State{
		Version:     lootbox.StateVersion4,
		LootboxId:   e.profile.LootboxId,
		Owner:       testutil.PublicKey(e.admin),
		VaultBump:   bump,
		TotalSupply: 10,
		MaxSupply:   100,
		BeginTs:     1,
		EndTs:       2_000_000_000,
		Name:        "test",
		Signer:      e.profile.Signer,
		Prices:      []lootbox.Price{{Amount: 5_000_000, Ata: e.vaultAta(t, e.mint)}},
		BaseUrl:     "https://example.com/",
	}
}

func (e *testEnv) putState(t *testing.T, state *lootbox.State) {
	data, err := state.Marshal()
	require.NoError(t, err)

	address, _, err := e.deployment().State()
	require.NoError(t, err)
	e.sc.SetAccount(address, solana.AccountInfo{
		Data:     data,
		Owner:    e.profile.Program,
		Lamports: 1_000_000,
	})
}

// unpack decodes the i-th submitted transaction.
func (e *testEnv) unpack(t *testing.T, i int) *UnpackedTransaction {
	submitted := e.sc.Submitted()
	require.Greater(t, len(submitted), i)

	txn := submitted[i]
	unpacked, err := e.service.UnpackTx(base64.StdEncoding.EncodeToString(txn.Marshal()))
	require.NoError(t, err)
	return unpacked
}

func (e *testEnv) lootboxRecord(t *testing.T, unpacked *UnpackedTransaction) lootbox.Record {
	for _, ix := range unpacked.Instructions {
		if ix.Lootbox != nil {
			return ix.Lootbox
		}
		require.NoError(t, ix.DecodeErr)
	}
	require.Fail(t, "no lootbox instruction")
	return nil
}

func (e *testEnv) hasProgram(unpacked *UnpackedTransaction, program ed25519.PublicKey) bool {
	for _, ix := range unpacked.Instructions {
		if ix.Program.Equal(program) {
			return true
		}
	}
	return false
}

func TestGetState(t *testing.T) {
	env := setup(t)

	_, err := env.service.GetState(env.ctx)
	testutil.AssertErrorCause(t, err, lootbox.ErrAccountNotFound)

	expected := env.state(t)
	env.putState(t, expected)

	view, err := env.service.GetState(env.ctx)
	require.NoError(t, err)

	address, _, err := env.deployment().State()
	require.NoError(t, err)
	vault, _, err := env.deployment().Vault()
	require.NoError(t, err)

	assert.Equal(t, address, view.Address)
	assert.Equal(t, vault, view.Vault)
	assert.Equal(t, expected.Name, view.State.Name)
	assert.Equal(t, expected.TotalSupply, view.State.TotalSupply)
	require.Len(t, view.State.Prices, 1)
	assert.EqualValues(t, 5_000_000, view.State.Prices[0].Amount)
}

func TestMissingAdmin(t *testing.T) {
	env := setup(t)
	env.service.keys.Admin = nil

	_, err := env.service.GetState(env.ctx)
	assert.Equal(t, ErrMissingAdmin, err)

	_, err = env.service.NewAdmin(env.ctx)
	assert.Equal(t, ErrMissingAdmin, err)
}

func TestBuy(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	result, err := env.service.Buy(env.ctx, env.mint)
	require.NoError(t, err)

	assert.Len(t, result.Tickets, lootbox.BuyBatchSize)
	assert.EqualValues(t, 5_000_000*lootbox.BuyBatchSize, result.Total)
	require.NotNil(t, result.State)
	assert.EqualValues(t, 10, result.State.TotalSupply)

	// The last submission is the purchase, whether or not a lookup table
	// was provisioned first.
	submitted := env.sc.Submitted()
	unpacked := env.unpack(t, len(submitted)-1)
	assert.True(t, env.hasProgram(unpacked, token.AssociatedTokenAccountProgramKey))

	buy, ok := env.lootboxRecord(t, unpacked).(*lootbox.Buy)
	require.True(t, ok)
	assert.EqualValues(t, 1_700_000_000, buy.TicketSeed)
	assert.Len(t, buy.TicketBumps, lootbox.BuyBatchSize)
}

func TestBuy_ExistingAta(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	ata, err := token.GetAssociatedAccount(testutil.PublicKey(env.payer), env.mint)
	require.NoError(t, err)
	env.sc.SetTokenAccount(ata, env.mint, testutil.PublicKey(env.payer), 1_000_000_000)

	_, err = env.service.Buy(env.ctx, env.mint)
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	unpacked := env.unpack(t, len(submitted)-1)
	assert.False(t, env.hasProgram(unpacked, token.AssociatedTokenAccountProgramKey))
}

func TestBuy_SoldOut(t *testing.T) {
	env := setup(t)
	state := env.state(t)
	state.TotalSupply = state.MaxSupply - 5
	env.putState(t, state)

	_, err := env.service.Buy(env.ctx, env.mint)
	testutil.AssertErrorCause(t, err, ErrSoldOut)
	assert.Empty(t, env.sc.Submitted())
}

func TestBuy_UnknownPrice(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	_, err := env.service.Buy(env.ctx, testutil.GenerateSolanaKeys(t, 1)[0])
	testutil.AssertErrorCause(t, err, lootbox.ErrPriceNotConfigured)
	assert.Empty(t, env.sc.Submitted())
}

func TestWithdraw(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	rewardMints := testutil.GenerateSolanaKeys(t, 2)
	existing, err := token.GetAssociatedAccount(testutil.PublicKey(env.payer), rewardMints[0])
	require.NoError(t, err)
	env.sc.SetTokenAccount(existing, rewardMints[0], testutil.PublicKey(env.payer), 0)

	sig := lootbox.Signature{RecoveryId: 1}
	sig.RS[0] = 0xaa

	_, err = env.service.Withdraw(env.ctx, WithdrawRequest{
		ExpireAt:    1_800_000_000,
		Signature:   sig.String(),
		TicketMints: testutil.GenerateSolanaKeys(t, 2),
		Rewards: []RewardRequest{
			{Mint: rewardMints[0], Amount: 10},
			{Mint: rewardMints[1], Amount: 20},
		},
	})
	require.NoError(t, err)

	submitted := env.sc.Submitted()
	unpacked := env.unpack(t, len(submitted)-1)

	var creates int
	for _, ix := range unpacked.Instructions {
		if ix.Program.Equal(token.AssociatedTokenAccountProgramKey) {
			creates++
		}
	}
	assert.Equal(t, 1, creates)

	withdraw, ok := env.lootboxRecord(t, unpacked).(*lootbox.Withdraw)
	require.True(t, ok)
	assert.EqualValues(t, 1_800_000_000, withdraw.ExpireAt)
	assert.Equal(t, sig, withdraw.Signature)
	assert.EqualValues(t, 2, withdraw.Tickets)
	assert.Equal(t, []uint64{10, 20}, withdraw.Amounts)
}

func TestWithdraw_InvalidSignature(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	_, err := env.service.Withdraw(env.ctx, WithdrawRequest{
		Signature:   "0x1234",
		TicketMints: testutil.GenerateSolanaKeys(t, 1),
	})
	testutil.AssertErrorCause(t, err, lootbox.ErrInvalidSignatureFormat)
	assert.Empty(t, env.sc.Submitted())
}

func TestObtainTicket(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	sig := lootbox.Signature{RecoveryId: 0}
	result, err := env.service.ObtainTicket(env.ctx, 42, 1_800_000_000, sig.String())
	require.NoError(t, err)

	mint, _, err := lootbox.GetTicketMintAddress(env.profile.Program, testutil.PublicKey(env.admin), 42)
	require.NoError(t, err)
	assert.Equal(t, mint, result.Mint)

	destination, err := token.GetAssociatedAccount(testutil.PublicKey(env.payer), mint)
	require.NoError(t, err)
	assert.Equal(t, destination, result.DestinationAccount)

	unpacked := env.unpack(t, len(env.sc.Submitted())-1)
	obtain, ok := env.lootboxRecord(t, unpacked).(*lootbox.ObtainTicket)
	require.True(t, ok)
	assert.EqualValues(t, 42, obtain.TicketId)
	assert.Equal(t, env.profile.LootboxId, obtain.LootboxId)
}

func TestInitialize(t *testing.T) {
	env := setup(t)

	// Stand in for the program creating the state account.
	env.sc.OnSubmit(func(txn solana.Transaction) error {
		env.putState(t, env.state(t))
		return nil
	})

	view, err := env.service.Initialize(env.ctx, InitializeRequest{
		MaxSupply: 100,
		BeginTs:   1,
		EndTs:     2_000_000_000,
		Name:      "test",
		BaseUrl:   "https://example.com/",
		Prices:    []PriceRequest{{Mint: env.mint, Amount: 5_000_000}},
	})
	require.NoError(t, err)
	assert.Equal(t, "test", view.State.Name)

	unpacked := env.unpack(t, 0)
	assert.True(t, env.hasProgram(unpacked, token.AssociatedTokenAccountProgramKey))
	assert.Contains(t, unpacked.Signers, testutil.PublicKey(env.admin))

	initialize, ok := env.lootboxRecord(t, unpacked).(*lootbox.Initialize)
	require.True(t, ok)
	assert.Equal(t, env.profile.Signer, initialize.Signer)
	assert.Equal(t, env.profile.LootboxId, initialize.LootboxId)
	assert.Equal(t, []uint64{5_000_000}, initialize.Prices)
}

func TestMigrate(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	view, err := env.service.Migrate(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, lootbox.StateVersion4, view.State.Version)

	unpacked := env.unpack(t, 0)
	_, ok := env.lootboxRecord(t, unpacked).(*lootbox.Migrate)
	assert.True(t, ok)
	assert.Contains(t, unpacked.Signers, testutil.PublicKey(env.admin))
}

func TestUpdatePrice(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	_, err := env.service.UpdatePrice(env.ctx, env.mint, 7_000_000)
	require.NoError(t, err)

	update, ok := env.lootboxRecord(t, env.unpack(t, 0)).(*lootbox.UpdateState)
	require.True(t, ok)
	assert.True(t, update.Flags.Has(lootbox.UpdatePrice))
	assert.False(t, update.Flags.Has(lootbox.UpdateMaxSupply))
	assert.EqualValues(t, 7_000_000, update.PriceAmount)
	assert.Equal(t, []byte(env.vaultAta(t, env.mint)), update.PriceAta[:])
}

func TestUpdateState(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	_, err := env.service.UpdateState(env.ctx, lootbox.UpdateStateParams{})
	testutil.AssertErrorCause(t, err, lootbox.ErrInvalidParameter)

	maxSupply := uint32(500)
	_, err = env.service.UpdateState(env.ctx, lootbox.UpdateStateParams{MaxSupply: &maxSupply})
	require.NoError(t, err)

	update, ok := env.lootboxRecord(t, env.unpack(t, 0)).(*lootbox.UpdateState)
	require.True(t, ok)
	assert.True(t, update.Flags.Has(lootbox.UpdateMaxSupply))
	assert.EqualValues(t, 500, update.MaxSupply)
}

func TestAdminWithdraw(t *testing.T) {
	env := setup(t)
	env.putState(t, env.state(t))

	_, err := env.service.AdminWithdraw(env.ctx, env.mint, 1_000)
	require.NoError(t, err)

	unpacked := env.unpack(t, 0)
	assert.True(t, env.hasProgram(unpacked, token.AssociatedTokenAccountProgramKey))

	withdraw, ok := env.lootboxRecord(t, unpacked).(*lootbox.AdminWithdraw)
	require.True(t, ok)
	assert.EqualValues(t, 1_000, withdraw.Amount)

	_, err = env.service.AdminWithdraw(env.ctx, env.mint, 0)
	testutil.AssertErrorCause(t, err, lootbox.ErrInvalidParameter)
}
