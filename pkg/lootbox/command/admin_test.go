package command

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/lootbox/secrets"
	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/system"
	"github.com/agorahub/lootbox-client/pkg/testutil"
)

func (e *testEnv) writeSecrets(t *testing.T) {
	raw := map[string]string{
		secrets.PayerKeyName: secrets.FormatKeypair(e.payer),
		secrets.AdminKeyName: secrets.FormatKeypair(e.admin),
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.secrets, b, 0o600))
}

func TestNewAdmin(t *testing.T) {
	env := setup(t)
	env.writeSecrets(t)

	oldAdmin := testutil.PublicKey(env.admin)
	env.sc.SetAccount(oldAdmin, solana.AccountInfo{Lamports: 10_000_000_000})
	reserve, err := env.sc.GetMinimumBalanceForRentExemption(2)
	require.NoError(t, err)

	result, err := env.service.NewAdmin(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, oldAdmin, result.OldAdmin)
	assert.EqualValues(t, 10_000_000_000-reserve, result.Lamports)

	loaded, err := secrets.Load(env.secrets)
	require.NoError(t, err)
	assert.Equal(t, result.NewAdmin, testutil.PublicKey(loaded.Admin))
	require.Contains(t, loaded.OldAdmins, result.OldKeyName)
	assert.Equal(t, env.admin, loaded.OldAdmins[result.OldKeyName])

	current, err := env.service.admin()
	require.NoError(t, err)
	assert.Equal(t, result.NewAdmin, current)

	submitted := env.sc.Submitted()
	require.Len(t, submitted, 1)
	create, err := system.DecompileCreateAccount(submitted[0].Message, 0)
	require.NoError(t, err)
	assert.Equal(t, oldAdmin, create.Funder)
	assert.Equal(t, result.NewAdmin, create.Address)
	assert.Equal(t, result.Lamports, create.Lamports)
	assert.EqualValues(t, 0, create.Size)
}

func TestNewAdmin_InsufficientFunds(t *testing.T) {
	env := setup(t)
	env.writeSecrets(t)

	before, err := os.ReadFile(env.secrets)
	require.NoError(t, err)

	_, err = env.service.NewAdmin(env.ctx)
	testutil.AssertErrorCause(t, err, ErrInsufficientFunds)

	env.sc.SetAccount(testutil.PublicKey(env.admin), solana.AccountInfo{Lamports: 1_000})
	_, err = env.service.NewAdmin(env.ctx)
	testutil.AssertErrorCause(t, err, ErrInsufficientFunds)

	after, err := os.ReadFile(env.secrets)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, env.sc.Submitted())
}

func TestNewKey(t *testing.T) {
	env := setup(t)

	result, err := env.service.NewKey(env.ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, result.Key, 64)
	assert.EqualValues(t, 1, result.Attempts)

	result, err = env.service.NewKey(env.ctx, "a", 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Address(), "a"))
	assert.NotZero(t, result.Attempts)
}

func TestNewKey_InvalidPrefix(t *testing.T) {
	env := setup(t)

	for _, prefix := range []string{"0", "O", "Il"} {
		_, err := env.service.NewKey(env.ctx, prefix, 1)
		testutil.AssertErrorCause(t, err, ErrInvalidPrefix)
	}
}

func TestNewKey_Cancelled(t *testing.T) {
	env := setup(t)

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()

	_, err := env.service.NewKey(ctx, "zzzzzzzzzz", 2)
	assert.Equal(t, context.Canceled, err)
}
