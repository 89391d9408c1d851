package command

import (
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/system"
	"github.com/agorahub/lootbox-client/pkg/testutil"
)

func TestUnpack(t *testing.T) {
	env := setup(t)
	payer := testutil.PublicKey(env.payer)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	migrate, err := lootbox.NewMigrateInstruction(env.deployment())
	require.NoError(t, err)

	txn := solana.NewTransaction(payer, system.Transfer(payer, receiver, 5), migrate)
	require.NoError(t, txn.Sign(env.payer, env.admin))
	raw := txn.Marshal()

	for _, encoded := range []string{
		base64.StdEncoding.EncodeToString(raw),
		base58.Encode(raw),
		"  " + base64.StdEncoding.EncodeToString(raw) + "\n",
	} {
		unpacked, err := env.service.UnpackTx(encoded)
		require.NoError(t, err)

		assert.Equal(t, len(raw), unpacked.Size)
		assert.Equal(t, txn.Signatures, unpacked.Transaction.Signatures)
		require.Len(t, unpacked.Signers, 2)
		assert.Equal(t, payer, unpacked.Signers[0])
		assert.Equal(t, testutil.PublicKey(env.admin), unpacked.Signers[1])

		require.Len(t, unpacked.Instructions, 2)

		transfer := unpacked.Instructions[0]
		assert.Equal(t, system.ProgramKey[:], []byte(transfer.Program))
		assert.Nil(t, transfer.Lootbox)
		require.Len(t, transfer.Accounts, 2)
		assert.Equal(t, payer, transfer.Accounts[0].Key)
		assert.Equal(t, "ws", transfer.Accounts[0].Flags())
		assert.Equal(t, receiver, transfer.Accounts[1].Key)
		assert.Equal(t, "w", transfer.Accounts[1].Flags())

		decoded := unpacked.Instructions[1]
		assert.Equal(t, env.profile.Program, decoded.Program)
		require.NoError(t, decoded.DecodeErr)
		_, ok := decoded.Lootbox.(*lootbox.Migrate)
		assert.True(t, ok)
		require.Len(t, decoded.Accounts, 2)
		assert.Equal(t, "ws", decoded.Accounts[0].Flags())
		assert.Equal(t, "w", decoded.Accounts[1].Flags())
	}
}

func TestUnpack_Versioned(t *testing.T) {
	env := setup(t)
	payer := testutil.PublicKey(env.payer)
	keys := testutil.GenerateSolanaKeys(t, 3)
	table := testutil.GenerateSolanaKeys(t, 1)[0]

	ix := solana.NewInstruction(
		env.profile.Program,
		[]byte{0xfe},
		solana.NewAccountMeta(keys[0], false),
		solana.NewReadonlyAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(keys[2], false),
	)
	txn := solana.NewVersionedTransaction(payer, []solana.AddressLookupTable{{
		PublicKey: table,
		Addresses: keys,
	}}, []solana.Instruction{ix})
	require.NoError(t, txn.Sign(env.payer))

	unpacked, err := Unpack(base64.StdEncoding.EncodeToString(txn.Marshal()), env.profile.Program, lootbox.RevisionPriceTable)
	require.NoError(t, err)
	assert.Equal(t, solana.MessageVersion0, unpacked.Transaction.Message.Version())

	require.Len(t, unpacked.Instructions, 1)
	decoded := unpacked.Instructions[0]
	assert.Error(t, decoded.DecodeErr)
	require.Len(t, decoded.Accounts, 3)
	for _, a := range decoded.Accounts {
		assert.Nil(t, a.Key)
	}
	assert.Equal(t, "w", decoded.Accounts[0].Flags())
	assert.Equal(t, "", decoded.Accounts[1].Flags())
}

func TestUnpack_Invalid(t *testing.T) {
	for _, encoded := range []string{"", "!!!", "0OIl", base64.StdEncoding.EncodeToString([]byte{1, 2, 3})} {
		_, err := Unpack(encoded, nil, lootbox.RevisionPriceTable)
		assert.Error(t, err, encoded)
	}
}
