package address_lookup_table

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/testutil"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "AddressLookupTab1e1111111111111111111111111", base58.Encode(ProgramKey))
}

func TestGetAddress(t *testing.T) {
	authority := testutil.GenerateSolanaKeys(t, 1)[0]

	a, bump, err := GetAddress(authority, 100)
	require.NoError(t, err)

	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], 100)
	direct, err := solana.CreateProgramAddress(ProgramKey, authority, slot[:], []byte{bump})
	require.NoError(t, err)
	assert.EqualValues(t, direct, a)

	b, _, err := GetAddress(authority, 101)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestInstructions(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 4)
	alt, authority, payer, other := keys[0], keys[1], keys[2], keys[3]

	create := Create(alt, authority, payer, 0x0102, 254)
	assert.Equal(t, []byte{0, 0, 0, 0, 2, 1, 0, 0, 0, 0, 0, 0, 254}, create.Data)
	require.Len(t, create.Accounts, 4)
	assert.True(t, create.Accounts[0].IsWritable)
	assert.True(t, create.Accounts[1].IsSigner)
	assert.False(t, create.Accounts[1].IsWritable)

	extend := Extend(alt, authority, payer, other, alt)
	assert.Len(t, extend.Data, 4+8+64)
	assert.EqualValues(t, 2, extend.Data[0])
	assert.EqualValues(t, 2, binary.LittleEndian.Uint64(extend.Data[4:]))
	assert.Equal(t, []byte(other), extend.Data[12:44])

	deactivate := Deactivate(alt, authority)
	assert.Equal(t, []byte{3, 0, 0, 0}, deactivate.Data)
	require.Len(t, deactivate.Accounts, 2)
	assert.Equal(t, alt, deactivate.Accounts[0].PublicKey)
	assert.True(t, deactivate.Accounts[0].IsWritable)
	assert.True(t, deactivate.Accounts[1].IsSigner)

	closeIxn := Close(alt, authority, other)
	assert.Equal(t, []byte{4, 0, 0, 0}, closeIxn.Data)
	require.Len(t, closeIxn.Accounts, 3)
	assert.Equal(t, other, closeIxn.Accounts[2].PublicKey)
	assert.True(t, closeIxn.Accounts[2].IsWritable)
}

func TestAccount_RoundTrip(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)

	expected := Account{
		DeactivationSlot:           math.MaxUint64,
		LastExtendedSlot:           42,
		LastExtendedSlotStartIndex: 1,
		Authority:                  keys[0],
		Addresses:                  []ed25519.PublicKey{keys[1], keys[2]},
	}

	data := expected.Marshal()
	require.Len(t, data, MetadataSize+64)
	assert.Equal(t, []byte(keys[0]), data[AuthorityOffset:AuthorityOffset+32])

	var actual Account
	require.NoError(t, actual.Unmarshal(data))
	assert.Equal(t, expected, actual)
	assert.True(t, actual.IsActive())
	assert.False(t, actual.IsClosable(math.MaxUint64))

	frozen := Account{DeactivationSlot: 10}
	require.NoError(t, actual.Unmarshal(frozen.Marshal()))
	assert.Nil(t, actual.Authority)
	assert.Empty(t, actual.Addresses)
}

func TestAccount_IsClosable(t *testing.T) {
	a := Account{DeactivationSlot: 1000}
	assert.False(t, a.IsActive())
	assert.False(t, a.IsClosable(1000))
	assert.False(t, a.IsClosable(1000+DeactivationCooldown))
	assert.True(t, a.IsClosable(1000+DeactivationCooldown+1))
}

func TestAccount_Invalid(t *testing.T) {
	var a Account
	assert.Equal(t, ErrInvalidAccountSize, a.Unmarshal(make([]byte, MetadataSize-1)))

	valid := (&Account{DeactivationSlot: math.MaxUint64}).Marshal()
	assert.Equal(t, ErrInvalidAccountSize, a.Unmarshal(append(valid, 1, 2, 3)))

	valid[0] = 2
	assert.Equal(t, ErrInvalidAccountType, a.Unmarshal(valid))
}
