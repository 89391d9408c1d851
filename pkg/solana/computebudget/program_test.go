package compute_budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/testutil"
)

func TestSetComputeUnitLimit(t *testing.T) {
	ix := SetComputeUnitLimit(300_000)
	assert.Equal(t, ProgramKey, ix.Program)
	assert.Empty(t, ix.Accounts)
	assert.Equal(t, []byte{2, 0xe0, 0x93, 0x04, 0x00}, ix.Data)

	units, err := DecodeSetComputeUnitLimit(ix)
	require.NoError(t, err)
	assert.EqualValues(t, 300_000, units)
}

func TestDecodeSetComputeUnitLimit_Invalid(t *testing.T) {
	other := testutil.GenerateSolanaKeys(t, 1)[0]

	for _, ix := range []solana.Instruction{
		solana.NewInstruction(other, SetComputeUnitLimit(1).Data),
		solana.NewInstruction(ProgramKey, []byte{3, 1, 0, 0, 0, 0, 0, 0, 0}),
		solana.NewInstruction(ProgramKey, []byte{2, 1}),
	} {
		_, err := DecodeSetComputeUnitLimit(ix)
		testutil.AssertErrorCause(t, err, ErrInvalidInstruction)
	}
}
