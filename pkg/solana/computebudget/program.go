package compute_budget

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana"
)

// ComputeBudget111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

const commandSetComputeUnitLimit uint8 = 2

var ErrInvalidInstruction = errors.New("invalid compute budget instruction")

// SetComputeUnitLimit raises the compute units the transaction may consume.
func SetComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = commandSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)

	return solana.NewInstruction(ProgramKey, data)
}

// DecodeSetComputeUnitLimit returns the unit limit requested by ix.
func DecodeSetComputeUnitLimit(ix solana.Instruction) (uint32, error) {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return 0, errors.Wrap(ErrInvalidInstruction, "wrong program")
	}
	if len(ix.Data) != 5 || ix.Data[0] != commandSetComputeUnitLimit {
		return 0, errors.Wrap(ErrInvalidInstruction, "not a unit limit request")
	}
	return binary.LittleEndian.Uint32(ix.Data[1:]), nil
}
