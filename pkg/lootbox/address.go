package lootbox

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana"
)

var (
	vaultSeed       = []byte("vault")
	stateSeed       = []byte("state2")
	legacyStateSeed = []byte("state")
	ticketSeed      = []byte("ticket")
)

// MaxTicketsPerSeed bounds the tickets derivable from one issuance seed,
// since the slot index is a single byte.
const MaxTicketsPerSeed = 256

// GetVaultAddress derives {owner, "vault"}.
func GetVaultAddress(program, owner ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, owner, vaultSeed)
}

// GetStateAddress derives {owner, "state2", u16be(lootboxId)}.
func GetStateAddress(program, owner ed25519.PublicKey, lootboxId uint16) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, owner, stateSeed, u16be(lootboxId))
}

// GetLegacyStateAddress derives the single-lootbox state of single price
// deployments: {owner, "state2"}, or {owner, "state"} for the first
// deployment.
func GetLegacyStateAddress(program, owner ed25519.PublicKey, first bool) (ed25519.PublicKey, uint8, error) {
	if first {
		return solana.FindProgramAddressAndBump(program, owner, legacyStateSeed)
	}
	return solana.FindProgramAddressAndBump(program, owner, stateSeed)
}

// GetTicketAddress derives the ticket record of slot index within a batch
// issued under seed: {owner, u16be(lootboxId), u32be(seed), index}.
func GetTicketAddress(program, owner ed25519.PublicKey, lootboxId uint16, seed uint32, index uint8) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, owner, u16be(lootboxId), u32be(seed), []byte{index})
}

// GetTicketAddresses derives the first count ticket records of a batch.
func GetTicketAddresses(program, owner ed25519.PublicKey, lootboxId uint16, seed uint32, count int) ([]ed25519.PublicKey, []uint8, error) {
	if count <= 0 || count > MaxTicketsPerSeed {
		return nil, nil, errors.Wrapf(ErrInvalidParameter, "ticket count %d outside [1, %d]", count, MaxTicketsPerSeed)
	}

	addresses := make([]ed25519.PublicKey, count)
	bumps := make([]uint8, count)
	for i := 0; i < count; i++ {
		address, bump, err := GetTicketAddress(program, owner, lootboxId, seed, uint8(i))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to derive ticket %d", i)
		}
		addresses[i] = address
		bumps[i] = bump
	}
	return addresses, bumps, nil
}

// GetTicketMintAddress derives the NFT mint of an obtained ticket:
// {owner, "ticket", u32be(ticketId)}.
func GetTicketMintAddress(program, owner ed25519.PublicKey, ticketId uint32) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, owner, ticketSeed, u32be(ticketId))
}

func u16be(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32be(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
