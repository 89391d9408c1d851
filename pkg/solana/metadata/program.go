// Package metadata derives the accounts of the Metaplex token metadata
// program that NFT minting and burning instructions reference.
package metadata

import (
	"crypto/ed25519"

	"github.com/agorahub/lootbox-client/pkg/solana"
)

// ProgramKey is the address of the token metadata program.
//
// Current key: metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s
var ProgramKey = ed25519.PublicKey{11, 112, 101, 177, 227, 209, 124, 69, 56, 157, 82, 127, 107, 4, 195, 205, 88, 184, 108, 115, 26, 160, 253, 181, 73, 182, 209, 188, 3, 248, 41, 70}

var (
	metadataPrefix = []byte("metadata")
	editionSuffix  = []byte("edition")
)

// GetMetadataAddress returns the metadata account of a mint.
func GetMetadataAddress(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(
		ProgramKey,
		metadataPrefix,
		ProgramKey,
		mint,
	)
}

// GetMasterEditionAddress returns the master edition account of a mint.
func GetMasterEditionAddress(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(
		ProgramKey,
		metadataPrefix,
		ProgramKey,
		mint,
		editionSuffix,
	)
}
