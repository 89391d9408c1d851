package lootbox

import (
	"crypto/ed25519"

	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
)

// Deployment identifies one lootbox of a deployed program: the program, its
// ABI revision, the admin owning the vault and state, and the lootbox id.
type Deployment struct {
	Program   ed25519.PublicKey
	Revision  Revision
	Admin     ed25519.PublicKey
	LootboxId uint16
}

// Vault returns the vault PDA of the deployment admin.
func (d Deployment) Vault() (ed25519.PublicKey, uint8, error) {
	return GetVaultAddress(d.Program, d.Admin)
}

// State returns the state PDA. Single price deployments keep one state per
// admin, not per lootbox id.
func (d Deployment) State() (ed25519.PublicKey, uint8, error) {
	if d.Revision == RevisionSinglePrice {
		return GetLegacyStateAddress(d.Program, d.Admin, false)
	}
	return GetStateAddress(d.Program, d.Admin, d.LootboxId)
}

// VaultTokenAccount returns the vault's associated account for mint, which
// is where payments in mint are collected and rewards paid from.
func (d Deployment) VaultTokenAccount(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	vault, _, err := d.Vault()
	if err != nil {
		return nil, err
	}
	return token.GetAssociatedAccount(vault, mint)
}

// FetchState loads and decodes the deployment's state account.
func (d Deployment) FetchState(sc solana.Client, commitment solana.Commitment) (*State, error) {
	address, _, err := d.State()
	if err != nil {
		return nil, err
	}
	return FetchState(sc, address, commitment)
}

// FetchState loads and decodes the state account at address.
func FetchState(sc solana.Client, address ed25519.PublicKey, commitment solana.Commitment) (*State, error) {
	info, err := sc.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	return LoadState(info.Data)
}

// FetchTicket loads and decodes the ticket record at address.
func FetchTicket(sc solana.Client, address ed25519.PublicKey, commitment solana.Commitment) (*Ticket, error) {
	info, err := sc.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	return LoadTicket(info.Data)
}
