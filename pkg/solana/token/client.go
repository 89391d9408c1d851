package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana"
)

var (
	// ErrAccountNotFound indicates there is no account for the given address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTokenAccount indicates that a Solana account exists at the
	// given address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")
	// ErrInvalidMint indicates the address does not hold an initialized mint.
	ErrInvalidMint = errors.New("invalid mint")
)

// Client provides utilities for accessing token accounts for a given token.
type Client struct {
	sc    solana.Client
	token ed25519.PublicKey
}

// NewClient creates a new Client.
func NewClient(sc solana.Client, token ed25519.PublicKey) *Client {
	return &Client{
		sc:    sc,
		token: token,
	}
}

func (c *Client) Token() ed25519.PublicKey {
	return c.token
}

// GetAccount returns the token account info for the specified account.
//
// If the account is not initialized, or belongs to a different
// mint, then ErrInvalidTokenAccount is returned.
func (c *Client) GetAccount(accountID ed25519.PublicKey, commitment solana.Commitment) (*Account, error) {
	accountInfo, err := c.get(accountID, commitment)
	if err != nil {
		return nil, err
	}

	var account Account
	if !account.Unmarshal(accountInfo.Data) {
		return nil, ErrInvalidTokenAccount
	}

	if !bytes.Equal(c.token, account.Mint) {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetMint returns the mint state of the client's token.
func (c *Client) GetMint(commitment solana.Commitment) (*Mint, error) {
	accountInfo, err := c.get(c.token, commitment)
	if err == ErrInvalidTokenAccount {
		return nil, ErrInvalidMint
	} else if err != nil {
		return nil, err
	}

	var mint Mint
	if !mint.Unmarshal(accountInfo.Data) || !mint.IsInitialized {
		return nil, ErrInvalidMint
	}
	return &mint, nil
}

// AssociatedAccountExists reports whether the associated account of wallet
// for the client's token is initialized.
func (c *Client) AssociatedAccountExists(wallet ed25519.PublicKey, commitment solana.Commitment) (ed25519.PublicKey, bool, error) {
	ata, err := GetAssociatedAccount(wallet, c.token)
	if err != nil {
		return nil, false, err
	}

	_, err = c.GetAccount(ata, commitment)
	switch err {
	case nil:
		return ata, true, nil
	case ErrAccountNotFound:
		return ata, false, nil
	default:
		return ata, false, err
	}
}

func (c *Client) get(address ed25519.PublicKey, commitment solana.Commitment) (solana.AccountInfo, error) {
	accountInfo, err := c.sc.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return accountInfo, ErrAccountNotFound
	} else if err != nil {
		return accountInfo, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, ProgramKey) {
		return accountInfo, ErrInvalidTokenAccount
	}
	return accountInfo, nil
}
