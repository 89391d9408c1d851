// Package solanatest provides an in memory solana.Client for tests.
package solanatest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
)

var _ solana.Client = (*Client)(nil)

// SubmitHook is invoked for every submitted transaction before it is
// recorded. A non-nil error is returned to the submitter and the transaction
// is dropped.
type SubmitHook func(txn solana.Transaction) error

// Client is a solana.Client backed by maps. Submitted transactions are
// recorded and immediately finalized. It does not execute instructions.
type Client struct {
	sync.Mutex

	slot      uint64
	blockhash uint64

	accounts    map[string]solana.AccountInfo
	submitted   []solana.Transaction
	statuses    map[solana.Signature]*solana.SignatureStatus
	logs        map[solana.Signature][]string
	onSubmit    SubmitHook
	blockhashes []solana.Blockhash
}

// NewClient returns an empty client starting at slot 1000.
func NewClient() *Client {
	return &Client{
		slot:     1000,
		accounts: make(map[string]solana.AccountInfo),
		statuses: make(map[solana.Signature]*solana.SignatureStatus),
		logs:     make(map[solana.Signature][]string),
	}
}

// SetAccount stores or replaces the account at address.
func (c *Client) SetAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	c.Lock()
	defer c.Unlock()
	c.accounts[string(address)] = info
}

// DeleteAccount removes the account at address.
func (c *Client) DeleteAccount(address ed25519.PublicKey) {
	c.Lock()
	defer c.Unlock()
	delete(c.accounts, string(address))
}

// SetTokenAccount stores an initialized token account.
func (c *Client) SetTokenAccount(address, mint, owner ed25519.PublicKey, amount uint64) {
	account := token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}
	c.SetAccount(address, solana.AccountInfo{
		Data:     account.Marshal(),
		Owner:    token.ProgramKey,
		Lamports: 2_039_280,
	})
}

// SetSlot sets the current slot.
func (c *Client) SetSlot(slot uint64) {
	c.Lock()
	defer c.Unlock()
	c.slot = slot
}

// OnSubmit installs a hook run against every submitted transaction.
func (c *Client) OnSubmit(hook SubmitHook) {
	c.Lock()
	defer c.Unlock()
	c.onSubmit = hook
}

// FailSignature marks a recorded signature as failed on chain with logs.
func (c *Client) FailSignature(sig solana.Signature, txErr *solana.TransactionError, logs []string) {
	c.Lock()
	defer c.Unlock()
	c.statuses[sig] = &solana.SignatureStatus{
		Slot:               c.slot,
		ErrorResult:        txErr,
		ConfirmationStatus: "finalized",
	}
	c.logs[sig] = logs
}

// Submitted returns the transactions accepted so far, in order.
func (c *Client) Submitted() []solana.Transaction {
	c.Lock()
	defer c.Unlock()
	return append([]solana.Transaction(nil), c.submitted...)
}

// Blockhashes returns every blockhash handed out, in order.
func (c *Client) Blockhashes() []solana.Blockhash {
	c.Lock()
	defer c.Unlock()
	return append([]solana.Blockhash(nil), c.blockhashes...)
}

func (c *Client) GetAccountInfo(address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.Lock()
	defer c.Unlock()

	info, ok := c.accounts[string(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	info.Data = append([]byte(nil), info.Data...)
	return info, nil
}

func (c *Client) GetBalance(address ed25519.PublicKey) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	info, ok := c.accounts[string(address)]
	if !ok {
		return 0, solana.ErrNoBalance
	}
	return info.Lamports, nil
}

func (c *Client) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	// 128 bytes of account overhead at 6960 lamports per byte.
	return (size + 128) * 6960, nil
}

func (c *Client) GetLatestBlockhash() (solana.Blockhash, error) {
	c.Lock()
	defer c.Unlock()

	c.blockhash++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], c.blockhash)
	hash := solana.Blockhash(sha256.Sum256(seed[:]))
	c.blockhashes = append(c.blockhashes, hash)
	return hash, nil
}

func (c *Client) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses([]solana.Signature{sig})
	if err != nil {
		return nil, err
	}
	if statuses[0] == nil {
		return nil, solana.ErrSignatureNotFound
	}
	return statuses[0], nil
}

func (c *Client) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.Lock()
	defer c.Unlock()

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if s, ok := c.statuses[sig]; ok {
			copied := *s
			statuses[i] = &copied
		}
	}
	return statuses, nil
}

func (c *Client) GetSlot(_ solana.Commitment) (uint64, error) {
	c.Lock()
	defer c.Unlock()
	return c.slot, nil
}

func (c *Client) GetTokenAccountBalance(address ed25519.PublicKey) (uint64, uint64, error) {
	c.Lock()
	defer c.Unlock()

	info, ok := c.accounts[string(address)]
	if !ok {
		return 0, 0, solana.ErrNoBalance
	}

	var account token.Account
	if !bytes.Equal(info.Owner, token.ProgramKey) || !account.Unmarshal(info.Data) {
		return 0, 0, errors.Errorf("%s is not a token account", base58.Encode(address))
	}

	var decimals uint64
	if mintInfo, ok := c.accounts[string(account.Mint)]; ok {
		var mint token.Mint
		if mint.Unmarshal(mintInfo.Data) {
			decimals = uint64(mint.Decimals)
		}
	}
	return account.Amount, decimals, nil
}

func (c *Client) GetTransaction(sig solana.Signature, _ solana.Commitment) (solana.ConfirmedTransaction, error) {
	c.Lock()
	defer c.Unlock()

	status, ok := c.statuses[sig]
	if !ok {
		return solana.ConfirmedTransaction{}, solana.ErrSignatureNotFound
	}

	confirmed := solana.ConfirmedTransaction{
		Slot: status.Slot,
		Err:  status.ErrorResult,
		Meta: &solana.TransactionMeta{LogMessages: c.logs[sig]},
	}
	for _, txn := range c.submitted {
		if txn.Signatures[0] == sig {
			confirmed.Transaction = txn
			break
		}
	}
	return confirmed, nil
}

func (c *Client) GetFilteredProgramAccounts(program ed25519.PublicKey, offset uint, filterValue []byte) ([]solana.ProgramAccount, error) {
	c.Lock()
	defer c.Unlock()

	var res []solana.ProgramAccount
	for address, info := range c.accounts {
		if !bytes.Equal(info.Owner, program) {
			continue
		}
		if uint(len(info.Data)) < offset+uint(len(filterValue)) {
			continue
		}
		if !bytes.Equal(info.Data[offset:offset+uint(len(filterValue))], filterValue) {
			continue
		}
		res = append(res, solana.ProgramAccount{
			PublicKey: ed25519.PublicKey(address),
			Account:   info,
		})
	}
	return res, nil
}

func (c *Client) RequestAirdrop(address ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	info := c.accounts[string(address)]
	info.Lamports += lamports
	c.accounts[string(address)] = info

	var sig solana.Signature
	copy(sig[:], address)
	c.statuses[sig] = &solana.SignatureStatus{Slot: c.slot, ConfirmationStatus: "finalized"}
	return sig, nil
}

// SubmitTransaction enforces the packet size limit and full signing, then
// records the transaction as finalized.
func (c *Client) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	var sig solana.Signature
	if len(txn.Signatures) > 0 {
		sig = txn.Signatures[0]
	}

	if !txn.IsFullySigned() {
		return sig, errors.New("transaction is not fully signed")
	}
	if size := len(txn.Marshal()); size > solana.MaxTransactionSize {
		return sig, errors.Errorf("transaction too large: %d bytes (max: %d)", size, solana.MaxTransactionSize)
	}

	c.Lock()
	hook := c.onSubmit
	c.Unlock()

	if hook != nil {
		if err := hook(txn); err != nil {
			return sig, err
		}
	}

	c.Lock()
	defer c.Unlock()

	c.slot++
	c.submitted = append(c.submitted, txn)
	if _, ok := c.statuses[sig]; !ok {
		c.statuses[sig] = &solana.SignatureStatus{Slot: c.slot, ConfirmationStatus: "finalized"}
	}
	return sig, nil
}
