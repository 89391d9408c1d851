package command

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/solana"
)

var ErrUndecodableTransaction = errors.New("transaction is neither base64 nor base58")

// UnpackedAccount is an account reference of an instruction. Key is nil for
// accounts loaded through a lookup table.
type UnpackedAccount struct {
	Index    byte
	Key      ed25519.PublicKey
	Writable bool
	Signer   bool
}

// UnpackedInstruction is a compiled instruction with its references
// resolved against the message.
type UnpackedInstruction struct {
	Program  ed25519.PublicKey
	Data     []byte
	Accounts []UnpackedAccount

	// Lootbox is set when the instruction targets the profile's program and
	// its data decodes. DecodeErr holds the reason it did not.
	Lootbox   lootbox.Record
	DecodeErr error
}

// UnpackedTransaction is a decoded wire transaction.
type UnpackedTransaction struct {
	Size         int
	Transaction  solana.Transaction
	Signers      []ed25519.PublicKey
	Instructions []UnpackedInstruction
}

// UnpackTx decodes a base64 or base58 encoded transaction and resolves its
// instructions. Instructions addressed to the profile's program are decoded
// as lootbox records.
func (s *Service) UnpackTx(encoded string) (*UnpackedTransaction, error) {
	return Unpack(encoded, s.profile.Program, s.profile.Revision)
}

// Unpack is UnpackTx for an explicit program and revision.
func Unpack(encoded string, program ed25519.PublicKey, rev lootbox.Revision) (*UnpackedTransaction, error) {
	txn, raw, err := decodeTransaction(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}

	m := txn.Message
	res := &UnpackedTransaction{
		Size:        len(raw),
		Transaction: txn,
	}
	for i := 0; i < int(m.Header.NumSignatures) && i < len(m.Accounts); i++ {
		res.Signers = append(res.Signers, m.Accounts[i])
	}

	for _, ci := range m.Instructions {
		ix := UnpackedInstruction{Data: ci.Data}
		if int(ci.ProgramIndex) < len(m.Accounts) {
			ix.Program = m.Accounts[ci.ProgramIndex]
		}
		for _, index := range ci.Accounts {
			ix.Accounts = append(ix.Accounts, resolveAccount(m, index))
		}

		if len(program) > 0 && bytes.Equal(ix.Program, program) {
			ix.Lootbox, ix.DecodeErr = lootbox.Decode(rev, ci.Data)
		}
		res.Instructions = append(res.Instructions, ix)
	}

	return res, nil
}

// decodeTransaction tries base64 first, then base58. The base58 alphabet is
// a subset of base64, so a string is only accepted once it unmarshals.
func decodeTransaction(encoded string) (solana.Transaction, []byte, error) {
	var candidates [][]byte
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		candidates = append(candidates, raw)
	}
	if raw, err := base58.Decode(encoded); err == nil && len(raw) > 0 {
		candidates = append(candidates, raw)
	}

	lastErr := ErrUndecodableTransaction
	for _, raw := range candidates {
		var txn solana.Transaction
		if err := txn.Unmarshal(raw); err != nil {
			lastErr = errors.Wrap(err, "failed to unmarshal transaction")
			continue
		}
		return txn, raw, nil
	}
	return solana.Transaction{}, nil, lastErr
}

func resolveAccount(m solana.Message, index byte) UnpackedAccount {
	a := UnpackedAccount{Index: index}

	numStatic := len(m.Accounts)
	if int(index) >= numStatic {
		var writable int
		for _, l := range m.AddressTableLookups {
			writable += len(l.WritableIndexes)
		}
		a.Writable = int(index)-numStatic < writable
		return a
	}

	a.Key = m.Accounts[index]
	numSigners := int(m.Header.NumSignatures)
	if int(index) < numSigners {
		a.Signer = true
		a.Writable = int(index) < numSigners-int(m.Header.NumReadonlySigned)
	} else {
		a.Writable = int(index) < numStatic-int(m.Header.NumReadOnly)
	}
	return a
}

// Flags renders the account's permissions as "ws", "w", "s" or "".
func (a UnpackedAccount) Flags() string {
	var flags string
	if a.Writable {
		flags += "w"
	}
	if a.Signer {
		flags += "s"
	}
	return flags
}
