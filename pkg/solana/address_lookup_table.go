package solana

import (
	"bytes"
	"crypto/ed25519"
)

type AddressLookupTable struct {
	PublicKey ed25519.PublicKey
	Addresses []ed25519.PublicKey
}

type SortableAddressLookupTables []AddressLookupTable

func (s SortableAddressLookupTables) Len() int {
	return len(s)
}

func (s SortableAddressLookupTables) Less(i int, j int) bool {
	return bytes.Compare(s[i].PublicKey, s[j].PublicKey) < 0
}

func (s SortableAddressLookupTables) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// GetLookupTableCandidates returns the distinct accounts referenced by the
// instructions that a versioned transaction could load from a lookup table,
// in first-seen order. The payer, signers and invoked programs are excluded.
func GetLookupTableCandidates(payer ed25519.PublicKey, instructions []Instruction) []ed25519.PublicKey {
	var all []AccountMeta
	all = append(all, AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true})
	for _, i := range instructions {
		all = append(all, AccountMeta{PublicKey: i.Program, isProgram: true})
		all = append(all, i.Accounts...)
	}

	var candidates []ed25519.PublicKey
	for _, account := range filterUnique(all) {
		if !account.isLookupEligible() {
			continue
		}
		candidates = append(candidates, account.PublicKey)
	}
	return candidates
}
