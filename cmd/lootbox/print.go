package main

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"time"

	"github.com/mr-tron/base58"

	"github.com/agorahub/lootbox-client/pkg/lootbox/command"
	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
)

func mints(p *profile.Profile) []struct {
	name string
	key  ed25519.PublicKey
} {
	return []struct {
		name string
		key  ed25519.PublicKey
	}{
		{"usdc", p.Mints.Usdc},
		{"borg", p.Mints.Borg},
		{"xbg", p.Mints.Xbg},
		{"borgy", p.Mints.Borgy},
		{"gnet", p.Mints.Gnet},
	}
}

func mintName(p *profile.Profile, mint ed25519.PublicKey) string {
	for _, m := range mints(p) {
		if len(m.key) > 0 && m.key.Equal(mint) {
			return m.name
		}
	}
	return base58.Encode(mint)
}

// priceMintName names the mint a vault token account holds.
func priceMintName(p *profile.Profile, vault, ata ed25519.PublicKey) string {
	for _, m := range mints(p) {
		if len(m.key) == 0 {
			continue
		}
		expected, err := token.GetAssociatedAccount(vault, m.key)
		if err == nil && expected.Equal(ata) {
			return m.name
		}
	}
	return "ata " + base58.Encode(ata)
}

func formatTs(ts uint32) string {
	if ts == 0 {
		return "unset"
	}
	return fmt.Sprintf("%d (%s)", ts, time.Unix(int64(ts), 0).UTC().Format(time.RFC3339))
}

func printResult(w io.Writer, res *packer.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "Signature: %s\n", res.Signature)
	fmt.Fprintf(w, "Size: %d\n", res.Size)
	if res.Versioned() {
		fmt.Fprintf(w, "Lookup table: %s\n", base58.Encode(res.LookupTable))
	}
}

func printState(w io.Writer, p *profile.Profile, v *command.StateView) {
	s := v.State
	fmt.Fprintf(w, "State: %s\n", base58.Encode(v.Address))
	fmt.Fprintf(w, "Vault: %s\n", base58.Encode(v.Vault))
	fmt.Fprintf(w, "Version: %d\n", s.Version)
	fmt.Fprintf(w, "Lootbox id: %d\n", s.LootboxId)
	fmt.Fprintf(w, "Owner: %s\n", base58.Encode(s.Owner))
	fmt.Fprintf(w, "Name: %s\n", s.Name)
	fmt.Fprintf(w, "Base url: %s\n", s.BaseUrl)
	fmt.Fprintf(w, "Signer: %s\n", s.Signer)
	fmt.Fprintf(w, "Supply: %d / %d (%d available)\n", s.TotalSupply, s.MaxSupply, s.Available())
	fmt.Fprintf(w, "Withdraw counter: %d\n", s.WithdrawCounter)
	fmt.Fprintf(w, "Begin: %s\n", formatTs(s.BeginTs))
	fmt.Fprintf(w, "End: %s\n", formatTs(s.EndTs))
	for _, price := range s.Prices {
		fmt.Fprintf(w, "Price: %d %s\n", price.Amount, priceMintName(p, v.Vault, price.Ata))
	}
}
