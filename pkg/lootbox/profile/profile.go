package profile

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/config/env"
	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/solana"
)

const (
	Mainnet   = "mainnet"
	Devnet    = "devnet"
	DevnetOld = "devnet-old"

	EnvName = "PROFILE"
)

var (
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownMint    = errors.New("unknown mint")
)

// Mints are the token mints a deployment prices tickets and pays rewards in.
// Gnet is nil where the token is not deployed.
type Mints struct {
	Usdc  ed25519.PublicKey
	Borg  ed25519.PublicKey
	Xbg   ed25519.PublicKey
	Borgy ed25519.PublicKey
	Gnet  ed25519.PublicKey
}

// Profile is the network configuration of one lootbox deployment.
type Profile struct {
	Name      string
	Program   ed25519.PublicKey
	Revision  lootbox.Revision
	LootboxId uint16
	Mints     Mints

	// Signer is the backend key withdrawals and ticket claims are signed
	// with. Zero when not yet provisioned.
	Signer lootbox.SignerKey

	// EndpointTemplate is the RPC endpoint with a %s verb for the QuickNode key.
	EndpointTemplate string

	// Cluster is the public endpoint used without a QuickNode key.
	Cluster solana.Cluster
}

var devnetMints = Mints{
	Usdc:  mustKey("Bf8SC6jEMH2sZ5wTK8nKrc9MeKUDwjNNGfC1fFFKEckF"),
	Borg:  mustKey("CVGgUEBWVbKNipC7o37txsDeAyuqG1CMJYiEouReYPg3"),
	Xbg:   mustKey("G3bE5wX4fH2sFpjUbECxe62qMEK1V7kY6Ab9m2CG3mij"),
	Borgy: mustKey("A3CmjFeRJ3864nJWcvy8J22vdUSLx3zRLifvCpqATLFz"),
	Gnet:  mustKey("3S3XeNPwrETmAQD2kpkrGwxRqwAn7jLidzdRXX1aCepg"),
}

var devnetSigner = mustSigner("033e2222644f8d418e9b51622ba74eb23313c7cabbba68d45d767ae321bd34b5eb")

var profiles = map[string]Profile{
	Mainnet: {
		Name:      Mainnet,
		Program:   mustKey("9eMe9ZfiBf8mtcB6RqP45xR4HRoYBRmfcR98EuxXba3X"),
		Revision:  lootbox.RevisionPriceTable,
		LootboxId: 1,
		Mints: Mints{
			Usdc:  mustKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			Borg:  mustKey("3dQTr7ror2QPKQ3GbBCokJUmjErGg8kTJzdnYjNfvi3Z"),
			Xbg:   mustKey("XBGdqJ9P175hCC1LangCEyXWNeCPHaKWA17tymz2PrY"),
			Borgy: mustKey("BorGY4ub2Fz4RLboGxnuxWdZts7EKhUTB624AFmfCgX"),
		},
		EndpointTemplate: "https://side-special-sunset.solana-mainnet.quiknode.pro/%s",
		Cluster:          solana.ClusterMainnet,
	},
	DevnetOld: {
		Name:             DevnetOld,
		Program:          mustKey("HDcKzEZqr13G1rbC24pCN1CKSxKjf7JknC5a8ytX5hoN"),
		Revision:         lootbox.RevisionPriceTable,
		LootboxId:        4,
		Mints:            devnetMints,
		Signer:           devnetSigner,
		EndpointTemplate: "https://side-special-sunset.solana-devnet.quiknode.pro/%s",
		Cluster:          solana.ClusterDevnet,
	},
	Devnet: {
		Name:             Devnet,
		Program:          mustKey("AGLuuavR5JWtEgvjLUZiw6XswhjVm79HX59aGNipa8Fb"),
		Revision:         lootbox.RevisionPriceTable,
		LootboxId:        6,
		Mints:            devnetMints,
		Signer:           devnetSigner,
		EndpointTemplate: "https://side-special-sunset.solana-devnet.quiknode.pro/%s",
		Cluster:          solana.ClusterDevnet,
	},
}

// Resolve maps a profile selector to a profile name. An empty selector is
// devnet, devnet-old must match exactly, otherwise the first letter decides.
func Resolve(selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	switch {
	case selector == "":
		return Devnet, nil
	case strings.EqualFold(selector, DevnetOld):
		return DevnetOld, nil
	case selector[0] == 'd' || selector[0] == 'D':
		return Devnet, nil
	case selector[0] == 'm' || selector[0] == 'M':
		return Mainnet, nil
	}
	return "", errors.Wrap(ErrUnknownProfile, selector)
}

// Get returns the profile for selector.
func Get(selector string) (*Profile, error) {
	name, err := Resolve(selector)
	if err != nil {
		return nil, err
	}
	p := profiles[name]
	return &p, nil
}

// FromEnv returns the profile selected by the PROFILE environment variable.
func FromEnv(ctx context.Context) (*Profile, error) {
	return Get(env.NewStringConfig(EnvName, "").Get(ctx))
}

// Names lists every known profile.
func Names() []string {
	return []string{Mainnet, Devnet, DevnetOld}
}

// Endpoint returns the RPC endpoint with the QuickNode key filled in, or the
// public cluster endpoint when there is no key.
func (p *Profile) Endpoint(quickNodeKey string) string {
	if quickNodeKey == "" {
		return string(p.Cluster)
	}
	return fmt.Sprintf(p.EndpointTemplate, quickNodeKey)
}

// Deployment returns the lootbox deployment administered by admin.
func (p *Profile) Deployment(admin ed25519.PublicKey) lootbox.Deployment {
	return lootbox.Deployment{
		Program:   p.Program,
		Revision:  p.Revision,
		Admin:     admin,
		LootboxId: p.LootboxId,
	}
}

// Mint resolves a mint by symbol (usdc, borg, xbg, borgy, gnet) or as a
// base58 address.
func (p *Profile) Mint(nameOrAddress string) (ed25519.PublicKey, error) {
	var mint ed25519.PublicKey
	switch strings.ToLower(nameOrAddress) {
	case "usdc":
		mint = p.Mints.Usdc
	case "borg":
		mint = p.Mints.Borg
	case "xbg":
		mint = p.Mints.Xbg
	case "borgy":
		mint = p.Mints.Borgy
	case "gnet":
		mint = p.Mints.Gnet
	default:
		decoded, err := base58.Decode(nameOrAddress)
		if err != nil || len(decoded) != ed25519.PublicKeySize {
			return nil, errors.Wrap(ErrUnknownMint, nameOrAddress)
		}
		return decoded, nil
	}

	if len(mint) == 0 {
		return nil, errors.Wrapf(ErrUnknownMint, "%s is not deployed on %s", nameOrAddress, p.Name)
	}
	return mint, nil
}

func mustKey(address string) ed25519.PublicKey {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		panic(fmt.Sprintf("invalid address %q", address))
	}
	return decoded
}

func mustSigner(hex string) lootbox.SignerKey {
	key, err := lootbox.ParseSignerKey(hex)
	if err != nil {
		panic(err)
	}
	return key
}
