package main

import (
	"crypto/ed25519"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
)

var errInvalidArgument = errors.New("invalid argument")

func parseUint(name, value string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(value, "_", ""), 10, bits)
	if err != nil {
		return 0, errors.Wrapf(errInvalidArgument, "%s %q", name, value)
	}
	return v, nil
}

func parseUint8(name, value string) (uint8, error) {
	v, err := parseUint(name, value, 8)
	return uint8(v), err
}

func parseUint32(name, value string) (uint32, error) {
	v, err := parseUint(name, value, 32)
	return uint32(v), err
}

func parseUint64(name, value string) (uint64, error) {
	return parseUint(name, value, 64)
}

func parseKey(name, value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(errInvalidArgument, "%s %q is not a base58 address", name, value)
	}
	return decoded, nil
}

// parseTokenAmount parses "<mint>=<amount>", the mint being a profile
// symbol or an address.
func parseTokenAmount(p *profile.Profile, value string) (ed25519.PublicKey, uint64, error) {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return nil, 0, errors.Wrapf(errInvalidArgument, "%q is not <mint>=<amount>", value)
	}

	mint, err := p.Mint(parts[0])
	if err != nil {
		return nil, 0, err
	}
	amount, err := parseUint64("amount", parts[1])
	if err != nil {
		return nil, 0, err
	}
	return mint, amount, nil
}
