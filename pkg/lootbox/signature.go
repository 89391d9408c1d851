package lootbox

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	signatureHexLength = 2 + 2*65

	// legacyRecoveryOffset is subtracted from recovery ids in the {27, 28}
	// convention.
	legacyRecoveryOffset = 27
)

// ParseSignature parses a 0x prefixed hex string holding the recovery id
// followed by r and s.
func ParseSignature(s string) (Signature, error) {
	var sig Signature

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return sig, errors.Wrap(ErrInvalidSignatureFormat, "missing 0x prefix")
	}
	if len(s) != signatureHexLength {
		return sig, errors.Wrapf(ErrInvalidSignatureFormat, "expected %d characters, got %d", signatureHexLength, len(s))
	}

	raw, err := hexutil.Decode(s)
	if err != nil {
		return sig, errors.Wrap(ErrInvalidSignatureFormat, err.Error())
	}

	sig.RecoveryId = raw[0]
	if sig.RecoveryId >= legacyRecoveryOffset {
		sig.RecoveryId -= legacyRecoveryOffset
	}
	if sig.RecoveryId > 3 {
		return Signature{}, errors.Wrapf(ErrInvalidSignatureFormat, "recovery id %d", raw[0])
	}
	copy(sig.RS[:], raw[1:])
	return sig, nil
}

// String formats the signature the way ParseSignature accepts it.
func (s Signature) String() string {
	raw := make([]byte, 0, 65)
	raw = append(raw, s.RecoveryId)
	raw = append(raw, s.RS[:]...)
	return hexutil.Encode(raw)
}

// SignerKey is the compressed secp256k1 public key the program verifies
// backend signatures against.
type SignerKey [33]byte

// ParseSignerKey parses a hex encoded compressed key, with or without a 0x
// prefix, and checks that it is a point on the curve.
func ParseSignerKey(s string) (SignerKey, error) {
	var key SignerKey

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return key, errors.Wrap(ErrInvalidSignerKey, err.Error())
	}
	if len(raw) != len(key) {
		return key, errors.Wrapf(ErrInvalidSignerKey, "expected %d bytes, got %d", len(key), len(raw))
	}

	copy(key[:], raw)
	if err := key.Validate(); err != nil {
		return SignerKey{}, err
	}
	return key, nil
}

// Validate checks that k decompresses to a secp256k1 point.
func (k SignerKey) Validate() error {
	if _, err := crypto.DecompressPubkey(k[:]); err != nil {
		return errors.Wrap(ErrInvalidSignerKey, err.Error())
	}
	return nil
}

// IsZero reports whether k is unset.
func (k SignerKey) IsZero() bool {
	return k == SignerKey{}
}

func (k SignerKey) String() string {
	return hexutil.Encode(k[:])
}
