package secrets

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/agorahub/lootbox-client/pkg/osutil"
)

const (
	DefaultPath = ".secrets.json"

	PayerKeyName     = "payer_key"
	AdminKeyName     = "admin_key"
	OldAdminKeyName  = "old_admin_key"
	QuickNodeKeyName = "quick_node_key"

	oldAdminPrefix = "old_admin_"
	oldAdminSuffix = "_key"

	filePerm = 0o600
)

var (
	ErrMissingKey     = errors.New("secret not present")
	ErrBackupMismatch = errors.New("backup secrets file does not match the current one")
	ErrRotationFailed = errors.New("secrets rotation produced an unexpected file")
)

// Secrets is the decoded content of a secrets file. Keypairs are stored as
// comma separated lists of the 64 private key bytes.
type Secrets struct {
	Payer        ed25519.PrivateKey
	Admin        ed25519.PrivateKey
	OldAdmins    map[string]ed25519.PrivateKey
	QuickNodeKey string

	path string
	raw  map[string]string
}

// Load reads the secrets file at path. The payer and admin keypairs are
// required.
func Load(path string) (*Secrets, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}

	s := &Secrets{
		OldAdmins:    make(map[string]ed25519.PrivateKey),
		QuickNodeKey: raw[QuickNodeKeyName],
		path:         path,
		raw:          raw,
	}

	if s.Payer, err = s.keypair(PayerKeyName); err != nil {
		return nil, err
	}
	if s.Admin, err = s.keypair(AdminKeyName); err != nil {
		return nil, err
	}

	for name := range raw {
		if name != OldAdminKeyName && !isOldAdminKey(name) {
			continue
		}
		if s.OldAdmins[name], err = s.keypair(name); err != nil {
			return nil, err
		}
	}

	log := logrus.StandardLogger().WithField("type", "lootbox/secrets")
	log.WithFields(logrus.Fields{
		"payer": base58.Encode(s.Payer.Public().(ed25519.PublicKey)),
		"admin": base58.Encode(s.Admin.Public().(ed25519.PublicKey)),
	}).Debug("secrets loaded")

	return s, nil
}

// Path returns the file the secrets were loaded from.
func (s *Secrets) Path() string {
	return s.path
}

// Count returns the number of entries in the secrets file.
func (s *Secrets) Count() int {
	return len(s.raw)
}

func (s *Secrets) keypair(name string) (ed25519.PrivateKey, error) {
	value, ok := s.raw[name]
	if !ok || len(value) == 0 {
		return nil, errors.Wrap(ErrMissingKey, name)
	}

	key, err := ParseKeypair(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", name)
	}
	return key, nil
}

// RotateAdmin makes newAdmin the admin key. The current admin moves to the
// next free old_admin_N_key entry and the previous file is kept as a backup
// next to path. Returns the entry name the old admin was stored under.
func RotateAdmin(path string, newAdmin ed25519.PrivateKey) (string, error) {
	current, err := readRaw(path)
	if err != nil {
		return "", err
	}
	preCount := len(current)

	admin, ok := current[AdminKeyName]
	if !ok {
		return "", errors.Wrap(ErrMissingKey, AdminKeyName)
	}

	backup := BackupPath(path)
	if osutil.FileExists(backup) {
		previous, err := readRaw(backup)
		if err != nil {
			return "", errors.Wrap(err, "error reading backup secrets")
		}
		if len(previous)+1 != preCount {
			return "", errors.Wrapf(ErrBackupMismatch, "%s has %d entries, %s has %d", backup, len(previous), path, preCount)
		}
	}

	currentBytes, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "error reading secrets")
	}
	if err := osutil.WriteFileAtomic(backup, currentBytes, filePerm); err != nil {
		return "", errors.Wrap(err, "error writing backup secrets")
	}

	oldKeyName := fmt.Sprintf("%s%d%s", oldAdminPrefix, nextOldAdminIndex(current), oldAdminSuffix)
	current[oldKeyName] = admin
	current[AdminKeyName] = FormatKeypair(newAdmin)

	encoded, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", err
	}
	if err := osutil.WriteFileAtomic(path, encoded, filePerm); err != nil {
		return "", errors.Wrap(err, "error writing secrets")
	}

	written, err := readRaw(path)
	if err != nil || len(written) != preCount+1 {
		if restoreErr := osutil.WriteFileAtomic(path, currentBytes, filePerm); restoreErr != nil {
			return "", errors.Wrapf(restoreErr, "error restoring %s from %s", path, backup)
		}
		if err != nil {
			return "", errors.Wrap(ErrRotationFailed, err.Error())
		}
		return "", ErrRotationFailed
	}

	return oldKeyName, nil
}

// BackupPath returns where RotateAdmin keeps the previous secrets file, for
// example .secrets-old.json for .secrets.json.
func BackupPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"-old"+ext)
}

// ParseKeypair decodes a comma separated list of 64 bytes into a keypair and
// checks the public half matches the seed.
func ParseKeypair(value string) (ed25519.PrivateKey, error) {
	parts := strings.Split(value, ",")
	if len(parts) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("expected %d bytes, got %d", ed25519.PrivateKeySize, len(parts))
	}

	key := make([]byte, ed25519.PrivateKeySize)
	for i, part := range parts {
		b, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid byte at position %d", i)
		}
		key[i] = byte(b)
	}

	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !derived.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, errors.New("public key does not match private key")
	}
	return derived, nil
}

// FormatKeypair encodes a keypair the way ParseKeypair reads it.
func FormatKeypair(key ed25519.PrivateKey) string {
	parts := make([]string, len(key))
	for i, b := range key {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, ",")
}

func readRaw(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading secrets")
	}

	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(err, "error decoding %s", path)
	}
	return raw, nil
}

func isOldAdminKey(name string) bool {
	_, ok := oldAdminIndex(name)
	return ok
}

func oldAdminIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, oldAdminPrefix) || !strings.HasSuffix(name, oldAdminSuffix) {
		return 0, false
	}
	index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, oldAdminPrefix), oldAdminSuffix))
	if err != nil || index <= 0 {
		return 0, false
	}
	return index, true
}

func nextOldAdminIndex(raw map[string]string) int {
	var max int
	for name := range raw {
		if index, ok := oldAdminIndex(name); ok && index > max {
			max = index
		}
	}
	return max + 1
}
