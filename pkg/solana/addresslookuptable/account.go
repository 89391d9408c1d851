package address_lookup_table

import (
	"crypto/ed25519"
	"fmt"
	"math"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana/binary"
)

var (
	ErrInvalidAccountSize = errors.New("invalid address lookup table account size")
	ErrInvalidAccountType = errors.New("invalid account type")
)

const (
	lookupTableDiscriminator = 1

	// MetadataSize is the fixed header preceding the stored addresses.
	MetadataSize = 56
	// AuthorityOffset locates the authority key (after its option tag), for
	// memcmp filters.
	AuthorityOffset = 22

	MaxAddresses = 256

	// DeactivationCooldown is the number of slots a deactivated table must
	// age before it can be closed. It matches the slot hashes sysvar depth.
	DeactivationCooldown = 512
)

type Account struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	// Authority is nil once the table has been frozen.
	Authority ed25519.PublicKey
	Addresses []ed25519.PublicKey
}

func (obj *Account) Unmarshal(data []byte) error {
	if len(data) < MetadataSize {
		return ErrInvalidAccountSize
	}

	var offset int

	var discriminator uint32
	binary.GetUint32(data[offset:], &discriminator, &offset)
	if discriminator != lookupTableDiscriminator {
		return ErrInvalidAccountType
	}

	binary.GetUint64(data[offset:], &obj.DeactivationSlot, &offset)
	binary.GetUint64(data[offset:], &obj.LastExtendedSlot, &offset)
	binary.GetUint8(data[offset:], &obj.LastExtendedSlotStartIndex, &offset)
	obj.Authority = nil
	binary.GetOptionalKey32(data[offset:], &obj.Authority, &offset, binary.OptionSize)

	offset = MetadataSize

	addressBufferSize := len(data) - offset
	if addressBufferSize%ed25519.PublicKeySize != 0 {
		return ErrInvalidAccountSize
	}
	addressCount := addressBufferSize / ed25519.PublicKeySize
	if addressCount > MaxAddresses {
		return ErrInvalidAccountSize
	}

	obj.Addresses = make([]ed25519.PublicKey, addressCount)
	for i := 0; i < addressCount; i++ {
		binary.GetKey32(data[offset:], &obj.Addresses[i], &offset)
	}

	return nil
}

func (obj *Account) Marshal() []byte {
	data := make([]byte, MetadataSize+len(obj.Addresses)*ed25519.PublicKeySize)

	var offset int
	binary.PutUint32(data[offset:], lookupTableDiscriminator, &offset)
	binary.PutUint64(data[offset:], obj.DeactivationSlot, &offset)
	binary.PutUint64(data[offset:], obj.LastExtendedSlot, &offset)
	binary.PutUint8(data[offset:], obj.LastExtendedSlotStartIndex, &offset)
	binary.PutOptionalKey32(data[offset:], obj.Authority, &offset, binary.OptionSize)

	offset = MetadataSize
	for _, address := range obj.Addresses {
		binary.PutKey32(data[offset:], address, &offset)
	}

	return data
}

// IsActive reports whether the table has not been deactivated.
func (obj *Account) IsActive() bool {
	return obj.DeactivationSlot == math.MaxUint64
}

// IsClosable reports whether a deactivated table has cooled down enough to
// be closed at currentSlot.
func (obj *Account) IsClosable(currentSlot uint64) bool {
	if obj.IsActive() {
		return false
	}
	return currentSlot > obj.DeactivationSlot+DeactivationCooldown
}

func (obj *Account) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, address := range obj.Addresses {
		sb.WriteString(fmt.Sprintf("%d:%s,", i, base58.Encode(address)))
	}
	sb.WriteString("}")

	deactivation := "active"
	if !obj.IsActive() {
		deactivation = fmt.Sprintf("%d", obj.DeactivationSlot)
	}

	return fmt.Sprintf(
		"AddressLookupTable{deactivation_slot=%s,last_extended_slot=%d,last_extended_slot_start_index=%d,authority=%s,addresses=%s}",
		deactivation,
		obj.LastExtendedSlot,
		obj.LastExtendedSlotStartIndex,
		base58.Encode(obj.Authority),
		sb.String(),
	)
}
