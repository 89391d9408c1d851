package alt

import (
	"errors"
	"time"
)

type State uint8

const (
	StateUnknown      State = iota
	StateCreated            // Table created, possibly with an initial batch of addresses
	StateExtended           // All addresses registered and the table is usable
	StateDeactivating       // Deactivated by the transaction that consumed it
	StateOrphaned           // Provisioning or the consuming transaction failed
	StateClosed             // Rent reclaimed after the deactivation cooldown
)

type Record struct {
	Id uint64

	Address   string
	Authority string
	Slot      uint64

	RunId     string
	Addresses uint32

	State         State
	LastSignature string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) Clone() Record {
	return Record{
		Id:            r.Id,
		Address:       r.Address,
		Authority:     r.Authority,
		Slot:          r.Slot,
		RunId:         r.RunId,
		Addresses:     r.Addresses,
		State:         r.State,
		LastSignature: r.LastSignature,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id
	dst.Address = r.Address
	dst.Authority = r.Authority
	dst.Slot = r.Slot
	dst.RunId = r.RunId
	dst.Addresses = r.Addresses
	dst.State = r.State
	dst.LastSignature = r.LastSignature
	dst.CreatedAt = r.CreatedAt
	dst.UpdatedAt = r.UpdatedAt
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("table address is required")
	}

	if len(r.Authority) == 0 {
		return errors.New("authority address is required")
	}

	if r.Slot == 0 {
		return errors.New("recent slot is required")
	}

	if len(r.RunId) == 0 {
		return errors.New("run id is required")
	}

	if r.State == StateUnknown {
		return errors.New("state must be set")
	}

	return nil
}

// IsOpen reports whether the table may still hold rent that needs reclaiming.
func (r *Record) IsOpen() bool {
	return r.State != StateClosed
}

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateCreated:
		return "created"
	case StateExtended:
		return "extended"
	case StateDeactivating:
		return "deactivating"
	case StateOrphaned:
		return "orphaned"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}
