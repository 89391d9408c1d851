package lootbox

import (
	"fmt"

	"github.com/pkg/errors"
)

// Operation identifies an on-chain code path independently of the opcode a
// particular program revision assigns to it.
type Operation uint8

const (
	OperationUnknown Operation = iota
	OperationBuy
	OperationWithdraw
	OperationObtainTicket
	OperationUpdateState
	OperationMigrate
	OperationAdminWithdraw
	OperationInitialize
)

func (o Operation) String() string {
	switch o {
	case OperationBuy:
		return "buy"
	case OperationWithdraw:
		return "withdraw"
	case OperationObtainTicket:
		return "obtain_ticket"
	case OperationUpdateState:
		return "update_state"
	case OperationMigrate:
		return "migrate"
	case OperationAdminWithdraw:
		return "admin_withdraw"
	case OperationInitialize:
		return "initialize"
	}
	return "unknown"
}

// Revision is a deployed program ABI. Opcodes are part of the ABI and differ
// between revisions.
type Revision uint8

const (
	RevisionUnknown Revision = iota

	// RevisionSinglePrice stores one price and payment account per lootbox.
	RevisionSinglePrice

	// RevisionPriceTable stores a price table, lootbox ids and a sale window.
	RevisionPriceTable
)

var opcodes = map[Revision]map[Operation]uint8{
	RevisionSinglePrice: {
		OperationBuy:           0,
		OperationWithdraw:      1,
		OperationObtainTicket:  2,
		OperationMigrate:       253,
		OperationAdminWithdraw: 254,
		OperationInitialize:    255,
	},
	RevisionPriceTable: {
		OperationBuy:           1,
		OperationWithdraw:      2,
		OperationObtainTicket:  3,
		OperationUpdateState:   4,
		OperationMigrate:       253,
		OperationAdminWithdraw: 254,
		OperationInitialize:    255,
	},
}

// ParseRevision maps a revision name to its value.
func ParseRevision(name string) (Revision, error) {
	switch name {
	case "single-price":
		return RevisionSinglePrice, nil
	case "price-table":
		return RevisionPriceTable, nil
	}
	return RevisionUnknown, errors.Errorf("unknown program revision: %q", name)
}

func (r Revision) String() string {
	switch r {
	case RevisionSinglePrice:
		return "single-price"
	case RevisionPriceTable:
		return "price-table"
	}
	return fmt.Sprintf("revision(%d)", uint8(r))
}

// Opcode returns the discriminant r assigns to op.
func (r Revision) Opcode(op Operation) (uint8, error) {
	table, ok := opcodes[r]
	if !ok {
		return 0, errors.Errorf("unknown program revision: %d", uint8(r))
	}
	opcode, ok := table[op]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedInstruction, "%s in %s", op, r)
	}
	return opcode, nil
}

// Operation maps a discriminant back to the operation r assigns it to.
func (r Revision) Operation(opcode uint8) (Operation, error) {
	for op, code := range opcodes[r] {
		if code == opcode {
			return op, nil
		}
	}
	return OperationUnknown, errors.Wrapf(ErrUnsupportedInstruction, "opcode %d in %s", opcode, r)
}
