package lootbox

import (
	"github.com/pkg/errors"
)

// Record is an instruction payload. The opcode preceding it on the wire is
// chosen by the program revision.
type Record interface {
	Operation() Operation

	encode(e *encoder)
	decode(d *decoder)
}

// Encode serializes r prefixed by the opcode rev assigns to it.
func Encode(rev Revision, r Record) ([]byte, error) {
	opcode, err := rev.Opcode(r.Operation())
	if err != nil {
		return nil, err
	}

	e := newEncoder()
	e.u8(opcode)
	r.encode(e)
	return e.bytes(), nil
}

// Decode parses instruction data produced for rev. The whole buffer must be
// consumed.
func Decode(rev Revision, data []byte) (Record, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformedRecord, "empty instruction data")
	}

	op, err := rev.Operation(data[0])
	if err != nil {
		return nil, err
	}

	var r Record
	switch op {
	case OperationBuy:
		r = &Buy{}
	case OperationWithdraw:
		r = &Withdraw{}
	case OperationObtainTicket:
		r = &ObtainTicket{}
	case OperationUpdateState:
		r = &UpdateState{}
	case OperationMigrate:
		r = &Migrate{}
	case OperationAdminWithdraw:
		r = &AdminWithdraw{}
	case OperationInitialize:
		r = &Initialize{}
	default:
		return nil, errors.Wrapf(ErrUnsupportedInstruction, "opcode %d", data[0])
	}

	d := newDecoder(data[1:])
	r.decode(d)
	if err := d.done(true); err != nil {
		return nil, errors.Wrapf(err, "%s", op)
	}
	return r, nil
}

// Signature is a recoverable secp256k1 signature issued by the lootbox
// backend.
type Signature struct {
	RecoveryId uint8
	RS         [64]byte
}

func (s *Signature) encode(e *encoder) {
	e.u8(s.RecoveryId)
	e.fixed(s.RS[:])
}

func (s *Signature) decode(d *decoder) {
	s.RecoveryId = d.u8("signature.recovery_id")
	d.fixed("signature.rs", s.RS[:])
}

// Buy purchases one ticket per bump. Ticket i is derived from
// (buyer, LootboxId, TicketSeed, i) and TicketBumps[i] is its bump.
type Buy struct {
	LootboxId   uint16
	TicketSeed  uint32
	TicketBumps []uint8
}

func (*Buy) Operation() Operation { return OperationBuy }

func (b *Buy) encode(e *encoder) {
	e.u16(b.LootboxId)
	e.u32(b.TicketSeed)
	e.length(len(b.TicketBumps))
	e.fixed(b.TicketBumps)
}

func (b *Buy) decode(d *decoder) {
	b.LootboxId = d.u16("lootbox_id")
	b.TicketSeed = d.u32("ticket_seed")
	n := d.length("ticket_bumps", 1)
	b.TicketBumps = make([]uint8, n)
	d.fixed("ticket_bumps", b.TicketBumps)
}

// Withdraw redeems Tickets tickets for the reward Amounts, one per reward
// mint, authorised by Signature until ExpireAt.
type Withdraw struct {
	ExpireAt  uint32
	Signature Signature
	Tickets   uint8
	Amounts   []uint64
}

func (*Withdraw) Operation() Operation { return OperationWithdraw }

func (w *Withdraw) encode(e *encoder) {
	e.u32(w.ExpireAt)
	w.Signature.encode(e)
	e.u8(w.Tickets)
	e.length(len(w.Amounts))
	for _, amount := range w.Amounts {
		e.u64(amount)
	}
}

func (w *Withdraw) decode(d *decoder) {
	w.ExpireAt = d.u32("expire_at")
	w.Signature.decode(d)
	w.Tickets = d.u8("tickets")
	n := d.length("amounts", 8)
	w.Amounts = make([]uint64, n)
	for i := range w.Amounts {
		w.Amounts[i] = d.u64("amounts")
	}
}

// ObtainTicket mints the ticket NFT identified by TicketId.
type ObtainTicket struct {
	LootboxId  uint16
	TicketBump uint8
	TicketId   uint32
	ExpireAt   uint32
	Signature  Signature
}

func (*ObtainTicket) Operation() Operation { return OperationObtainTicket }

func (o *ObtainTicket) encode(e *encoder) {
	e.u16(o.LootboxId)
	e.u8(o.TicketBump)
	e.u32(o.TicketId)
	e.u32(o.ExpireAt)
	o.Signature.encode(e)
}

func (o *ObtainTicket) decode(d *decoder) {
	o.LootboxId = d.u16("lootbox_id")
	o.TicketBump = d.u8("ticket_bump")
	o.TicketId = d.u32("ticket_id")
	o.ExpireAt = d.u32("expire_at")
	o.Signature.decode(d)
}

// Initialize creates the vault and state accounts of a lootbox. Prices are
// matched positionally with the payment accounts passed to the instruction.
type Initialize struct {
	LootboxId uint16
	VaultBump uint8
	StateBump uint8
	MaxSupply uint32
	BeginTs   uint32
	EndTs     uint32
	Signer    SignerKey
	Name      string
	Prices    []uint64
	BaseUrl   string
}

func (*Initialize) Operation() Operation { return OperationInitialize }

func (i *Initialize) encode(e *encoder) {
	e.u16(i.LootboxId)
	e.u8(i.VaultBump)
	e.u8(i.StateBump)
	e.u32(i.MaxSupply)
	e.u32(i.BeginTs)
	e.u32(i.EndTs)
	e.fixed(i.Signer[:])
	e.str(i.Name)
	e.length(len(i.Prices))
	for _, price := range i.Prices {
		e.u64(price)
	}
	e.str(i.BaseUrl)
}

func (i *Initialize) decode(d *decoder) {
	i.LootboxId = d.u16("lootbox_id")
	i.VaultBump = d.u8("vault_bump")
	i.StateBump = d.u8("state_bump")
	i.MaxSupply = d.u32("max_supply")
	i.BeginTs = d.u32("begin_ts")
	i.EndTs = d.u32("end_ts")
	d.fixed("signer", i.Signer[:])
	i.Name = d.str("name")
	n := d.length("prices", 8)
	i.Prices = make([]uint64, n)
	for j := range i.Prices {
		i.Prices[j] = d.u64("prices")
	}
	i.BaseUrl = d.str("base_url")
}

// Migrate rewrites the state account in the latest layout.
type Migrate struct {
	StateBump uint8
}

func (*Migrate) Operation() Operation { return OperationMigrate }

func (m *Migrate) encode(e *encoder) {
	e.u8(m.StateBump)
}

func (m *Migrate) decode(d *decoder) {
	m.StateBump = d.u8("state_bump")
}

// UpdateFlags selects which UpdateState fields the program applies.
type UpdateFlags uint8

const (
	UpdateMaxSupply UpdateFlags = 1 << iota
	UpdateBeginTs
	UpdateEndTs
	UpdatePrice
)

// Has reports whether every bit of f2 is set in f.
func (f UpdateFlags) Has(f2 UpdateFlags) bool {
	return f&f2 == f2
}

// UpdateState changes the fields selected by Flags. Unselected fields are
// encoded as zero and ignored on chain.
type UpdateState struct {
	LootboxId   uint16
	StateBump   uint8
	Flags       UpdateFlags
	MaxSupply   uint32
	BeginTs     uint32
	EndTs       uint32
	PriceAta    [32]byte
	PriceAmount uint64
}

func (*UpdateState) Operation() Operation { return OperationUpdateState }

func (u *UpdateState) encode(e *encoder) {
	e.u16(u.LootboxId)
	e.u8(u.StateBump)
	e.u8(uint8(u.Flags))
	e.u32(u.MaxSupply)
	e.u32(u.BeginTs)
	e.u32(u.EndTs)
	e.fixed(u.PriceAta[:])
	e.u64(u.PriceAmount)
}

func (u *UpdateState) decode(d *decoder) {
	u.LootboxId = d.u16("lootbox_id")
	u.StateBump = d.u8("state_bump")
	u.Flags = UpdateFlags(d.u8("flags"))
	u.MaxSupply = d.u32("max_supply")
	u.BeginTs = d.u32("begin_ts")
	u.EndTs = d.u32("end_ts")
	d.fixed("price_ata", u.PriceAta[:])
	u.PriceAmount = d.u64("price_amount")
}

// AdminWithdraw moves Amount out of a vault token account to the admin.
type AdminWithdraw struct {
	LootboxId uint16
	Amount    uint64
}

func (*AdminWithdraw) Operation() Operation { return OperationAdminWithdraw }

func (a *AdminWithdraw) encode(e *encoder) {
	e.u16(a.LootboxId)
	e.u64(a.Amount)
}

func (a *AdminWithdraw) decode(d *decoder) {
	a.LootboxId = d.u16("lootbox_id")
	a.Amount = d.u64("amount")
}
