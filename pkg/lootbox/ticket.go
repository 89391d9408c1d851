package lootbox

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var ticketPrefix = []byte("AGLB")

// TicketVersion0 is the only ticket record layout.
const TicketVersion0 = 0

// Ticket is a purchased, not yet redeemed, ticket record.
type Ticket struct {
	Version    uint8
	Owner      ed25519.PublicKey
	LootboxId  uint16
	IssueIndex uint32
	ExternalId uint32
}

// LoadTicket decodes a ticket record. Closed tickets are zero filled and
// reported as ErrAccountNotFound.
func LoadTicket(data []byte) (*Ticket, error) {
	if len(data) == 0 || isZero(data) {
		return nil, ErrAccountNotFound
	}

	d := newDecoder(data)
	prefix := make([]byte, len(ticketPrefix))
	d.fixed("prefix", prefix)
	if d.err == nil && !bytes.Equal(prefix, ticketPrefix) {
		return nil, errors.Wrapf(ErrMalformedRecord, "unexpected ticket prefix %x", prefix)
	}

	t := &Ticket{Version: d.u8("version")}
	if d.err == nil && t.Version != TicketVersion0 {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "ticket version %d", t.Version)
	}
	t.Owner = key(d, "owner")
	t.LootboxId = d.u16("lootbox_id")
	t.IssueIndex = d.u32("issue_index")
	t.ExternalId = d.u32("external_id")

	if err := d.done(false); err != nil {
		return nil, errors.Wrap(err, "ticket")
	}
	return t, nil
}

func (t *Ticket) Marshal() []byte {
	e := newEncoder()
	e.fixed(ticketPrefix)
	e.u8(t.Version)
	e.fixed(t.Owner)
	e.u16(t.LootboxId)
	e.u32(t.IssueIndex)
	e.u32(t.ExternalId)
	return e.bytes()
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
