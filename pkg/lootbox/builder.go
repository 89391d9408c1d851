package lootbox

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/agorahub/lootbox-client/pkg/solana"
	compute_budget "github.com/agorahub/lootbox-client/pkg/solana/computebudget"
	"github.com/agorahub/lootbox-client/pkg/solana/metadata"
	"github.com/agorahub/lootbox-client/pkg/solana/system"
	"github.com/agorahub/lootbox-client/pkg/solana/token"
)

const (
	// BuyBatchSize is the number of tickets bought per Buy instruction.
	BuyBatchSize = 20

	// ObtainTicketComputeUnits covers the metadata and master edition CPIs.
	ObtainTicketComputeUnits = 300_000
)

// BuyParams describes a ticket purchase.
type BuyParams struct {
	Buyer       ed25519.PublicKey
	PaymentMint ed25519.PublicKey

	// TicketSeed namespaces the ticket PDAs of this purchase. Callers
	// derive it from the current time.
	TicketSeed uint32

	// Count defaults to BuyBatchSize.
	Count int

	// CreateBuyerAta prepends creation of the buyer's payment account.
	CreateBuyerAta bool
}

// BuyResult holds the instructions of a purchase and the ticket records it
// will create.
type BuyResult struct {
	Instructions []solana.Instruction
	Tickets      []ed25519.PublicKey
	UnitPrice    uint64
	Total        uint64
}

// NewBuyInstructions approves the vault to collect the total price and
// invokes Buy for a batch of ticket records.
func NewBuyInstructions(d Deployment, state *State, p BuyParams) (*BuyResult, error) {
	count := p.Count
	if count == 0 {
		count = BuyBatchSize
	}
	if count < 0 || count > MaxTicketsPerSeed {
		return nil, errors.Wrapf(ErrInvalidParameter, "ticket count %d", count)
	}

	vault, _, err := d.Vault()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive vault")
	}
	stateAddress, _, err := d.State()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive state")
	}
	paymentAta, err := token.GetAssociatedAccount(vault, p.PaymentMint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive payment account")
	}

	price, err := state.FindPrice(paymentAta)
	if err != nil {
		return nil, err
	}
	if price > math.MaxUint64/uint64(count) {
		return nil, errors.Wrapf(ErrInvalidParameter, "total price overflows: %d x %d", price, count)
	}
	total := price * uint64(count)

	tickets, bumps, err := GetTicketAddresses(d.Program, p.Buyer, d.LootboxId, p.TicketSeed, count)
	if err != nil {
		return nil, err
	}

	record, err := Encode(d.Revision, &Buy{
		LootboxId:   d.LootboxId,
		TicketSeed:  p.TicketSeed,
		TicketBumps: bumps,
	})
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	buyerAta, err := token.GetAssociatedAccount(p.Buyer, p.PaymentMint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive buyer account")
	}
	if p.CreateBuyerAta {
		create, _, err := token.CreateAssociatedTokenAccountIdempotent(p.Buyer, p.Buyer, p.PaymentMint)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, create)
	}
	instructions = append(instructions, token.Approve(buyerAta, vault, p.Buyer, total))

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(p.Buyer, true),
		solana.NewAccountMeta(buyerAta, false),
		solana.NewAccountMeta(paymentAta, false),
		solana.NewAccountMeta(stateAddress, false),
		solana.NewReadonlyAccountMeta(vault, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	}
	for _, ticket := range tickets {
		accounts = append(accounts, solana.NewAccountMeta(ticket, false))
	}
	instructions = append(instructions, solana.NewInstruction(d.Program, record, accounts...))

	return &BuyResult{
		Instructions: instructions,
		Tickets:      tickets,
		UnitPrice:    price,
		Total:        total,
	}, nil
}

// Reward is a token payout of a withdrawal.
type Reward struct {
	Mint   ed25519.PublicKey
	Amount uint64

	// CreateReceiverAta prepends creation of the receiver's account.
	CreateReceiverAta bool
}

// WithdrawParams describes the redemption of obtained tickets, authorised
// by a backend signature.
type WithdrawParams struct {
	Receiver    ed25519.PublicKey
	ExpireAt    uint32
	Signature   Signature
	TicketMints []ed25519.PublicKey
	Rewards     []Reward
}

// NewWithdrawInstructions burns the ticket NFTs held by the receiver and
// pays out the rewards from the vault.
func NewWithdrawInstructions(d Deployment, p WithdrawParams) ([]solana.Instruction, error) {
	if len(p.TicketMints) == 0 && len(p.Rewards) == 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "withdraw needs at least one ticket or reward")
	}
	if len(p.TicketMints) > math.MaxUint8 {
		return nil, errors.Wrapf(ErrInvalidParameter, "too many tickets: %d", len(p.TicketMints))
	}

	vault, _, err := d.Vault()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive vault")
	}
	stateAddress, _, err := d.State()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive state")
	}

	amounts := make([]uint64, len(p.Rewards))
	for i, reward := range p.Rewards {
		amounts[i] = reward.Amount
	}
	record, err := Encode(d.Revision, &Withdraw{
		ExpireAt:  p.ExpireAt,
		Signature: p.Signature,
		Tickets:   uint8(len(p.TicketMints)),
		Amounts:   amounts,
	})
	if err != nil {
		return nil, err
	}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(p.Receiver, true),
		solana.NewReadonlyAccountMeta(vault, false),
		solana.NewAccountMeta(stateAddress, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(system.InstructionsSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(metadata.ProgramKey, false),
	}

	for _, mint := range p.TicketMints {
		ata, err := token.GetAssociatedAccount(p.Receiver, mint)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive ticket account for %s", base58.Encode(mint))
		}
		metadataAddress, err := metadata.GetMetadataAddress(mint)
		if err != nil {
			return nil, err
		}
		masterEdition, err := metadata.GetMasterEditionAddress(mint)
		if err != nil {
			return nil, err
		}
		accounts = append(
			accounts,
			solana.NewAccountMeta(mint, false),
			solana.NewAccountMeta(ata, false),
			solana.NewAccountMeta(metadataAddress, false),
			solana.NewAccountMeta(masterEdition, false),
		)
	}

	var instructions []solana.Instruction
	for _, reward := range p.Rewards {
		source, err := token.GetAssociatedAccount(vault, reward.Mint)
		if err != nil {
			return nil, err
		}
		destination, err := token.GetAssociatedAccount(p.Receiver, reward.Mint)
		if err != nil {
			return nil, err
		}
		if reward.CreateReceiverAta {
			create, _, err := token.CreateAssociatedTokenAccountIdempotent(p.Receiver, p.Receiver, reward.Mint)
			if err != nil {
				return nil, err
			}
			instructions = append(instructions, create)
		}
		accounts = append(
			accounts,
			solana.NewAccountMeta(reward.Mint, false),
			solana.NewAccountMeta(source, false),
			solana.NewAccountMeta(destination, false),
		)
	}

	return append(instructions, solana.NewInstruction(d.Program, record, accounts...)), nil
}

// ObtainTicketParams describes the conversion of a ticket into an NFT.
type ObtainTicketParams struct {
	Receiver  ed25519.PublicKey
	TicketId  uint32
	ExpireAt  uint32
	Signature Signature
}

// ObtainTicketResult holds the instructions minting a ticket NFT and the
// addresses they touch.
type ObtainTicketResult struct {
	Instructions       []solana.Instruction
	Mint               ed25519.PublicKey
	DestinationAccount ed25519.PublicKey
}

// NewObtainTicketInstructions mints the NFT of ticket TicketId into the
// receiver's associated account.
func NewObtainTicketInstructions(d Deployment, p ObtainTicketParams) (*ObtainTicketResult, error) {
	vault, _, err := d.Vault()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive vault")
	}
	stateAddress, _, err := d.State()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive state")
	}
	mint, bump, err := GetTicketMintAddress(d.Program, d.Admin, p.TicketId)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive ticket mint")
	}
	destination, err := token.GetAssociatedAccount(p.Receiver, mint)
	if err != nil {
		return nil, err
	}
	metadataAddress, err := metadata.GetMetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	masterEdition, err := metadata.GetMasterEditionAddress(mint)
	if err != nil {
		return nil, err
	}

	record, err := Encode(d.Revision, &ObtainTicket{
		LootboxId:  d.LootboxId,
		TicketBump: bump,
		TicketId:   p.TicketId,
		ExpireAt:   p.ExpireAt,
		Signature:  p.Signature,
	})
	if err != nil {
		return nil, err
	}

	obtain := solana.NewInstruction(
		d.Program,
		record,
		solana.NewAccountMeta(p.Receiver, true),
		solana.NewAccountMeta(destination, false),
		solana.NewAccountMeta(stateAddress, false),
		solana.NewReadonlyAccountMeta(vault, false),
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(metadataAddress, false),
		solana.NewAccountMeta(masterEdition, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
		solana.NewReadonlyAccountMeta(system.InstructionsSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(metadata.ProgramKey, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
	)

	return &ObtainTicketResult{
		Instructions: []solana.Instruction{
			compute_budget.SetComputeUnitLimit(ObtainTicketComputeUnits),
			obtain,
		},
		Mint:               mint,
		DestinationAccount: destination,
	}, nil
}

// PriceParam is a ticket price in one payment mint.
type PriceParam struct {
	Mint   ed25519.PublicKey
	Amount uint64

	// CreateVaultAta prepends creation of the vault's payment account.
	CreateVaultAta bool
}

// InitializeParams describes a new lootbox.
type InitializeParams struct {
	MaxSupply uint32
	BeginTs   uint32
	EndTs     uint32
	Signer    SignerKey
	Name      string
	BaseUrl   string
	Prices    []PriceParam
}

// NewInitializeInstructions creates the vault payment accounts that are
// missing and invokes Initialize.
func NewInitializeInstructions(d Deployment, p InitializeParams) ([]solana.Instruction, error) {
	if err := p.Signer.Validate(); err != nil {
		return nil, err
	}
	if len(p.Prices) == 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "at least one price is required")
	}
	if p.EndTs != 0 && p.EndTs < p.BeginTs {
		return nil, errors.Wrapf(ErrInvalidParameter, "sale ends (%d) before it begins (%d)", p.EndTs, p.BeginTs)
	}
	for i := range p.Prices {
		for j := i + 1; j < len(p.Prices); j++ {
			if bytes.Equal(p.Prices[i].Mint, p.Prices[j].Mint) {
				return nil, errors.Wrapf(ErrInvalidParameter, "duplicate price for mint %s", base58.Encode(p.Prices[i].Mint))
			}
		}
	}

	vault, vaultBump, err := d.Vault()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive vault")
	}
	stateAddress, stateBump, err := d.State()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive state")
	}

	var instructions []solana.Instruction
	amounts := make([]uint64, len(p.Prices))
	paymentAccounts := make([]solana.AccountMeta, len(p.Prices))
	for i, price := range p.Prices {
		if price.Amount == 0 {
			return nil, errors.Wrapf(ErrInvalidParameter, "zero price for mint %s", base58.Encode(price.Mint))
		}
		amounts[i] = price.Amount

		ata, err := token.GetAssociatedAccount(vault, price.Mint)
		if err != nil {
			return nil, err
		}
		paymentAccounts[i] = solana.NewReadonlyAccountMeta(ata, false)

		if price.CreateVaultAta {
			create, _, err := token.CreateAssociatedTokenAccountIdempotent(d.Admin, vault, price.Mint)
			if err != nil {
				return nil, err
			}
			instructions = append(instructions, create)
		}
	}

	record, err := Encode(d.Revision, &Initialize{
		LootboxId: d.LootboxId,
		VaultBump: vaultBump,
		StateBump: stateBump,
		MaxSupply: p.MaxSupply,
		BeginTs:   p.BeginTs,
		EndTs:     p.EndTs,
		Signer:    p.Signer,
		Name:      p.Name,
		Prices:    amounts,
		BaseUrl:   p.BaseUrl,
	})
	if err != nil {
		return nil, err
	}

	accounts := append([]solana.AccountMeta{
		solana.NewAccountMeta(d.Admin, true),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(stateAddress, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	}, paymentAccounts...)

	return append(instructions, solana.NewInstruction(d.Program, record, accounts...)), nil
}

// NewMigrateInstruction rewrites the state account in the latest layout.
func NewMigrateInstruction(d Deployment) (solana.Instruction, error) {
	stateAddress, stateBump, err := d.State()
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to derive state")
	}

	record, err := Encode(d.Revision, &Migrate{StateBump: stateBump})
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		d.Program,
		record,
		solana.NewAccountMeta(d.Admin, true),
		solana.NewAccountMeta(stateAddress, false),
	), nil
}

// PriceUpdate sets the unit price for payments in Mint.
type PriceUpdate struct {
	Mint   ed25519.PublicKey
	Amount uint64
}

// UpdateStateParams holds the fields to change. Nil fields are left as is.
type UpdateStateParams struct {
	MaxSupply *uint32
	BeginTs   *uint32
	EndTs     *uint32
	Price     *PriceUpdate
}

// NewUpdateStateInstruction changes the selected state fields.
func NewUpdateStateInstruction(d Deployment, p UpdateStateParams) (solana.Instruction, error) {
	stateAddress, stateBump, err := d.State()
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "failed to derive state")
	}

	record := &UpdateState{
		LootboxId: d.LootboxId,
		StateBump: stateBump,
	}
	if p.MaxSupply != nil {
		record.Flags |= UpdateMaxSupply
		record.MaxSupply = *p.MaxSupply
	}
	if p.BeginTs != nil {
		record.Flags |= UpdateBeginTs
		record.BeginTs = *p.BeginTs
	}
	if p.EndTs != nil {
		record.Flags |= UpdateEndTs
		record.EndTs = *p.EndTs
	}
	if p.Price != nil {
		ata, err := d.VaultTokenAccount(p.Price.Mint)
		if err != nil {
			return solana.Instruction{}, err
		}
		record.Flags |= UpdatePrice
		copy(record.PriceAta[:], ata)
		record.PriceAmount = p.Price.Amount
	}
	if record.Flags == 0 {
		return solana.Instruction{}, errors.Wrap(ErrInvalidParameter, "nothing to update")
	}

	data, err := Encode(d.Revision, record)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		d.Program,
		data,
		solana.NewAccountMeta(d.Admin, true),
		solana.NewAccountMeta(stateAddress, false),
	), nil
}

// AdminWithdrawParams describes a transfer out of a vault token account to
// the admin's associated account.
type AdminWithdrawParams struct {
	Mint   ed25519.PublicKey
	Amount uint64

	// CreateDestinationAta prepends creation of the admin's account.
	CreateDestinationAta bool
}

// NewAdminWithdrawInstructions moves Amount of Mint from the vault to the
// admin.
func NewAdminWithdrawInstructions(d Deployment, p AdminWithdrawParams) ([]solana.Instruction, error) {
	if p.Amount == 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "amount must be positive")
	}

	vault, _, err := d.Vault()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive vault")
	}
	stateAddress, _, err := d.State()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive state")
	}
	source, err := token.GetAssociatedAccount(vault, p.Mint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	destination, err := token.GetAssociatedAccount(d.Admin, p.Mint)
	if err != nil {
		return nil, err
	}
	if p.CreateDestinationAta {
		create, _, err := token.CreateAssociatedTokenAccountIdempotent(d.Admin, d.Admin, p.Mint)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, create)
	}

	record, err := Encode(d.Revision, &AdminWithdraw{
		LootboxId: d.LootboxId,
		Amount:    p.Amount,
	})
	if err != nil {
		return nil, err
	}

	return append(instructions, solana.NewInstruction(
		d.Program,
		record,
		solana.NewAccountMeta(d.Admin, true),
		solana.NewReadonlyAccountMeta(stateAddress, false),
		solana.NewReadonlyAccountMeta(vault, false),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)), nil
}
