package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/agorahub/lootbox-client/pkg/app"
	"github.com/agorahub/lootbox-client/pkg/lootbox/command"
	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
)

func (c *cli) listAltCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-alt",
		Short: "List the payer's address lookup tables and whether they can be closed",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			listing, err := a.Service.ListAlt(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Found %d ALT(s) for authority %s at slot %d:\n", len(listing.Tables), base58.Encode(listing.Authority), listing.Slot)
			for _, table := range listing.Tables {
				fmt.Fprintf(w, "%s: %s", base58.Encode(table.Address), table.Status(listing.Slot))
				if table.OnChain() {
					fmt.Fprintf(w, ", %d addresses, deactivation slot %d", len(table.Account.Addresses), table.Account.DeactivationSlot)
				}
				if table.Record != nil {
					fmt.Fprintf(w, ", ledger %s (run %s)", table.Record.State, table.Record.RunId)
				}
				fmt.Fprintln(w)
			}
			return nil
		}),
	}
}

func (c *cli) closeAltCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close-alt <address>",
		Short: "Deactivate an active lookup table or close a deactivated one",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			address, err := parseKey("address", args[0])
			if err != nil {
				return err
			}

			res, err := a.Service.CloseAlt(ctx, address)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printResult(w, res.Result)
			fmt.Fprintf(w, "%s: %s", base58.Encode(res.Address), res.Action)
			if res.RemainingSlots > 0 {
				fmt.Fprintf(w, ", closable in %d slots", res.RemainingSlots)
			}
			fmt.Fprintln(w)
			return nil
		}),
	}
}

func (c *cli) unpackTxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack-tx <transaction>",
		Short: "Decode a base64 or base58 encoded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Get(c.config.Profile)
			if err != nil {
				return err
			}

			unpacked, err := command.Unpack(args[0], p.Program, p.Revision)
			if err != nil {
				return err
			}
			printUnpacked(cmd.OutOrStdout(), p, unpacked)
			return nil
		},
	}
}

func printUnpacked(w io.Writer, p *profile.Profile, tx *command.UnpackedTransaction) {
	fmt.Fprintf(w, "Tx length: %d\n", tx.Size)
	fmt.Fprintf(w, "Version: %d\n", tx.Transaction.Message.Version())
	for i, sig := range tx.Transaction.Signatures {
		signer := "unknown"
		if i < len(tx.Signers) {
			signer = base58.Encode(tx.Signers[i])
		}
		fmt.Fprintf(w, "Signature %d: %s (%s)\n", i, sig, signer)
	}

	fmt.Fprintf(w, "Tx instructions: %d:\n", len(tx.Instructions))
	for i, ix := range tx.Instructions {
		program := base58.Encode(ix.Program)
		if ix.Program.Equal(p.Program) {
			program += " (lootbox)"
		}
		fmt.Fprintf(w, "#%d program %s\n", i, program)

		for _, account := range ix.Accounts {
			key := "lookup"
			if account.Key != nil {
				key = base58.Encode(account.Key)
			}
			fmt.Fprintf(w, "  [%d] %s %s\n", account.Index, key, account.Flags())
		}

		fmt.Fprintf(w, "  data: %s\n", hex.EncodeToString(ix.Data))
		switch {
		case ix.Lootbox != nil:
			fmt.Fprintf(w, "  %s: %+v\n", ix.Lootbox.Operation(), ix.Lootbox)
		case ix.DecodeErr != nil:
			fmt.Fprintf(w, "  undecodable: %v\n", ix.DecodeErr)
		}
	}
}
