package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/agorahub/lootbox-client/pkg/app"
	"github.com/agorahub/lootbox-client/pkg/lootbox/command"
)

func (c *cli) newAdminCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new-admin",
		Short: "Rotate the admin key and move its lamports to the new one",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			res, err := a.Service.NewAdmin(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printResult(w, res.Result)
			fmt.Fprintf(w, "Old admin: %s (saved as %s)\n", base58.Encode(res.OldAdmin), res.OldKeyName)
			fmt.Fprintf(w, "New admin: %s\n", base58.Encode(res.NewAdmin))
			fmt.Fprintf(w, "Transferred: %d lamports\n", res.Lamports)
			return nil
		}),
	}
}

func (c *cli) newKeyCommand() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "new-key [prefix]",
		Short: "Generate a keypair, optionally with a vanity base58 address prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) > 0 {
				prefix = args[0]
			}

			res, err := command.GenerateKey(cmd.Context(), prefix, workers)
			if err != nil {
				return err
			}

			keypair := make([]int, len(res.Key))
			for i, b := range res.Key {
				keypair[i] = int(b)
			}
			encoded, err := json.Marshal(keypair)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Address: %s\n", res.Address())
			fmt.Fprintf(w, "Attempts: %d\n", res.Attempts)
			fmt.Fprintf(w, "Keypair: %s\n", encoded)
			fmt.Fprintf(w, "Base58: %s\n", base58.Encode(res.Key))
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "search goroutines (defaults to one per CPU)")
	return cmd
}
