package main

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/agorahub/lootbox-client/pkg/app"
	"github.com/agorahub/lootbox-client/pkg/lootbox/command"
)

func printToken(cmd *cobra.Command, res *command.TokenResult) {
	w := cmd.OutOrStdout()
	printResult(w, res.Result)
	if res.Mint != nil {
		fmt.Fprintf(w, "Mint: %s\n", base58.Encode(res.Mint))
	}
	if res.Account != nil {
		fmt.Fprintf(w, "Account: %s\n", base58.Encode(res.Account))
	}
}

func (c *cli) createTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-token <decimals> <supply>",
		Short: "Create a token mint owned by the admin, minting supply to the payer",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			decimals, err := parseUint8("decimals", args[0])
			if err != nil {
				return err
			}
			supply, err := parseUint64("supply", args[1])
			if err != nil {
				return err
			}

			res, err := a.Service.CreateToken(ctx, decimals, supply)
			if err != nil {
				return err
			}
			printToken(cmd, res)
			return nil
		}),
	}
}

func (c *cli) mintTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mint-tokens <mint> <amount>",
		Short: "Mint tokens to the payer",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			mint, err := a.Profile.Mint(args[0])
			if err != nil {
				return err
			}
			amount, err := parseUint64("amount", args[1])
			if err != nil {
				return err
			}

			res, err := a.Service.MintTokens(ctx, mint, amount)
			if err != nil {
				return err
			}
			printToken(cmd, res)
			return nil
		}),
	}
}

func (c *cli) transferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <mint> <amount> <destination>",
		Short: "Transfer tokens from the payer to the destination owner",
		Args:  cobra.ExactArgs(3),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			mint, err := a.Profile.Mint(args[0])
			if err != nil {
				return err
			}
			amount, err := parseUint64("amount", args[1])
			if err != nil {
				return err
			}
			destination, err := parseKey("destination", args[2])
			if err != nil {
				return err
			}

			res, err := a.Service.Transfer(ctx, mint, amount, destination)
			if err != nil {
				return err
			}
			printToken(cmd, res)
			return nil
		}),
	}
}

func (c *cli) createAtaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-ata <mint> <owner>",
		Short: "Create the associated token account of owner",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			mint, err := a.Profile.Mint(args[0])
			if err != nil {
				return err
			}
			owner, err := parseKey("owner", args[1])
			if err != nil {
				return err
			}

			res, err := a.Service.CreateAta(ctx, mint, owner)
			if err != nil {
				return err
			}
			if res.Result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Account already exists")
			}
			printToken(cmd, res)
			return nil
		}),
	}
}

func (c *cli) mintNftCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mint-nft <destination>",
		Short: "Create a 0 decimals mint and mint a single token to destination",
		Long: "Create a 0 decimals mint owned by the payer, create the destination's " +
			"associated token account and mint exactly one token into it. No metadata " +
			"account is created.",
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			destination, err := parseKey("destination", args[0])
			if err != nil {
				return err
			}

			res, err := a.Service.MintNft(ctx, destination)
			if err != nil {
				return err
			}
			printToken(cmd, res)
			return nil
		}),
	}
}
