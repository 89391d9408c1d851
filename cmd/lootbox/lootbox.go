package main

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/agorahub/lootbox-client/pkg/app"
	"github.com/agorahub/lootbox-client/pkg/lootbox"
	"github.com/agorahub/lootbox-client/pkg/lootbox/command"
)

func (c *cli) buyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <mint>",
		Short: "Buy a batch of tickets paying in mint",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			mint, err := a.Profile.Mint(args[0])
			if err != nil {
				return err
			}

			res, err := a.Service.Buy(ctx, mint)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printResult(w, res.Result)
			fmt.Fprintf(w, "Paid: %d %s\n", res.Total, mintName(a.Profile, mint))
			for _, ticket := range res.Tickets {
				fmt.Fprintf(w, "Ticket: %s\n", base58.Encode(ticket))
			}
			if res.State != nil {
				fmt.Fprintf(w, "Supply: %d / %d\n", res.State.TotalSupply, res.State.MaxSupply)
			}
			return nil
		}),
	}
}

func (c *cli) initCommand() *cobra.Command {
	var (
		beginTs, endTs uint32
		signer         string
		prices         []string
	)

	cmd := &cobra.Command{
		Use:   "init <max-supply> <name> <base-url>",
		Short: "Initialize the profile's lootbox",
		Args:  cobra.ExactArgs(3),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			maxSupply, err := parseUint32("max supply", args[0])
			if err != nil {
				return err
			}

			req := command.InitializeRequest{
				MaxSupply: maxSupply,
				BeginTs:   beginTs,
				EndTs:     endTs,
				Name:      args[1],
				BaseUrl:   args[2],
			}
			if signer != "" {
				if req.Signer, err = lootbox.ParseSignerKey(signer); err != nil {
					return err
				}
			}
			for _, p := range prices {
				mint, amount, err := parseTokenAmount(a.Profile, p)
				if err != nil {
					return err
				}
				req.Prices = append(req.Prices, command.PriceRequest{Mint: mint, Amount: amount})
			}

			view, err := a.Service.Initialize(ctx, req)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), a.Profile, view)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.Uint32Var(&beginTs, "begin", 0, "sale start unix timestamp")
	flags.Uint32Var(&endTs, "end", 0, "sale end unix timestamp")
	flags.StringVar(&signer, "signer", "", "compressed secp256k1 signer key in hex (defaults to the profile signer)")
	flags.StringArrayVar(&prices, "price", nil, "ticket price as <mint>=<amount>, repeatable")
	return cmd
}

func (c *cli) withdrawCommand() *cobra.Command {
	var tickets, rewards []string

	cmd := &cobra.Command{
		Use:   "withdraw <expire-at> <signature>",
		Short: "Withdraw ticket NFTs and token rewards with a backend signature",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			expireAt, err := parseUint32("expire at", args[0])
			if err != nil {
				return err
			}

			req := command.WithdrawRequest{
				ExpireAt:  expireAt,
				Signature: args[1],
			}
			for _, t := range tickets {
				mint, err := parseKey("ticket mint", t)
				if err != nil {
					return err
				}
				req.TicketMints = append(req.TicketMints, mint)
			}
			for _, r := range rewards {
				mint, amount, err := parseTokenAmount(a.Profile, r)
				if err != nil {
					return err
				}
				req.Rewards = append(req.Rewards, command.RewardRequest{Mint: mint, Amount: amount})
			}

			res, err := a.Service.Withdraw(ctx, req)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&tickets, "ticket", nil, "ticket NFT mint to withdraw, repeatable")
	flags.StringArrayVar(&rewards, "reward", nil, "token reward as <mint>=<amount>, repeatable")
	return cmd
}

func (c *cli) obtainTicketCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "obtain-ticket <ticket-id> <expire-at> <signature>",
		Short: "Mint a ticket NFT with a backend signature",
		Args:  cobra.ExactArgs(3),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			ticketId, err := parseUint32("ticket id", args[0])
			if err != nil {
				return err
			}
			expireAt, err := parseUint32("expire at", args[1])
			if err != nil {
				return err
			}

			res, err := a.Service.ObtainTicket(ctx, ticketId, expireAt, args[2])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printResult(w, res.Result)
			fmt.Fprintf(w, "Mint: %s\n", base58.Encode(res.Mint))
			fmt.Fprintf(w, "Account: %s\n", base58.Encode(res.DestinationAccount))
			return nil
		}),
	}
}

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the state account to the latest layout",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			view, err := a.Service.Migrate(ctx)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), a.Profile, view)
			return nil
		}),
	}
}

func (c *cli) getStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-state",
		Short: "Print the lootbox state",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			view, err := a.Service.GetState(ctx)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), a.Profile, view)
			return nil
		}),
	}
}

func (c *cli) adminWithdrawCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "admin-withdraw <mint> <amount>",
		Short: "Withdraw vault funds to the admin",
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

			res, err := a.Service.AdminWithdraw(ctx, mint, amount)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		}),
	}
}

func (c *cli) updateStateCommand() *cobra.Command {
	var (
		maxSupply, beginTs, endTs uint32
		price                     string
	)

	cmd := &cobra.Command{
		Use:   "update-state",
		Short: "Change the supply, sale window or a price of the lootbox",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			var params lootbox.UpdateStateParams

			flags := cmd.Flags()
			if flags.Changed("max-supply") {
				params.MaxSupply = &maxSupply
			}
			if flags.Changed("begin") {
				params.BeginTs = &beginTs
			}
			if flags.Changed("end") {
				params.EndTs = &endTs
			}
			if flags.Changed("price") {
				mint, amount, err := parseTokenAmount(a.Profile, price)
				if err != nil {
					return err
				}
				params.Price = &lootbox.PriceUpdate{Mint: mint, Amount: amount}
			}
			if params.MaxSupply == nil && params.BeginTs == nil && params.EndTs == nil && params.Price == nil {
				return errors.Wrap(errInvalidArgument, "nothing to update")
			}

			view, err := a.Service.UpdateState(ctx, params)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), a.Profile, view)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.Uint32Var(&maxSupply, "max-supply", 0, "new max supply")
	flags.Uint32Var(&beginTs, "begin", 0, "new sale start unix timestamp")
	flags.Uint32Var(&endTs, "end", 0, "new sale end unix timestamp")
	flags.StringVar(&price, "price", "", "new price as <mint>=<amount>")
	return cmd
}

func (c *cli) updatePriceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update-price <mint> <amount>",
		Short: "Set the ticket price in mint",
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

			view, err := a.Service.UpdatePrice(ctx, mint, amount)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), a.Profile, view)
			return nil
		}),
	}
}
