package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agorahub/lootbox-client/pkg/app"
	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
)

type cli struct {
	configPath  string
	envPath     string
	secretsPath string
	profile     string
	ledgerPath  string

	config app.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "lootbox",
		Short: "Lootbox program client",
		Long:  "Build, sign and submit lootbox program transactions and manage the keys and lookup tables behind them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are valid by now, so failures below are not usage errors.
			cmd.SilenceUsage = true
			return c.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", app.DefaultConfigPath, "configuration file path")
	flags.StringVar(&c.envPath, "env", app.DefaultEnvPath, "dotenv file path")
	flags.StringVar(&c.secretsPath, "secrets", "", "secrets file path (overrides config)")
	flags.StringVar(&c.profile, "profile", "", "deployment profile: "+strings.Join(profile.Names(), ", ")+" (overrides "+profile.EnvName+")")
	flags.StringVar(&c.ledgerPath, "ledger", "", "lookup table ledger path (overrides config)")

	root.AddCommand(
		c.buyCommand(),
		c.initCommand(),
		c.withdrawCommand(),
		c.obtainTicketCommand(),
		c.migrateCommand(),
		c.getStateCommand(),
		c.adminWithdrawCommand(),
		c.updateStateCommand(),
		c.updatePriceCommand(),
		c.newAdminCommand(),
		c.newKeyCommand(),
		c.createTokenCommand(),
		c.mintTokensCommand(),
		c.transferCommand(),
		c.createAtaCommand(),
		c.mintNftCommand(),
		c.listAltCommand(),
		c.closeAltCommand(),
		c.unpackTxCommand(),
	)
	return root
}

func (c *cli) load() error {
	config, err := app.LoadConfig(c.configPath, c.envPath)
	if err != nil {
		return err
	}

	if c.secretsPath != "" {
		config.SecretsPath = c.secretsPath
	}
	if c.profile != "" {
		config.Profile = c.profile
	}
	if c.ledgerPath != "" {
		config.LedgerPath = c.ledgerPath
	}

	app.ConfigureLogger(config, os.Stderr)
	c.config = config
	return nil
}

// run wraps a command body that needs the full service graph.
func (c *cli) run(fn func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), c.config)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd.Context(), cmd, a, args)
	}
}
