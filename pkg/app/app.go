// Package app loads the CLI configuration and wires the lootbox service
// graph: profile, secrets, RPC client, ALT ledger, packer and commands.
package app

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	xrate "golang.org/x/time/rate"

	sqliteutil "github.com/agorahub/lootbox-client/pkg/database/sqlite"
	"github.com/agorahub/lootbox-client/pkg/lootbox/command"
	"github.com/agorahub/lootbox-client/pkg/lootbox/data/alt"
	alt_sqlite "github.com/agorahub/lootbox-client/pkg/lootbox/data/alt/sqlite"
	"github.com/agorahub/lootbox-client/pkg/lootbox/packer"
	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
	"github.com/agorahub/lootbox-client/pkg/lootbox/secrets"
	"github.com/agorahub/lootbox-client/pkg/rate"
	"github.com/agorahub/lootbox-client/pkg/solana"
)

// LoadConfig reads the dotenv file at envPath and the config file at
// configPath, both optional, then applies the environment on top of the
// defaults.
func LoadConfig(configPath, envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return Config{}, errors.Wrapf(err, "failed to load %s", envPath)
		}
	}

	v := viper.New()
	bindEnv(v)

	// viper only reports ConfigFileNotFoundError when searching for a file,
	// so an explicit path is checked here.
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrapf(err, "failed to load config %s", configPath)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, nil
}

// ConfigureLogger sets up the standard logger. Log output goes to w so
// command results on stdout stay parseable.
func ConfigureLogger(config Config, w io.Writer) {
	switch strings.ToLower(config.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(w)
}

// App holds the components behind every CLI command.
type App struct {
	Config  Config
	Profile *profile.Profile
	Secrets *secrets.Secrets
	Solana  solana.Client
	Ledger  alt.Store
	Packer  *packer.Packer
	Service *command.Service

	db *sqlx.DB
}

// New builds the service graph for config. The caller must Close the App.
func New(ctx context.Context, config Config) (*App, error) {
	log := logrus.StandardLogger().WithField("type", "app")

	prof, err := profile.Get(config.Profile)
	if err != nil {
		return nil, err
	}

	s, err := secrets.Load(config.SecretsPath)
	if err != nil {
		return nil, err
	}

	endpoint := config.RPCEndpoint
	if endpoint == "" {
		if s.QuickNodeKey == "" {
			log.WithField("cluster", string(prof.Cluster)).Warn("no quick node key, using the public cluster endpoint")
		}
		endpoint = prof.Endpoint(s.QuickNodeKey)
	}

	var opts []solana.Option
	if config.RPCRateLimit > 0 {
		opts = append(opts, solana.WithRateLimiter(rate.NewLocalRateLimiter(xrate.Limit(config.RPCRateLimit))))
	}
	sc := solana.New(endpoint, opts...)

	db, err := sqliteutil.Open(config.LedgerPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open alt ledger")
	}

	ledger, err := alt_sqlite.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize alt ledger")
	}

	p := packer.New(sc, ledger, packer.WithEnvConfigs())

	service := command.New(
		sc,
		p,
		ledger,
		prof,
		command.Keys{Payer: s.Payer, Admin: s.Admin},
		command.WithSecretsPath(config.SecretsPath),
	)

	log.WithFields(logrus.Fields{
		"profile": prof.Name,
		"program": base58.Encode(prof.Program),
		"ledger":  config.LedgerPath,
	}).Debug("app initialized")

	return &App{
		Config:  config,
		Profile: prof,
		Secrets: s,
		Solana:  sc,
		Ledger:  ledger,
		Packer:  p,
		Service: service,
		db:      db,
	}, nil
}

// Close releases the ledger database.
func (a *App) Close() error {
	return a.db.Close()
}
