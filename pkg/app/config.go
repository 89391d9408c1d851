package app

import (
	"github.com/spf13/viper"

	"github.com/agorahub/lootbox-client/pkg/lootbox/profile"
	"github.com/agorahub/lootbox-client/pkg/lootbox/secrets"
)

const (
	DefaultConfigPath = "lootbox.yaml"
	DefaultEnvPath    = ".env"
	DefaultLedgerPath = ".lootbox/alt.db"
)

// Config is the CLI configuration, read from an optional config file and
// the environment.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Profile selects the deployment, see profile.Resolve.
	Profile string `mapstructure:"profile"`

	SecretsPath string `mapstructure:"secrets_path"`
	LedgerPath  string `mapstructure:"ledger_path"`

	// RPCEndpoint overrides the profile's QuickNode endpoint.
	RPCEndpoint string `mapstructure:"rpc_endpoint"`

	// RPCRateLimit is the number of requests per second allowed for each RPC
	// method. Zero disables limiting.
	RPCRateLimit float64 `mapstructure:"rpc_rate_limit"`
}

var defaultConfig = Config{
	LogLevel:  "info",
	LogFormat: "text",

	SecretsPath: secrets.DefaultPath,
	LedgerPath:  DefaultLedgerPath,

	RPCRateLimit: 10,
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")

	_ = v.BindEnv("profile", profile.EnvName)

	_ = v.BindEnv("secrets_path", "LOOTBOX_SECRETS_PATH")
	_ = v.BindEnv("ledger_path", "LOOTBOX_LEDGER_PATH")

	_ = v.BindEnv("rpc_endpoint", "LOOTBOX_RPC_ENDPOINT")
	_ = v.BindEnv("rpc_rate_limit", "LOOTBOX_RPC_RATE_LIMIT")
}
