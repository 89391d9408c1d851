package packer

import (
	"time"

	"github.com/agorahub/lootbox-client/pkg/config"
	"github.com/agorahub/lootbox-client/pkg/config/env"
	"github.com/agorahub/lootbox-client/pkg/config/memory"
	"github.com/agorahub/lootbox-client/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LOOTBOX_"

	AltBatchSizeConfigEnvName = envConfigPrefix + "ALT_BATCH_SIZE"
	defaultAltBatchSize       = maxAltBatchSize

	// maxAltBatchSize keeps a create and extend transaction under
	// solana.MaxTransactionSize.
	maxAltBatchSize = 28

	ConfirmCommitmentConfigEnvName = envConfigPrefix + "CONFIRM_COMMITMENT"
	defaultConfirmCommitment       = "confirmed"

	ConfirmTimeoutConfigEnvName = envConfigPrefix + "CONFIRM_TIMEOUT"
	defaultConfirmTimeout       = 90 * time.Second

	ConfirmPollIntervalConfigEnvName = envConfigPrefix + "CONFIRM_POLL_INTERVAL"
	defaultConfirmPollInterval       = 500 * time.Millisecond
)

type conf struct {
	altBatchSize        config.Uint64
	confirmCommitment   config.String
	confirmTimeout      config.Duration
	confirmPollInterval config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			altBatchSize:        env.NewUint64Config(AltBatchSizeConfigEnvName, defaultAltBatchSize),
			confirmCommitment:   env.NewStringConfig(ConfirmCommitmentConfigEnvName, defaultConfirmCommitment),
			confirmTimeout:      env.NewDurationConfig(ConfirmTimeoutConfigEnvName, defaultConfirmTimeout),
			confirmPollInterval: env.NewDurationConfig(ConfirmPollIntervalConfigEnvName, defaultConfirmPollInterval),
		}
	}
}

type testOverrides struct {
	altBatchSize        uint64
	confirmTimeout      time.Duration
	confirmPollInterval time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	batchSize := uint64(defaultAltBatchSize)
	if overrides.altBatchSize > 0 {
		batchSize = overrides.altBatchSize
	}
	timeout := time.Second
	if overrides.confirmTimeout > 0 {
		timeout = overrides.confirmTimeout
	}
	interval := time.Millisecond
	if overrides.confirmPollInterval > 0 {
		interval = overrides.confirmPollInterval
	}

	return func() *conf {
		return &conf{
			altBatchSize:        wrapper.NewUint64Config(memory.NewConfig(batchSize), batchSize),
			confirmCommitment:   wrapper.NewStringConfig(memory.NewConfig(defaultConfirmCommitment), defaultConfirmCommitment),
			confirmTimeout:      wrapper.NewDurationConfig(memory.NewConfig(timeout), timeout),
			confirmPollInterval: wrapper.NewDurationConfig(memory.NewConfig(interval), interval),
		}
	}
}
