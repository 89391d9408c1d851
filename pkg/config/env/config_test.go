package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agorahub/lootbox-client/pkg/config"
)

func TestConfig(t *testing.T) {
	const env = "ENV_CONFIG_TEST_VAR"
	c := NewConfig("env_config_test_var")

	t.Setenv(env, "value")
	v, err := c.Get(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	// Later changes are observed by the same config.
	t.Setenv(env, "")
	v, err = c.Get(context.Background())
	assert.Nil(t, v)
	assert.Equal(t, config.ErrNoValue, err)
}

func TestTypedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv("ENV_TEST_BATCH", "12")
	t.Setenv("ENV_TEST_TIMEOUT", "90s")
	t.Setenv("ENV_TEST_ENABLED", "true")

	assert.EqualValues(t, 12, NewUint64Config("ENV_TEST_BATCH", 28).Get(ctx))
	assert.Equal(t, 90*time.Second, NewDurationConfig("ENV_TEST_TIMEOUT", time.Second).Get(ctx))
	assert.True(t, NewBoolConfig("ENV_TEST_ENABLED", false).Get(ctx))
	assert.Equal(t, "fallback", NewStringConfig("ENV_TEST_UNSET", "fallback").Get(ctx))
}
