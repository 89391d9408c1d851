package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorahub/lootbox-client/pkg/config"
	"github.com/agorahub/lootbox-client/pkg/config/memory"
)

// exercise walks a wrapper through default, override, failing, cleared
// and unsupported source states.
func exercise[T any](t *testing.T, newWrapper func(config.Config, T) config.Value[T], defaultValue, override T, raw interface{}, unsupported interface{}) {
	ctx := context.Background()
	mock := memory.NewConfig(nil)
	w := newWrapper(mock, defaultValue)

	val, err := w.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)

	mock.SetValue(raw)
	val, err = w.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, override, val)
	assert.Equal(t, override, w.Get(ctx))

	mock.SetError(errors.New("unavailable"))
	val, err = w.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, override, val)

	mock.SetError(nil)
	mock.SetValue(nil)
	val, err = w.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)

	mock.SetValue(unsupported)
	val, err = w.GetSafe(ctx)
	assert.Equal(t, ErrUnsuportedConversion, err)
	assert.Equal(t, defaultValue, val)

	w.Shutdown()
	_, err = w.GetSafe(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}

func TestBoolConfig(t *testing.T) {
	exercise(t, NewBoolConfig, true, false, []byte("false"), 1.5)
	exercise(t, NewBoolConfig, false, true, true, "yes")
}

func TestUint64Config(t *testing.T) {
	exercise(t, NewUint64Config, 28, 10, []byte("10"), "10")
	exercise(t, NewUint64Config, 28, 12, uint64(12), -1)
	exercise(t, NewUint64Config, 28, 7, 7, 1.5)
}

func TestStringConfig(t *testing.T) {
	exercise(t, NewStringConfig, "confirmed", "finalized", []byte("finalized"), 42)
	exercise(t, NewStringConfig, "confirmed", "processed", "processed", 42)
}

func TestDurationConfig(t *testing.T) {
	exercise(t, NewDurationConfig, time.Second, 2*time.Minute, []byte("2m"), "2m")
	exercise(t, NewDurationConfig, time.Second, time.Hour, time.Hour, 60)
}

func TestUint64Config_ParseFailureKeepsLastValue(t *testing.T) {
	ctx := context.Background()
	mock := memory.NewConfig([]byte("5"))
	w := NewUint64Config(mock, 28)
	assert.EqualValues(t, 5, w.Get(ctx))

	mock.SetValue([]byte("not a number"))
	val, err := w.GetSafe(ctx)
	assert.Error(t, err)
	assert.EqualValues(t, 5, val)
}
