package solana

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
)

func decodeJSON(t *testing.T, s string) interface{} {
	var raw interface{}
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(s)).Decode(&raw))
	return raw
}

func TestParseTransactionError(t *testing.T) {
	e, err := ParseTransactionError(decodeJSON(t, `{"InstructionError":[2,{"Custom":3}]}`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	require.NotNil(t, e.InstructionError())
	assert.Equal(t, 2, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, e.InstructionError().ErrorKey())
	require.NotNil(t, e.InstructionError().CustomError())
	assert.Equal(t, CustomError(3), *e.InstructionError().CustomError())

	e, err = ParseTransactionError(decodeJSON(t, `{"InstructionError":[0,"InvalidArgument"]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorInvalidArgument, e.InstructionError().ErrorKey())

	e, err = ParseTransactionError(decodeJSON(t, `"BlockhashNotFound"`))
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorBlockhashNotFound, e.ErrorKey())
	assert.Nil(t, e.InstructionError())

	e, err = ParseTransactionError(nil)
	assert.NoError(t, err)
	assert.Nil(t, e)

	_, err = ParseTransactionError(decodeJSON(t, `{"a":1,"b":2}`))
	assert.Error(t, err)
}

func TestParseRPCError_Logs(t *testing.T) {
	rpcErr := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data:    decodeJSON(t, `{"err":{"InstructionError":[1,{"Custom":6001}]},"logs":["Program log: start","Program log: sold out"]}`),
	}

	e, err := ParseRPCError(rpcErr)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, CustomError(6001), *e.InstructionError().CustomError())
	assert.Equal(t, []string{"Program log: start", "Program log: sold out"}, e.Logs())

	e, err = ParseRPCError(&jsonrpc.RPCError{Code: -32005, Data: decodeJSON(t, `{"numSlotsBehind":10}`)})
	assert.NoError(t, err)
	assert.Nil(t, e)

	_, err = ParseRPCError(&jsonrpc.RPCError{Code: -32005})
	assert.Error(t, err)
}

func TestNewCustomInstructionError(t *testing.T) {
	e := NewCustomInstructionError(3, 7)
	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	assert.Equal(t, 3, e.InstructionError().Index)
	assert.Equal(t, CustomError(7), *e.InstructionError().CustomError())

	encoded, err := e.JSONString()
	require.NoError(t, err)
	parsed, err := ParseTransactionError(decodeJSON(t, encoded))
	require.NoError(t, err)
	assert.Equal(t, e.Error(), parsed.Error())

	assert.Equal(t, `"DuplicateSignature"`, func() string {
		s, _ := NewTransactionError(TransactionErrorDuplicateSignature).JSONString()
		return s
	}())
}

func TestParseJSONNumber(t *testing.T) {
	for i, c := range []interface{}{"1", 1.0, json.Number("1")} {
		v, err := parseJSONNumber(c)
		assert.NoError(t, err)
		assert.Equal(t, 1, v, i)
	}
	_, err := parseJSONNumber(true)
	assert.Error(t, err)
}
