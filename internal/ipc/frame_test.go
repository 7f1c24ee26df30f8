package ipc_test

import (
	"testing"

	"github.com/mcpli/mcpli/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_ValidPing(t *testing.T) {
	req, err := ipc.DecodeRequest([]byte(`{"id":"r1","method":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", req.ID)
	assert.Equal(t, ipc.MethodPing, req.Method)
}

func TestDecodeRequest_RejectsUnknownMethod(t *testing.T) {
	_, err := ipc.DecodeRequest([]byte(`{"id":"r1","method":"bogus"}`))
	assert.Error(t, err)
}

func TestDecodeRequest_RejectsMissingID(t *testing.T) {
	_, err := ipc.DecodeRequest([]byte(`{"method":"ping"}`))
	assert.Error(t, err)
}

func TestDecodeRequest_RejectsMalformedJSON(t *testing.T) {
	_, err := ipc.DecodeRequest([]byte(`{not json`))
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	data, err := ipc.Encode(ipc.OK("r1", "pong"))
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	req, err := ipc.DecodeRequest([]byte(`{"id":"r2","method":"listTools"}`))
	require.NoError(t, err)
	assert.Equal(t, ipc.MethodListTools, req.Method)
}

func TestOKAndErr(t *testing.T) {
	ok := ipc.OK("r1", map[string]string{"a": "b"})
	assert.Empty(t, ok.Error)

	failed := ipc.Err("r1", "boom")
	assert.Equal(t, "boom", failed.Error)
	assert.Nil(t, failed.Result)
}
