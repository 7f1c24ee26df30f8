package mcpsession_test

import (
	"context"
	"testing"

	"github.com/mcpli/mcpli/internal/mcpsession"
	"github.com/stretchr/testify/assert"
)

func TestSession_ZeroValueOperationsFailWithoutConnect(t *testing.T) {
	var s mcpsession.Session

	_, err := s.ListTools(context.Background())
	assert.Error(t, err)

	_, err = s.CallTool(context.Background(), "anything", nil)
	assert.Error(t, err)

	assert.NoError(t, s.Close())
}

func TestConnect_FailsForNonExistentCommand(t *testing.T) {
	_, err := mcpsession.Connect(context.Background(), "/nonexistent/mcpli-test-binary", nil, nil)
	assert.Error(t, err)
}
