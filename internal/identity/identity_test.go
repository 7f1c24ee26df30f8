package identity_test

import (
	"testing"

	"github.com/mcpli/mcpli/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1 from spec.md §8: identity is stable and order-independent in env.
func TestComputeID_OrderIndependentEnv(t *testing.T) {
	a := identity.ComputeID("/usr/bin/node", []string{"/tmp/server.js"}, identity.NormalizeEnv(map[string]string{"B": "2", "A": "1"}))
	b := identity.ComputeID("/usr/bin/node", []string{"/tmp/server.js"}, identity.NormalizeEnv(map[string]string{"A": "1", "B": "2"}))
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
	assert.True(t, identity.ValidID(a))
}

func TestComputeID_DifferentInputsDifferentIDs(t *testing.T) {
	a := identity.ComputeID("/usr/bin/node", []string{"/tmp/server.js"}, nil)
	b := identity.ComputeID("/usr/bin/node", []string{"/tmp/other.js"}, nil)
	assert.NotEqual(t, a, b)
}

func TestComputeID_EmptyArgsAndEnv(t *testing.T) {
	id := identity.ComputeID("node", []string{}, map[string]string{})
	assert.True(t, identity.ValidID(id))
}

func TestNormalizeArgs_DropsEmptyPreservesOrder(t *testing.T) {
	got := identity.NormalizeArgs([]string{" a ", "", "b", "  "})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestNormalizeCommand_BareNameUnchanged(t *testing.T) {
	got, err := identity.NormalizeCommand("node")
	require.NoError(t, err)
	assert.Equal(t, "node", got)
}

func TestNormalizeCommand_PathLikeResolved(t *testing.T) {
	got, err := identity.NormalizeCommand("./server.js")
	require.NoError(t, err)
	assert.True(t, len(got) > 0)
	assert.NotEqual(t, "./server.js", got)
}

func TestNormalizeCommand_EmptyRejected(t *testing.T) {
	_, err := identity.NormalizeCommand("")
	assert.Error(t, err)
}

func TestValidID(t *testing.T) {
	assert.True(t, identity.ValidID("abc123XY"))
	assert.True(t, identity.ValidID("a"))
	assert.False(t, identity.ValidID(""))
	assert.False(t, identity.ValidID("has/slash"))
	assert.False(t, identity.ValidID("has space"))
}

func TestNew_IsDeterministic(t *testing.T) {
	env := map[string]string{"FOO": "bar"}
	id1, err := identity.New("node", []string{"x.js"}, env)
	require.NoError(t, err)
	id2, err := identity.New("node", []string{"x.js"}, env)
	require.NoError(t, err)
	assert.Equal(t, id1.ID, id2.ID)
}
