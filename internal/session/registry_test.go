package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sethcallen/harbinger/internal/client"
)

func TestBindIsExclusive(t *testing.T) {
	registry := NewRegistry()
	first := &client.Client{}
	second := &client.Client{}

	require.True(t, registry.Bind("alice", first))
	assert.False(t, registry.Bind("alice", second), "second Bind() for the same username should fail")

	bound, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, first, bound, "the first session should keep the username")
	assert.Equal(t, 1, registry.Count())
}

func TestUnbindOnlyReleasesHolder(t *testing.T) {
	registry := NewRegistry()
	holder := &client.Client{}
	intruder := &client.Client{}

	require.True(t, registry.Bind("alice", holder))

	// A session that never held the username cannot release it.
	registry.Unbind("alice", intruder)
	assert.True(t, registry.IsOnline("alice"))

	registry.Unbind("alice", holder)
	assert.False(t, registry.IsOnline("alice"))
	assert.Equal(t, 0, registry.Count())
}

func TestLookupUnknownUsername(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.Lookup("nobody")
	assert.False(t, ok)
}
