package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("acme", "session-abc")
	sid, ok := r.SessionFor("acme")
	assert.True(t, ok)
	assert.Equal(t, "session-abc", sid)
}

func TestSessionRegistry_NotFound(t *testing.T) {
	r := NewSessionRegistry()

	_, ok := r.SessionFor("unknown")
	assert.False(t, ok)
}

func TestSessionRegistry_Overwrite(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("acme", "session-old")
	r.Register("acme", "session-new")

	sid, ok := r.SessionFor("acme")
	assert.True(t, ok)
	assert.Equal(t, "session-new", sid)
}

func TestSessionRegistry_Remove(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("acme", "session-abc")
	r.Register("globex", "session-abc")
	r.Register("initech", "session-xyz")

	r.Remove("session-abc")

	_, ok := r.SessionFor("acme")
	assert.False(t, ok, "acme should be removed")

	_, ok = r.SessionFor("globex")
	assert.False(t, ok, "globex should be removed")

	sid, ok := r.SessionFor("initech")
	assert.True(t, ok, "initech should still exist")
	assert.Equal(t, "session-xyz", sid)
}

func TestSessionRegistry_Organizations(t *testing.T) {
	r := NewSessionRegistry()

	assert.Empty(t, r.Organizations())

	r.Register("acme", "session-1")
	r.Register("globex", "session-2")

	orgs := r.Organizations()
	assert.Len(t, orgs, 2)
	assert.Contains(t, orgs, "acme")
	assert.Contains(t, orgs, "globex")
}
