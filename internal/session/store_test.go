package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura-farm-transformer/internal/styles"
)

func TestGetCreatesWithDefaults(t *testing.T) {
	s := NewStore()

	state := s.Get("client-1")
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, styles.Ghibli, state.Style)
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, "1024x1024", state.Size)
	assert.Empty(t, state.APIKey)

	again := s.Get("client-1")
	assert.Equal(t, state.ID, again.ID)

	other := s.Get("client-2")
	assert.NotEqual(t, state.ID, other.ID)
}

func TestUpdateMutatesAndReturnsCopy(t *testing.T) {
	s := NewStore()

	state := s.Update("client", func(st *State) {
		st.APIKey = "sk-test"
		st.Style = styles.Minecraft
		st.Images = []string{"https://img.test/1"}
	})
	require.Equal(t, []string{"https://img.test/1"}, state.Images)

	// Mutating the returned copy must not leak into the store.
	state.Images[0] = "tampered"
	assert.Equal(t, []string{"https://img.test/1"}, s.Get("client").Images)
	assert.Equal(t, "sk-test", s.Get("client").APIKey)
}

func TestResetKeepsIdentifier(t *testing.T) {
	s := NewStore()

	before := s.Update("client", func(st *State) {
		st.APIKey = "sk-test"
		st.Images = []string{"url"}
	})

	after := s.Reset("client")
	assert.Equal(t, before.ID, after.ID)
	assert.Empty(t, after.APIKey)
	assert.Empty(t, after.Images)
	assert.Equal(t, styles.Ghibli, after.Style)
}
