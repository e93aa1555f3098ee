package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	assert.Len(t, id, 26)

	_, err := ulid.Parse(id)
	require.NoError(t, err)
}

func TestNewMessageIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
