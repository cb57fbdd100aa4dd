package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorForID(t *testing.T) {
	t.Run("stable", func(t *testing.T) {
		assert.Equal(t, ColorForID("alice"), ColorForID("alice"))
	})

	t.Run("known values", func(t *testing.T) {
		// h accumulates (h*31 + codepoint) mod 360 per rune
		assert.Equal(t, "hsl(0 70% 50%)", ColorForID(""))
		assert.Equal(t, "hsl(97 70% 50%)", ColorForID("a"))
	})

	t.Run("hue stays in range", func(t *testing.T) {
		for _, id := range []string{"alice", "bob", "user-12345", "日本語", "x"} {
			var h int
			n, err := fmt.Sscanf(ColorForID(id), "hsl(%d 70%% 50%%)", &h)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			assert.GreaterOrEqual(t, h, 0)
			assert.Less(t, h, 360)
		}
	})
}

func TestRoomBump(t *testing.T) {
	room := newRoom("d1")
	assert.Equal(t, uint64(0), room.version)

	// First accepted change is stamped 1
	assert.Equal(t, uint64(1), room.bump())
	assert.Equal(t, uint64(2), room.bump())
	assert.Equal(t, uint64(3), room.bump())
}

func TestPresenceSnapshotIsACopy(t *testing.T) {
	room := newRoom("d1")
	room.presence["c1"] = PresenceEntry{ID: "alice", Name: "Alice"}

	snapshot := room.presenceSnapshot()
	require.Len(t, snapshot, 1)

	delete(room.presence, "c1")
	assert.Len(t, snapshot, 1, "snapshot must not alias the live roster")
}
