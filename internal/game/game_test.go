package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGarbageLines(t *testing.T) {
	cases := []struct {
		cleared int
		want    int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 4},
		{5, 4},
		{8, 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GarbageLines(tc.cleared), "cleared=%d", tc.cleared)
	}
}

func TestNewRoom(t *testing.T) {
	host := NewPlayer("c1", User{ID: "u1", Name: "alice"})
	r := NewRoom("ABC123", "alice's room", host)

	assert.Equal(t, "c1", r.HostID)
	assert.True(t, r.Players[0].IsHost)
	assert.Equal(t, RoomWaiting, r.GameStatus)
	assert.Equal(t, MaxPlayers, r.MaxPlayers)
	assert.NotNil(t, r.Spectators)
	assert.Empty(t, r.Spectators)
}

func TestRoomCapacity(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))
	assert.True(t, r.IsFull())

	err := r.AddPlayer(NewPlayer("c3", User{ID: "u3"}))
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Len(t, r.Players, MaxPlayers)
}

func TestRemovePlayer_HostTransfer(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))

	require.True(t, r.RemovePlayer("c1"))
	require.Len(t, r.Players, 1)
	assert.Equal(t, "c2", r.HostID)
	assert.True(t, r.Players[0].IsHost)
}

func TestRemovePlayer_GuestLeavesHostStays(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))

	require.True(t, r.RemovePlayer("c2"))
	assert.Equal(t, "c1", r.HostID)
	assert.False(t, r.RemovePlayer("c2"), "second removal is a no-op")
}

func TestAllReady(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	assert.False(t, r.AllReady(), "room below capacity is never ready")

	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))
	assert.False(t, r.AllReady())

	r.Players[0].IsReady = true
	assert.False(t, r.AllReady())

	r.Players[1].IsReady = true
	assert.True(t, r.AllReady())
}

func TestWinner_StrictMax(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))
	r.Players[0].Score = 3000
	r.Players[1].Score = 5000

	assert.Equal(t, "c2", r.Winner().ID)
}

func TestWinner_TieKeepsEarlierPlayer(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))
	r.Players[0].Score = 4000
	r.Players[1].Score = 4000

	assert.Equal(t, "c1", r.Winner().ID)
}

func TestAllFinished(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	require.NoError(t, r.AddPlayer(NewPlayer("c2", User{ID: "u2"})))
	assert.False(t, r.AllFinished())

	r.Players[0].Status = PlayerFinished
	assert.False(t, r.AllFinished())

	r.Players[1].Status = PlayerFinished
	assert.True(t, r.AllFinished())
}

func TestClone_Independent(t *testing.T) {
	r := NewRoom("ABC123", "room", NewPlayer("c1", User{ID: "u1"}))
	c := r.Clone()

	c.Players[0].IsReady = true
	c.GameStatus = RoomPlaying

	assert.False(t, r.Players[0].IsReady)
	assert.Equal(t, RoomWaiting, r.GameStatus)
}

func TestNewRoomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewRoomCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeCharset, ch))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes should not repeat constantly")
}
