// Package protocol defines the wire schema between client and server. Both
// directions use a single flat envelope with a type tag; unused fields are
// omitted. Game-state snapshots are opaque blobs the server relays without
// inspecting.
package protocol

import (
	"encoding/json"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/game"
)

// Client -> Server command types.
const (
	CmdCreateRoom   = "create_room"
	CmdJoinRoom     = "join_room"
	CmdLeaveRoom    = "leave_room"
	CmdGetRoomList  = "get_room_list"
	CmdSetReady     = "set_ready"
	CmdStartGame    = "start_game"
	CmdGameUpdate   = "game_update"
	CmdSendAttack   = "send_attack"
	CmdGameFinished = "game_finished"
	CmdQuickMatch   = "quick_match"
	CmdCancelMatch  = "cancel_match"
	CmdChatMessage  = "chat_message"
)

type Command struct {
	Type      string          `json:"type"`
	Name      string          `json:"name,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	User      *game.User      `json:"user,omitempty"`
	IsReady   bool            `json:"isReady,omitempty"`
	Lines     int             `json:"lines,omitempty"`
	Score     int             `json:"score,omitempty"`
	Message   string          `json:"message,omitempty"`
	GameState json.RawMessage `json:"gameState,omitempty"`
}

// Server -> Client event types.
const (
	EvtRoomCreated        = "room_created"
	EvtRoomJoined         = "room_joined"
	EvtRoomLeft           = "room_left"
	EvtPlayerJoined       = "player_joined"
	EvtPlayerLeft         = "player_left"
	EvtRoomList           = "room_list"
	EvtPlayerReadyChanged = "player_ready_changed"
	EvtGameStarted        = "game_started"
	EvtGameUpdate         = "game_update"
	EvtAttackReceived     = "attack_received"
	EvtGameEnded          = "game_ended"
	EvtChatMessage        = "chat_message"
	EvtMatchFound         = "match_found"
	EvtMatchSearching     = "match_searching"
	EvtMatchCancelled     = "match_cancelled"
	EvtError              = "error"
)

type Event struct {
	Type      string          `json:"type"`
	Room      *game.Room      `json:"room,omitempty"`
	Rooms     []game.Summary  `json:"rooms,omitempty"`
	Player    *game.Player    `json:"player,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	IsReady   bool            `json:"isReady,omitempty"`
	StartTime int64           `json:"startTime,omitempty"`
	GameState json.RawMessage `json:"gameState,omitempty"`
	Lines     int             `json:"lines,omitempty"`
	From      *game.User      `json:"fromPlayer,omitempty"`
	Winner    *game.Player    `json:"winner,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Error     string          `json:"error,omitempty"`
}
