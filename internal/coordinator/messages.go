package coordinator

import (
	"encoding/json"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/game"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/protocol"
)

// Msg is the coordinator's inbox message. Every mutation of room, registry,
// or queue state flows through exactly one of these.
type Msg interface{ isCoordMsg() }

// Register binds a fresh connection to its event outbox. The coordinator
// owns the outbox from here on and closes it when the connection goes away.
type Register struct {
	ConnID string
	Outbox chan protocol.Event
}

// Disconnect runs the same cleanup path as an explicit leave plus queue
// removal. A disconnect for an unknown or room-less connection is a no-op.
type Disconnect struct{ ConnID string }

type CreateRoom struct {
	ConnID string
	Name   string
	User   game.User
}

type JoinRoom struct {
	ConnID string
	RoomID string
	User   game.User
}

type LeaveRoom struct{ ConnID string }

type ListRooms struct{ ConnID string }

type SetReady struct {
	ConnID  string
	IsReady bool
}

type StartGame struct{ ConnID string }

type GameUpdate struct {
	ConnID   string
	Snapshot json.RawMessage
}

type SendAttack struct {
	ConnID string
	Lines  int
}

type GameFinished struct {
	ConnID string
	Score  int
}

type QuickMatch struct {
	ConnID string
	User   game.User
}

type CancelMatch struct{ ConnID string }

type Chat struct {
	ConnID  string
	Message string
}

// GetState reflects internal state without data races; used by the HTTP
// side-channel and tests.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Register) isCoordMsg()     {}
func (Disconnect) isCoordMsg()   {}
func (CreateRoom) isCoordMsg()   {}
func (JoinRoom) isCoordMsg()     {}
func (LeaveRoom) isCoordMsg()    {}
func (ListRooms) isCoordMsg()    {}
func (SetReady) isCoordMsg()     {}
func (StartGame) isCoordMsg()    {}
func (GameUpdate) isCoordMsg()   {}
func (SendAttack) isCoordMsg()   {}
func (GameFinished) isCoordMsg() {}
func (QuickMatch) isCoordMsg()   {}
func (CancelMatch) isCoordMsg()  {}
func (Chat) isCoordMsg()         {}
func (GetState) isCoordMsg()     {}
func (Shutdown) isCoordMsg()     {}

// View is a copied snapshot of coordinator state.
type View struct {
	NumConns  int
	NumQueued int
	Queue     []string
	Rooms     map[string]RoomView
	Summaries []game.Summary
}

type RoomView struct {
	Name      string
	HostID    string
	PlayerIDs []string
	Status    game.RoomStatus
}
