// Package client holds the reconciler that runs inside each client process.
// It projects server events into a local view of the room, the local player,
// and the opponent, and is the only writer translating local game-engine
// output into outbound commands. It never infers state the server did not
// send.
package client

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/game"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/protocol"
)

// SendFunc delivers one command to the server over whatever transport the
// client process uses.
type SendFunc func(protocol.Command) error

// Callbacks are optional hooks for the UI layer. All fire while the
// reconciler lock is held, so they must not call back into the reconciler.
type Callbacks struct {
	OnGameStarted    func(startTime time.Time)
	OnOpponentUpdate func(snapshot json.RawMessage)
	OnAttack         func(lines int, from game.User)
	OnGameEnded      func(winner game.Player)
	OnChat           func(sender, message string, at time.Time)
	OnError          func(message string)
}

type Reconciler struct {
	mu     sync.Mutex
	user   game.User
	send   SendFunc
	logger *zap.Logger
	cb     Callbacks

	room      *game.Room
	self      *game.Player
	opponent  *game.Player
	roomList  []game.Summary
	winner    *game.Player
	searching bool
}

func New(user game.User, send SendFunc, logger *zap.Logger, cb Callbacks) *Reconciler {
	return &Reconciler{user: user, send: send, logger: logger, cb: cb}
}

// Apply consumes one server event. Events must be applied in the order
// received; the server guarantees per-sender ordering.
func (r *Reconciler) Apply(ev protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case protocol.EvtRoomCreated, protocol.EvtRoomJoined:
		r.setRoom(ev.Room)

	case protocol.EvtMatchFound:
		r.searching = false
		r.setRoom(ev.Room)

	case protocol.EvtPlayerJoined, protocol.EvtPlayerLeft:
		// Membership changed: rebuild self/opponent from the full list
		// rather than patching, so the projection cannot drift.
		r.setRoom(ev.Room)

	case protocol.EvtRoomLeft:
		r.room = nil
		r.self = nil
		r.opponent = nil
		r.winner = nil

	case protocol.EvtPlayerReadyChanged:
		if r.room == nil {
			return
		}
		if p := r.room.Player(ev.PlayerID); p != nil {
			p.IsReady = ev.IsReady
		}

	case protocol.EvtGameStarted:
		if r.room == nil {
			return
		}
		r.room.GameStatus = game.RoomPlaying
		for _, p := range r.room.Players {
			p.Status = game.PlayerPlaying
		}
		if r.cb.OnGameStarted != nil {
			r.cb.OnGameStarted(time.UnixMilli(ev.StartTime))
		}

	case protocol.EvtGameUpdate:
		if r.room == nil {
			return
		}
		if p := r.room.Player(ev.PlayerID); p != nil {
			p.GameState = ev.GameState
		}
		if r.opponent != nil && r.opponent.ID == ev.PlayerID && r.cb.OnOpponentUpdate != nil {
			r.cb.OnOpponentUpdate(ev.GameState)
		}

	case protocol.EvtAttackReceived:
		if r.cb.OnAttack != nil {
			from := game.User{}
			if ev.From != nil {
				from = *ev.From
			}
			r.cb.OnAttack(ev.Lines, from)
		}

	case protocol.EvtGameEnded:
		if r.room != nil {
			r.room.GameStatus = game.RoomFinished
		}
		r.winner = ev.Winner
		if r.cb.OnGameEnded != nil && ev.Winner != nil {
			r.cb.OnGameEnded(*ev.Winner)
		}

	case protocol.EvtChatMessage:
		if r.cb.OnChat != nil {
			r.cb.OnChat(ev.Sender, ev.Message, time.UnixMilli(ev.Timestamp))
		}

	case protocol.EvtRoomList:
		r.roomList = ev.Rooms

	case protocol.EvtMatchSearching:
		r.searching = true

	case protocol.EvtMatchCancelled:
		r.searching = false

	case protocol.EvtError:
		if r.logger != nil {
			r.logger.Warn("server error", zap.String("message", ev.Error))
		}
		if r.cb.OnError != nil {
			r.cb.OnError(ev.Error)
		}
	}
}

// setRoom replaces the room projection and recomputes self and opponent by
// excluding the local user id from the player list.
func (r *Reconciler) setRoom(room *game.Room) {
	r.room = room
	r.self = nil
	r.opponent = nil
	if room == nil {
		return
	}
	for _, p := range room.Players {
		if p.User.ID == r.user.ID {
			r.self = p
		} else if r.opponent == nil {
			r.opponent = p
		}
	}
}

// Snapshot accessors, safe for a UI goroutine.

func (r *Reconciler) Room() *game.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.room == nil {
		return nil
	}
	return r.room.Clone()
}

func (r *Reconciler) Self() *game.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyPlayer(r.self)
}

func (r *Reconciler) Opponent() *game.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyPlayer(r.opponent)
}

func (r *Reconciler) Winner() *game.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyPlayer(r.winner)
}

func (r *Reconciler) Searching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searching
}

func (r *Reconciler) RoomList() []game.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]game.Summary(nil), r.roomList...)
}

func copyPlayer(p *game.Player) *game.Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Outbound commands.

func (r *Reconciler) CreateRoom(name string) error {
	return r.send(protocol.Command{Type: protocol.CmdCreateRoom, Name: name, User: &r.user})
}

func (r *Reconciler) JoinRoom(roomID string) error {
	return r.send(protocol.Command{Type: protocol.CmdJoinRoom, RoomID: roomID, User: &r.user})
}

func (r *Reconciler) LeaveRoom() error {
	return r.send(protocol.Command{Type: protocol.CmdLeaveRoom})
}

func (r *Reconciler) RequestRoomList() error {
	return r.send(protocol.Command{Type: protocol.CmdGetRoomList})
}

func (r *Reconciler) SetReady(ready bool) error {
	return r.send(protocol.Command{Type: protocol.CmdSetReady, IsReady: ready})
}

func (r *Reconciler) StartGame() error {
	return r.send(protocol.Command{Type: protocol.CmdStartGame})
}

func (r *Reconciler) QuickMatch() error {
	return r.send(protocol.Command{Type: protocol.CmdQuickMatch, User: &r.user})
}

func (r *Reconciler) CancelMatch() error {
	return r.send(protocol.Command{Type: protocol.CmdCancelMatch})
}

// PushGameState forwards the local engine's full-state snapshot. Snapshots
// are idempotent, so delivery order between opponents does not matter.
func (r *Reconciler) PushGameState(snapshot json.RawMessage) error {
	return r.send(protocol.Command{Type: protocol.CmdGameUpdate, GameState: snapshot})
}

// SendAttack reports raw cleared lines; the server maps them to garbage.
func (r *Reconciler) SendAttack(clearedLines int) error {
	return r.send(protocol.Command{Type: protocol.CmdSendAttack, Lines: clearedLines})
}

func (r *Reconciler) ReportFinished(score int) error {
	return r.send(protocol.Command{Type: protocol.CmdGameFinished, Score: score})
}

func (r *Reconciler) Chat(message string) error {
	return r.send(protocol.Command{Type: protocol.CmdChatMessage, Message: message})
}
