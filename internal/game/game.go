package game

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrNotHost = errors.New("only the host can start the game")
var ErrNotAllReady = errors.New("all players must be ready")
var ErrNoActiveSession = errors.New("no active room or queue membership")
var ErrAlreadyInRoom = errors.New("already in a room")

// MaxPlayers is the room capacity. The coordinator only ever pairs two
// opponents; the field stays on Room so the wire format carries it.
const MaxPlayers = 2

type PlayerStatus string

const (
	PlayerConnected    PlayerStatus = "connected"
	PlayerDisconnected PlayerStatus = "disconnected"
	PlayerPlaying      PlayerStatus = "playing"
	PlayerFinished     PlayerStatus = "finished"
)

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomStarting RoomStatus = "starting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// User is the opaque identity object handed to us by the auth layer. The
// coordinator never inspects it beyond the id and display name.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Player is one room member. ID equals the owning connection's id, so there
// is exactly one Player per connection per room membership.
type Player struct {
	ID        string          `json:"id"`
	User      User            `json:"user"`
	IsReady   bool            `json:"isReady"`
	IsHost    bool            `json:"isHost"`
	Score     int             `json:"score"`
	Status    PlayerStatus    `json:"status"`
	GameState json.RawMessage `json:"gameState,omitempty"`
}

// Session holds the transient per-match result. Never persisted and never
// sent as a whole; game_started and game_ended carry the relevant pieces.
type Session struct {
	StartTime time.Time
	EndTime   time.Time
	WinnerID  string
}

type Room struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	HostID     string     `json:"hostId"`
	Players    []*Player  `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Spectators []string   `json:"spectators"`
	GameStatus RoomStatus `json:"gameStatus"`
	CreatedAt  time.Time  `json:"createdAt"`
	Session    *Session   `json:"-"`
}

// Summary is the discovery view returned by get_room_list and /stats.
type Summary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Players    int        `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func NewRoom(id, name string, host *Player) *Room {
	host.IsHost = true
	return &Room{
		ID:         id,
		Name:       name,
		HostID:     host.ID,
		Players:    []*Player{host},
		MaxPlayers: MaxPlayers,
		Spectators: []string{},
		GameStatus: RoomWaiting,
		CreatedAt:  time.Now(),
	}
}

func NewPlayer(connID string, user User) *Player {
	return &Player{
		ID:     connID,
		User:   user,
		Status: PlayerConnected,
	}
}

func (r *Room) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

func (r *Room) AddPlayer(p *Player) error {
	if r.IsFull() {
		return ErrRoomFull
	}
	r.Players = append(r.Players, p)
	return nil
}

// RemovePlayer drops the member with the given id, preserving join order.
// When the departing player was host and members remain, the earliest-joined
// remaining player inherits the host role.
func (r *Room) RemovePlayer(id string) bool {
	idx := -1
	for i, p := range r.Players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	wasHost := r.Players[idx].IsHost
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	if wasHost && len(r.Players) > 0 {
		r.Players[0].IsHost = true
		r.HostID = r.Players[0].ID
	}
	return true
}

func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// AllReady reports whether the room can start: a full roster with every
// member's ready flag set.
func (r *Room) AllReady() bool {
	if len(r.Players) < r.MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (r *Room) AllFinished() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if p.Status != PlayerFinished {
			return false
		}
	}
	return true
}

// Winner picks the player with the strictly greatest score. A tie keeps the
// earlier player in join order.
func (r *Room) Winner() *Player {
	var w *Player
	for _, p := range r.Players {
		if w == nil || p.Score > w.Score {
			w = p
		}
	}
	return w
}

// Clone returns a copy safe to hand to another goroutine. Player structs are
// copied; game-state blobs are shared because they are replaced wholesale,
// never mutated in place.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		pc := *p
		c.Players[i] = &pc
	}
	c.Spectators = append([]string(nil), r.Spectators...)
	return &c
}

func (r *Room) Summary() Summary {
	return Summary{
		ID:         r.ID,
		Name:       r.Name,
		Players:    len(r.Players),
		MaxPlayers: r.MaxPlayers,
		Status:     r.GameStatus,
		CreatedAt:  r.CreatedAt,
	}
}

// GarbageLines maps the attacker's cleared lines to garbage sent to the
// opponent: 2 -> 1, 3 -> 2, 4 or more -> 4. Single clears send nothing.
func GarbageLines(cleared int) int {
	switch {
	case cleared >= 4:
		return 4
	case cleared == 3:
		return 2
	case cleared == 2:
		return 1
	default:
		return 0
	}
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRoomCode returns a random 6-char base36 code. Callers must check the
// code against existing rooms before use.
func NewRoomCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}
