// Package coordinator is the single serializing owner of all session state:
// the connection registry, the room collection, and the matchmaking queue.
// One goroutine drains the inbox and handles each message to completion, so
// the maps need no locking; everything outside talks to it through Msg values
// and receives events on per-connection outboxes.
package coordinator

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/game"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/protocol"
)

type connState struct {
	outbox chan protocol.Event
	roomID string
}

type queueEntry struct {
	connID   string
	user     game.User
	joinedAt time.Time
}

type Coordinator struct {
	inbox  chan Msg
	conns  map[string]*connState
	rooms  map[string]*game.Room
	queue  []queueEntry
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func New(parent context.Context, logger *zap.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		inbox:  make(chan Msg, 64),
		conns:  make(map[string]*connState),
		rooms:  make(map[string]*game.Room),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	go c.loop()
	return c
}

func (c *Coordinator) Inbox() chan<- Msg { return c.inbox }

// Send enqueues a message unless the coordinator has stopped. Transport
// handlers use this so a connection tearing down during shutdown cannot
// block on a dead inbox.
func (c *Coordinator) Send(m Msg) {
	select {
	case c.inbox <- m:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Register:
				c.conns[msg.ConnID] = &connState{outbox: msg.Outbox}
			case Disconnect:
				c.dropConn(msg.ConnID)
			case CreateRoom:
				c.handleCreateRoom(msg)
			case JoinRoom:
				c.handleJoinRoom(msg)
			case LeaveRoom:
				c.handleLeaveRoom(msg)
			case ListRooms:
				c.handleListRooms(msg)
			case SetReady:
				c.handleSetReady(msg)
			case StartGame:
				c.handleStartGame(msg)
			case GameUpdate:
				c.handleGameUpdate(msg)
			case SendAttack:
				c.handleSendAttack(msg)
			case GameFinished:
				c.handleGameFinished(msg)
			case QuickMatch:
				c.handleQuickMatch(msg)
			case CancelMatch:
				c.handleCancelMatch(msg)
			case Chat:
				c.handleChat(msg)
			case GetState:
				msg.Reply <- c.view()
			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Coordinator) shutdown() {
	for id, cs := range c.conns {
		close(cs.outbox)
		delete(c.conns, id)
	}
	clear(c.rooms)
	c.queue = nil
	c.cancel()
}

// send delivers one event to one connection without blocking the loop. A
// connection whose outbox is full is dropped through the disconnect path.
func (c *Coordinator) send(connID string, ev protocol.Event) {
	cs := c.conns[connID]
	if cs == nil {
		return
	}
	select {
	case cs.outbox <- ev:
	default:
		c.logger.Warn("dropping slow connection", zap.String("conn_id", connID))
		c.dropConn(connID)
	}
}

func (c *Coordinator) sendErr(connID string, err error) {
	c.send(connID, protocol.Event{Type: protocol.EvtError, Error: err.Error()})
}

// broadcast fans an event out to every current member of the room. The
// member list is snapshotted first because a send can drop a connection and
// mutate the room under us.
func (c *Coordinator) broadcast(r *game.Room, ev protocol.Event) {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	for _, id := range ids {
		c.send(id, ev)
	}
}

// relay is the sender-excluded broadcast used for game updates, attacks, and
// chat: the sender already knows its own state.
func (c *Coordinator) relay(r *game.Room, senderID string, ev protocol.Event) {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != senderID {
			ids = append(ids, p.ID)
		}
	}
	for _, id := range ids {
		c.send(id, ev)
	}
}

// dropConn is the one cleanup path: queue entry out, room membership out,
// registry entry out, outbox closed. Safe to call for unknown connections.
func (c *Coordinator) dropConn(connID string) {
	cs := c.conns[connID]
	if cs == nil {
		return
	}
	delete(c.conns, connID)
	close(cs.outbox)
	c.removeFromQueue(connID)
	if cs.roomID != "" {
		c.removeFromRoom(cs.roomID, connID)
	}
}

// removeFromRoom takes a member out of a room, deleting the room when it
// empties and otherwise notifying the remaining members. Host reassignment
// happens inside RemovePlayer.
func (c *Coordinator) removeFromRoom(roomID, connID string) {
	room := c.rooms[roomID]
	if room == nil {
		return
	}
	if !room.RemovePlayer(connID) {
		return
	}
	if room.IsEmpty() {
		delete(c.rooms, roomID)
		c.logger.Info("room deleted", zap.String("room_id", roomID))
		return
	}
	c.broadcast(room, protocol.Event{
		Type:     protocol.EvtPlayerLeft,
		PlayerID: connID,
		Room:     room.Clone(),
	})
}

func (c *Coordinator) removeFromQueue(connID string) bool {
	for i, e := range c.queue {
		if e.connID == connID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true
		}
	}
	return false
}

// newRoomID generates a short code and retries on the (unlikely) collision
// with a live room.
func (c *Coordinator) newRoomID() (string, error) {
	for {
		code, err := game.NewRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := c.rooms[code]; !taken {
			return code, nil
		}
		c.logger.Debug("room code collision, regenerating", zap.String("code", code))
	}
}

func (c *Coordinator) handleCreateRoom(msg CreateRoom) {
	cs := c.conns[msg.ConnID]
	if cs == nil {
		return
	}
	if cs.roomID != "" {
		c.sendErr(msg.ConnID, game.ErrAlreadyInRoom)
		return
	}
	id, err := c.newRoomID()
	if err != nil {
		c.sendErr(msg.ConnID, err)
		return
	}
	c.removeFromQueue(msg.ConnID)
	room := game.NewRoom(id, msg.Name, game.NewPlayer(msg.ConnID, msg.User))
	c.rooms[id] = room
	cs.roomID = id
	c.logger.Info("room created",
		zap.String("room_id", id),
		zap.String("host", msg.User.Name))
	c.send(msg.ConnID, protocol.Event{Type: protocol.EvtRoomCreated, Room: room.Clone()})
}

func (c *Coordinator) handleJoinRoom(msg JoinRoom) {
	cs := c.conns[msg.ConnID]
	if cs == nil {
		return
	}
	if cs.roomID != "" {
		c.sendErr(msg.ConnID, game.ErrAlreadyInRoom)
		return
	}
	room := c.rooms[msg.RoomID]
	if room == nil {
		c.sendErr(msg.ConnID, game.ErrRoomNotFound)
		return
	}
	player := game.NewPlayer(msg.ConnID, msg.User)
	if err := room.AddPlayer(player); err != nil {
		c.sendErr(msg.ConnID, err)
		return
	}
	c.removeFromQueue(msg.ConnID)
	cs.roomID = room.ID
	snap := room.Clone()
	c.send(msg.ConnID, protocol.Event{Type: protocol.EvtRoomJoined, Room: snap})
	c.relay(room, msg.ConnID, protocol.Event{
		Type:   protocol.EvtPlayerJoined,
		Room:   snap,
		Player: snap.Player(msg.ConnID),
	})
}

func (c *Coordinator) handleLeaveRoom(msg LeaveRoom) {
	cs := c.conns[msg.ConnID]
	if cs == nil || cs.roomID == "" {
		c.logger.Debug("leave_room with no room", zap.String("conn_id", msg.ConnID))
		return
	}
	roomID := cs.roomID
	cs.roomID = ""
	c.removeFromRoom(roomID, msg.ConnID)
	c.send(msg.ConnID, protocol.Event{Type: protocol.EvtRoomLeft})
}

func (c *Coordinator) handleListRooms(msg ListRooms) {
	list := make([]game.Summary, 0, len(c.rooms))
	for _, r := range c.rooms {
		list = append(list, r.Summary())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	c.send(msg.ConnID, protocol.Event{Type: protocol.EvtRoomList, Rooms: list})
}

func (c *Coordinator) handleSetReady(msg SetReady) {
	room, player := c.member(msg.ConnID)
	if player == nil {
		// Tolerate the client/server race around disconnects.
		c.logger.Debug("set_ready with no room", zap.String("conn_id", msg.ConnID))
		return
	}
	player.IsReady = msg.IsReady
	c.broadcast(room, protocol.Event{
		Type:     protocol.EvtPlayerReadyChanged,
		PlayerID: player.ID,
		IsReady:  msg.IsReady,
	})
}

func (c *Coordinator) handleStartGame(msg StartGame) {
	room, player := c.member(msg.ConnID)
	if player == nil {
		c.sendErr(msg.ConnID, game.ErrNoActiveSession)
		return
	}
	if room.HostID != msg.ConnID {
		c.sendErr(msg.ConnID, game.ErrNotHost)
		return
	}
	if !room.AllReady() {
		c.sendErr(msg.ConnID, game.ErrNotAllReady)
		return
	}
	start := time.Now()
	room.GameStatus = game.RoomPlaying
	room.Session = &game.Session{StartTime: start}
	for _, p := range room.Players {
		p.Status = game.PlayerPlaying
	}
	c.logger.Info("game started", zap.String("room_id", room.ID))
	c.broadcast(room, protocol.Event{
		Type:      protocol.EvtGameStarted,
		StartTime: start.UnixMilli(),
	})
}

func (c *Coordinator) handleGameUpdate(msg GameUpdate) {
	room, player := c.member(msg.ConnID)
	if player == nil {
		c.logger.Debug("game_update with no room", zap.String("conn_id", msg.ConnID))
		return
	}
	player.GameState = msg.Snapshot
	c.relay(room, msg.ConnID, protocol.Event{
		Type:      protocol.EvtGameUpdate,
		PlayerID:  msg.ConnID,
		GameState: msg.Snapshot,
	})
}

func (c *Coordinator) handleSendAttack(msg SendAttack) {
	room, player := c.member(msg.ConnID)
	if player == nil {
		c.logger.Debug("send_attack with no room", zap.String("conn_id", msg.ConnID))
		return
	}
	lines := game.GarbageLines(msg.Lines)
	if lines == 0 {
		return
	}
	from := player.User
	c.relay(room, msg.ConnID, protocol.Event{
		Type:  protocol.EvtAttackReceived,
		Lines: lines,
		From:  &from,
	})
}

func (c *Coordinator) handleGameFinished(msg GameFinished) {
	room, player := c.member(msg.ConnID)
	if player == nil {
		c.logger.Debug("game_finished with no room", zap.String("conn_id", msg.ConnID))
		return
	}
	player.Score = msg.Score
	player.Status = game.PlayerFinished
	if !room.AllFinished() {
		return
	}
	room.GameStatus = game.RoomFinished
	winner := room.Winner()
	if room.Session != nil {
		room.Session.EndTime = time.Now()
		room.Session.WinnerID = winner.ID
	}
	c.logger.Info("game ended",
		zap.String("room_id", room.ID),
		zap.String("winner", winner.User.Name),
		zap.Int("score", winner.Score))
	w := *winner
	c.broadcast(room, protocol.Event{Type: protocol.EvtGameEnded, Winner: &w})
}

func (c *Coordinator) handleQuickMatch(msg QuickMatch) {
	cs := c.conns[msg.ConnID]
	if cs == nil {
		return
	}
	if cs.roomID != "" {
		c.sendErr(msg.ConnID, game.ErrAlreadyInRoom)
		return
	}

	// FIFO scan for the first waiting opponent. Entries for this connection
	// or for connections that slipped into a room meanwhile are skipped.
	for i, e := range c.queue {
		if e.connID == msg.ConnID {
			continue
		}
		other := c.conns[e.connID]
		if other == nil || other.roomID != "" {
			continue
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		c.removeFromQueue(msg.ConnID)
		// The player who has been waiting longest takes the host seat.
		c.pair(e.connID, e.user, msg.ConnID, msg.User)
		return
	}

	for _, e := range c.queue {
		if e.connID == msg.ConnID {
			// Duplicate request from a queued connection is a no-op.
			c.logger.Debug("duplicate quick_match", zap.String("conn_id", msg.ConnID))
			return
		}
	}
	c.queue = append(c.queue, queueEntry{connID: msg.ConnID, user: msg.User, joinedAt: time.Now()})
	c.send(msg.ConnID, protocol.Event{Type: protocol.EvtMatchSearching})
}

// pair builds a fresh room for a matched pair.
func (c *Coordinator) pair(hostConn string, hostUser game.User, guestConn string, guestUser game.User) {
	id, err := c.newRoomID()
	if err != nil {
		c.sendErr(hostConn, err)
		return
	}
	room := game.NewRoom(id, "Quick Match", game.NewPlayer(hostConn, hostUser))
	if err := room.AddPlayer(game.NewPlayer(guestConn, guestUser)); err != nil {
		c.sendErr(hostConn, err)
		return
	}
	c.rooms[id] = room
	c.conns[hostConn].roomID = id
	c.conns[guestConn].roomID = id
	c.logger.Info("matched",
		zap.String("room_id", id),
		zap.String("host", hostUser.Name),
		zap.String("guest", guestUser.Name))
	snap := room.Clone()
	c.send(hostConn, protocol.Event{
		Type:   protocol.EvtMatchFound,
		Room:   snap,
		Player: snap.Player(hostConn),
	})
	c.send(guestConn, protocol.Event{
		Type:   protocol.EvtMatchFound,
		Room:   snap,
		Player: snap.Player(guestConn),
	})
}

func (c *Coordinator) handleCancelMatch(msg CancelMatch) {
	c.removeFromQueue(msg.ConnID)
	c.send(msg.ConnID, protocol.Event{Type: protocol.EvtMatchCancelled})
}

func (c *Coordinator) handleChat(msg Chat) {
	room, player := c.member(msg.ConnID)
	if player == nil {
		c.logger.Debug("chat_message with no room", zap.String("conn_id", msg.ConnID))
		return
	}
	c.relay(room, msg.ConnID, protocol.Event{
		Type:      protocol.EvtChatMessage,
		Sender:    player.User.Name,
		Message:   msg.Message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// member resolves a connection to its room and player, or (nil, nil).
func (c *Coordinator) member(connID string) (*game.Room, *game.Player) {
	cs := c.conns[connID]
	if cs == nil || cs.roomID == "" {
		return nil, nil
	}
	room := c.rooms[cs.roomID]
	if room == nil {
		return nil, nil
	}
	return room, room.Player(connID)
}

func (c *Coordinator) view() View {
	v := View{
		NumConns:  len(c.conns),
		NumQueued: len(c.queue),
		Queue:     make([]string, len(c.queue)),
		Rooms:     make(map[string]RoomView, len(c.rooms)),
		Summaries: make([]game.Summary, 0, len(c.rooms)),
	}
	for i, e := range c.queue {
		v.Queue[i] = e.connID
	}
	for id, r := range c.rooms {
		rv := RoomView{Name: r.Name, HostID: r.HostID, Status: r.GameStatus}
		for _, p := range r.Players {
			rv.PlayerIDs = append(rv.PlayerIDs, p.ID)
		}
		v.Rooms[id] = rv
		v.Summaries = append(v.Summaries, r.Summary())
	}
	sort.Slice(v.Summaries, func(i, j int) bool { return v.Summaries[i].ID < v.Summaries[j].ID })
	return v
}

// PlayerCount sums members across rooms for the liveness probe.
func (v View) PlayerCount() int {
	n := 0
	for _, r := range v.Rooms {
		n += len(r.PlayerIDs)
	}
	return n
}
