package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Edward-CH-Wang/Tetris-sub000/internal/coordinator"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/game"
	"github.com/Edward-CH-Wang/Tetris-sub000/internal/protocol"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 32
)

// Handler upgrades the connection, registers it with the coordinator, and
// runs the per-connection read loop. One goroutine drains the outbox into
// websocket writes; the reader dispatches typed commands into the
// coordinator's inbox in arrival order, which is what gives each connection
// its in-order processing guarantee.
func Handler(c *coordinator.Coordinator, logger *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan protocol.Event, outboxSize)

		c.Send(coordinator.Register{ConnID: connID, Outbox: out})
		defer func() { c.Send(coordinator.Disconnect{ConnID: connID}) }()

		logger.Info("connection opened", zap.String("conn_id", connID))

		// Writer goroutine. The coordinator closes the outbox when it drops
		// the connection, which ends this loop and the read loop below.
		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, err := json.Marshal(ev)
				if err != nil {
					logger.Error("marshal event", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			conn.Close(websocket.StatusPolicyViolation, "dropped")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					logger.Info("connection closed", zap.String("conn_id", connID))
				default:
					logger.Info("connection lost",
						zap.String("conn_id", connID), zap.Error(err))
				}
				return
			}

			var cmd protocol.Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			msg, ok := toCoordMsg(connID, cmd)
			if !ok {
				writeError(r.Context(), conn, "unknown command type")
				continue
			}
			c.Send(msg)
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, text string) {
	payload, _ := json.Marshal(protocol.Event{Type: protocol.EvtError, Error: text})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func toCoordMsg(connID string, cmd protocol.Command) (coordinator.Msg, bool) {
	switch cmd.Type {
	case protocol.CmdCreateRoom:
		return coordinator.CreateRoom{ConnID: connID, Name: cmd.Name, User: cmdUser(cmd)}, true
	case protocol.CmdJoinRoom:
		return coordinator.JoinRoom{ConnID: connID, RoomID: cmd.RoomID, User: cmdUser(cmd)}, true
	case protocol.CmdLeaveRoom:
		return coordinator.LeaveRoom{ConnID: connID}, true
	case protocol.CmdGetRoomList:
		return coordinator.ListRooms{ConnID: connID}, true
	case protocol.CmdSetReady:
		return coordinator.SetReady{ConnID: connID, IsReady: cmd.IsReady}, true
	case protocol.CmdStartGame:
		return coordinator.StartGame{ConnID: connID}, true
	case protocol.CmdGameUpdate:
		return coordinator.GameUpdate{ConnID: connID, Snapshot: cmd.GameState}, true
	case protocol.CmdSendAttack:
		return coordinator.SendAttack{ConnID: connID, Lines: cmd.Lines}, true
	case protocol.CmdGameFinished:
		return coordinator.GameFinished{ConnID: connID, Score: cmd.Score}, true
	case protocol.CmdQuickMatch:
		return coordinator.QuickMatch{ConnID: connID, User: cmdUser(cmd)}, true
	case protocol.CmdCancelMatch:
		return coordinator.CancelMatch{ConnID: connID}, true
	case protocol.CmdChatMessage:
		return coordinator.Chat{ConnID: connID, Message: cmd.Message}, true
	default:
		return nil, false
	}
}

func cmdUser(cmd protocol.Command) game.User {
	if cmd.User != nil {
		return *cmd.User
	}
	return game.User{}
}
