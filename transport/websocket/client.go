package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
	"github.com/rocketscienceinc/duoplay-backend/internal/session"
)

type liveSession interface {
	Move(ctx context.Context, move entity.Move) (session.MoveOutcome, error)
	Select(ctx context.Context, from checkers.Square) (*session.Selection, error)
	Reset(ctx context.Context) error
	View(ctx context.Context) (session.View, error)
}

type client struct {
	logger     *slog.Logger
	conn       *websocket.Conn
	send       chan []byte
	controller liveSession
}

// push queues a message for the writer. A full queue drops the message; the
// next state push carries the whole view again.
func (that *client) push(action string, payload any) {
	data, err := encode(action, payload)
	if err != nil {
		that.logger.Error("failed to encode message", "action", action, "error", err)
		return
	}

	select {
	case that.send <- data:
	default:
		that.logger.Warn("send buffer full, message dropped", "action", action)
	}
}

func (that *client) pushError(action, reason string) {
	that.push(action, ResponsePayload{Error: reason})
}

func (that *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		that.conn.Close()
	}()

	for {
		select {
		case data := <-that.send:
			if err := that.write(websocket.TextMessage, data); err != nil {
				that.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := that.write(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			that.flush()
			_ = that.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (that *client) flush() {
	for {
		select {
		case data := <-that.send:
			if err := that.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (that *client) write(messageType int, data []byte) error {
	_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return that.conn.WriteMessage(messageType, data)
}

func encode(action string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Message{Action: action, Payload: body})
}
