package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	EventRequest  = "confirm:request"
	EventResponse = "confirm:response"
)

// Message 是双向通用信封：{"event": ..., "data": ...}。
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type responseMessage struct {
	Event string   `json:"event"`
	Data  response `json:"data"`
}

type response struct {
	ID     string `json:"id"`
	Accept bool   `json:"accept"`
}

// WebSocket 把确认请求转发给一个前端页面（例如媒体库管理 UI），等待同 id 的应答。
//
// 约束：一次只挂起一个请求；收到的其它事件或不匹配的 id 直接忽略。
type WebSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *zap.Logger
}

// DialWebSocket 连接确认服务端。
func DialWebSocket(ctx context.Context, url string, log *zap.Logger) (*WebSocket, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("confirm: dial %s: %w", url, err)
	}
	return &WebSocket{conn: conn, log: log.Named("confirm")}, nil
}

func (w *WebSocket) Confirm(ctx context.Context, req Request) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return false, errors.New("confirm: websocket closed")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := wsjson.Write(ctx, w.conn, Message{Event: EventRequest, Data: req}); err != nil {
		return false, err
	}
	w.log.Debug("confirmation requested", zap.String("id", req.ID), zap.String("kind", string(req.Kind)))

	for {
		var msg responseMessage
		if err := wsjson.Read(ctx, w.conn, &msg); err != nil {
			return false, err
		}
		if msg.Event != EventResponse || msg.Data.ID != req.ID {
			continue
		}
		return msg.Data.Accept, nil
	}
}

// Close 正常关闭连接；可重复调用。
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "")
	w.conn = nil
	return err
}
