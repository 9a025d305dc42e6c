package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lingualab/oralis/internal/exam"
	"github.com/lingualab/oralis/internal/services"
	"github.com/lingualab/oralis/internal/utils"
)

// WSHandler is the candidate's live channel: binary frames carry microphone
// audio up; engine events come back down, relayed through Redis so the
// socket can live on any instance.
type WSHandler struct {
	svc      *services.InterviewService
	relay    *services.RedisEventSink
	upgrader websocket.Upgrader
}

func NewWSHandler(svc *services.InterviewService, relay *services.RedisEventSink) *WSHandler {
	return &WSHandler{
		svc:   svc,
		relay: relay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type string `json:"type"` // "response_done" | "skip_preparation" | "end_now"
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (h *WSHandler) InterviewWS(c *gin.Context) {
	candidateID, ok := requireCandidateID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.InterviewWS", "missing session_id", nil))
		return
	}

	// authorize session ownership
	sess, _, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.CandidateID != candidateID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.InterviewWS", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe Redis -> WS
	pubsub := h.relay.Subscribe(ctx, sessionID)
	defer pubsub.Close()

	// reader: WS -> engine (audio frames and candidate signals)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			mt, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if mt == websocket.BinaryMessage {
				h.svc.Feed(sessionID, data)
				continue
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}

			switch exam.Signal(msg.Type) {
			case exam.SignalResponseDone, exam.SignalSkipPreparation, exam.SignalEndNow:
				if err := h.svc.Signal(sessionID, exam.Signal(msg.Type)); err != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"NOT_FOUND","message":"no running session"}`))
				}
			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	// writer: Redis Pub/Sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			// forward as-is (engine events are published as JSON)
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
