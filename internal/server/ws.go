package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fuaadabdullah/goblin-runtime/internal/llm"
	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
	wsPingInterval    = 15 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsFrame is the envelope shape of every outbound frame:
// {type, goblin, data?, error?, timestamp}.
type wsFrame struct {
	Type      string    `json:"type"`
	Goblin    string    `json:"goblin,omitempty"`
	Data      string    `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsExecuteRequest is the only inbound frame shape the handler accepts.
type wsExecuteRequest struct {
	Action  string            `json:"action"`
	Agent   string            `json:"agent"`
	Task    string            `json:"task"`
	Context map[string]string `json:"context,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.WSConnectionOpened("/ws")
		defer s.metrics.WSConnectionClosed("/ws")
	}

	sess := &wsSession{server: s, conn: conn, send: make(chan []byte, 16)}
	sess.run()
}

// wsSession owns one accepted connection: a read loop decoding inbound
// execute requests and a write loop draining the send channel, so only one
// goroutine ever calls conn.WriteMessage.
type wsSession struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
}

func (sess *wsSession) run() {
	done := make(chan struct{})
	go sess.writeLoop(done)
	sess.readLoop()
	close(sess.send)
	<-done
	sess.conn.Close()
}

func (sess *wsSession) readLoop() {
	sess.conn.SetReadLimit(wsMaxPayloadBytes)
	sess.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := validateWSExecuteFrame(raw); err != nil {
			sess.enqueue(wsFrame{Type: "error", Error: err.Error(), Timestamp: time.Now()})
			continue
		}
		var req wsExecuteRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			sess.enqueue(wsFrame{Type: "error", Error: "malformed request", Timestamp: time.Now()})
			continue
		}
		sess.execute(req)
	}
}

func (sess *wsSession) writeLoop(done chan<- struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case data, ok := <-sess.send:
			if !ok {
				return
			}
			sess.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (sess *wsSession) enqueue(frame wsFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case sess.send <- data:
	default:
		sess.server.logger.Warn("websocket send buffer full, dropping frame", "type", frame.Type)
	}
}

// execute runs the requested task, streaming provider chunks as they
// arrive and finishing with a single complete or error frame. It runs
// inline on the read loop's goroutine: chunk ordering for a task is
// preserved by construction, and a second inbound request only starts
// after the prior one's terminal frame is enqueued.
func (sess *wsSession) execute(req wsExecuteRequest) {
	agent, ok := sess.server.catalog.Agent(req.Agent)
	if !ok {
		sess.enqueue(wsFrame{Type: "error", Goblin: req.Agent, Error: "unknown agent " + req.Agent, Timestamp: time.Now()})
		return
	}

	sess.enqueue(wsFrame{Type: "start", Goblin: agent.ID, Timestamp: time.Now()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	resp, err := sess.server.executor.RunStreaming(ctx, model.TaskRequest{AgentID: agent.ID, TaskText: req.Task, Context: req.Context}, func(chunk llm.Chunk) {
		if chunk.Err == nil && chunk.Text != "" {
			sess.enqueue(wsFrame{Type: "chunk", Goblin: agent.ID, Data: chunk.Text, Timestamp: time.Now()})
		}
	})
	if err != nil {
		sess.enqueue(wsFrame{Type: "error", Goblin: agent.ID, Error: err.Error(), Timestamp: time.Now()})
		return
	}

	// resp.Succeeded=false (e.g. a failed tool invocation) still reaches
	// "complete": the task ran to a terminal result, it just didn't succeed.
	payload, err := json.Marshal(resp)
	if err != nil {
		sess.enqueue(wsFrame{Type: "error", Goblin: agent.ID, Error: err.Error(), Timestamp: time.Now()})
		return
	}
	sess.enqueue(wsFrame{Type: "complete", Goblin: agent.ID, Data: string(payload), Timestamp: time.Now()})
}
