// Package observer serves the observer protocol over websockets: queries
// against the committed store and the whitelisted command set. Queries see
// only committed state; they share the store's single connection, so a
// query and a tick commit wait for each other.
package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hearth.world/internal/observerproto"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/engine"
	"hearth.world/internal/sim/world"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 256 * 1024,
	// Local observer tooling only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server fans observer connections in front of an engine.
type Server struct {
	eng    *engine.Engine
	logger *log.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

type conn struct {
	ws  *websocket.Conn
	out chan []byte
}

func NewServer(eng *engine.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{eng: eng, logger: logger, conns: map[*conn]struct{}{}}
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Printf("[observer] upgrade: %v", err)
			return
		}
		c := &conn{ws: ws, out: make(chan []byte, 64)}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		go s.writePump(c)
		s.readPump(c)
	})
}

func (s *Server) drop(c *conn) {
	s.mu.Lock()
	if _, ok := s.conns[c]; ok {
		delete(s.conns, c)
		close(c.out)
	}
	s.mu.Unlock()
}

func (s *Server) readPump(c *conn) {
	defer func() {
		s.drop(c)
		_ = c.ws.Close()
	}()
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var req observerproto.RequestMsg
		if err := json.Unmarshal(raw, &req); err != nil {
			s.send(c, errorMsg(0, fmt.Sprintf("bad request: %v", err)))
			continue
		}
		resp := s.handle(req)
		s.send(c, resp)
	}
}

func (s *Server) writePump(c *conn) {
	for msg := range c.out {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) send(c *conn, msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("[observer] marshal: %v", err)
		return
	}
	select {
	case c.out <- raw:
	default:
		// Slow observer: drop the message rather than stall.
	}
}

// BroadcastTick pushes the per-tick summary to every observer. The engine
// runner calls it after each committed tick.
func (s *Server) BroadcastTick() {
	st := s.eng.Store()
	ws, err := st.WorldState()
	if err != nil {
		s.logger.Printf("[observer] tick broadcast: %v", err)
		return
	}
	all, err := st.Agents()
	if err != nil {
		s.logger.Printf("[observer] tick broadcast: %v", err)
		return
	}
	msg := observerproto.TickMsg{
		Type:            "tick",
		ProtocolVersion: observerproto.Version,
		Tick:            ws.Tick,
		TimeOfDay:       ws.TimeOfDay(),
		Weather:         ws.Weather,
	}
	for _, a := range all {
		msg.Agents = append(msg.Agents, observerproto.AgentSummary{
			Name:     a.Name,
			Position: a.Position,
			Sleeping: a.Sleeping,
			Journey:  a.InJourney(),
		})
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	for c := range s.conns {
		select {
		case c.out <- raw:
		default:
		}
	}
	s.mu.Unlock()
}

func errorMsg(id int64, text string) observerproto.ResponseMsg {
	return observerproto.ResponseMsg{Type: "error", ID: id, Error: text}
}

func resultMsg(id int64, v any) observerproto.ResponseMsg {
	raw, err := json.Marshal(v)
	if err != nil {
		return errorMsg(id, err.Error())
	}
	return observerproto.ResponseMsg{Type: "result", ID: id, Data: raw}
}

func (s *Server) handle(req observerproto.RequestMsg) observerproto.ResponseMsg {
	switch req.Type {
	case "query":
		return s.handleQuery(req)
	case "command":
		if req.Command == nil {
			return errorMsg(req.ID, "missing command")
		}
		switch req.Command.Kind {
		case engine.CmdTriggerEvent, engine.CmdSetWeather, engine.CmdSendDream,
			engine.CmdForceTurn, engine.CmdSkipTurns, engine.CmdEndConversation:
			s.eng.Enqueue(*req.Command)
			return resultMsg(req.ID, map[string]string{"status": "queued"})
		default:
			return errorMsg(req.ID, fmt.Sprintf("command %q is not whitelisted", req.Command.Kind))
		}
	default:
		return errorMsg(req.ID, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

func (s *Server) handleQuery(req observerproto.RequestMsg) observerproto.ResponseMsg {
	st := s.eng.Store()
	switch req.Query {
	case observerproto.QueryWorldState:
		ws, err := st.WorldState()
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, ws)
	case observerproto.QueryAgent:
		a, ok, err := st.Agent(req.Agent)
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		if !ok {
			return errorMsg(req.ID, fmt.Sprintf("no agent %q", req.Agent))
		}
		return resultMsg(req.ID, a)
	case observerproto.QueryAllAgents:
		all, err := st.Agents()
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, all)
	case observerproto.QueryCell:
		if req.Pos == nil {
			return errorMsg(req.ID, "get_cell needs pos")
		}
		c, err := st.Cell(*req.Pos)
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, c)
	case observerproto.QueryCellsInRect:
		if req.Rect == nil {
			return errorMsg(req.ID, "get_cells_in_rect needs rect")
		}
		ws, err := st.WorldState()
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		// Defaults are materialised so observers see the same view agents
		// do.
		cells, err := world.New(st, ws.Width, ws.Height).CellsInRect(domain.Rect{
			MinX: req.Rect.MinX, MinY: req.Rect.MinY,
			MaxX: req.Rect.MaxX, MaxY: req.Rect.MaxY,
		})
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, cells)
	case observerproto.QueryObjectsAt:
		if req.Pos == nil {
			return errorMsg(req.ID, "get_objects_at needs pos")
		}
		objs, err := st.ObjectsAt(*req.Pos)
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, objs)
	case observerproto.QueryConversations:
		convos, err := st.Conversations()
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, convos)
	case observerproto.QueryPendingInvitations:
		invs, err := st.PendingInvitations()
		if err != nil {
			return errorMsg(req.ID, err.Error())
		}
		return resultMsg(req.ID, invs)
	default:
		return errorMsg(req.ID, fmt.Sprintf("unknown query %q", req.Query))
	}
}
