package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/noehblabla33-a11y/frigo/internal/engine"
	"github.com/noehblabla33-a11y/frigo/internal/gateway"
	"github.com/noehblabla33-a11y/frigo/internal/middleware"
	"github.com/noehblabla33-a11y/frigo/internal/model"
	ws "github.com/noehblabla33-a11y/frigo/internal/websocket"
)

// Server is the presentation bridge: it pushes every engine state transition
// to connected WebSocket clients and turns their intent frames into engine
// calls. The presentation layer itself lives outside this process.
type Server struct {
	engine      *engine.Engine
	gw          *gateway.Client
	hub         *ws.Hub
	logger      *slog.Logger
	unsubscribe func()
}

// New wires a Server to the engine and gateway.
func New(eng *engine.Engine, gw *gateway.Client, logger *slog.Logger) *Server {
	s := &Server{
		engine: eng,
		gw:     gw,
		logger: logger,
	}
	s.hub = ws.NewHub(s.handleIntent, logger.With("component", "websocket"))
	s.unsubscribe = eng.Subscribe(func(snap engine.Snapshot) {
		s.hub.Broadcast(ws.StateMessage(snap))
	})
	return s
}

// Close detaches the server from the engine's state notifications.
func (s *Server) Close() {
	s.unsubscribe()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, func() ws.Message {
		return ws.StateMessage(s.engine.Current())
	}))
	mux.HandleFunc("GET /state", s.stateHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Current())
}

// healthHandler proxies the remote health check so a UI can tell "offline"
// apart from "server down".
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status, err := s.gw.CheckHealth(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"status": "unreachable", "error": err.Error()})
		return
	}
	if status == nil {
		status = map[string]string{}
	}
	if _, ok := status["status"]; !ok {
		status["status"] = "ok"
	}
	json.NewEncoder(w).Encode(status)
}

// handleIntent executes one presentation intent. Mutations broadcast their
// resulting state through the engine subscription; only failures and sync
// acknowledgements need frames of their own.
func (s *Server) handleIntent(intent ws.Intent) {
	ctx := context.Background()

	var err error
	switch intent.Action {
	case "load":
		_, err = s.engine.GetList(ctx)
	case "refresh":
		_, err = s.engine.Refresh(ctx)
	case "toggle":
		_, err = s.engine.TogglePurchased(intent.ID)
	case "quantity":
		_, err = s.engine.SetPurchasedQuantity(intent.ID, intent.Quantity)
	case "delete":
		err = s.engine.Delete(ctx, intent.ID)
	case "sync":
		var ack *model.SyncAck
		ack, err = s.engine.Sync(ctx)
		if err == nil {
			s.hub.Broadcast(ws.AckMessage(ack))
		}
	case "clear":
		s.engine.Clear()
	default:
		s.logger.Warn("unknown intent", "action", intent.Action)
		return
	}

	if err != nil {
		s.logger.Warn("intent failed", "action", intent.Action, "error", err)
		s.hub.Broadcast(ws.ErrorMessage(err))
	}
}
