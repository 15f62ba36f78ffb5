package gateway

import (
	"encoding/json"

	"github.com/voicecode/voiced/internal/wire"
)

// handleMessage decodes one incoming frame payload and dispatches it.
// Returns false if the connection must now be closed (auth failure).
func (s *Server) handleMessage(conn *Connection, payload []byte) bool {
	env, err := marshalEnvelope(payload)
	if err != nil {
		conn.send(s.Log, wire.NewError("malformed JSON: "+err.Error(), ""))
		return true
	}
	s.logSymbolic(payload)

	if !conn.IsAuthenticated() && env.Type != "ping" && env.Type != "connect" {
		conn.send(s.Log, wire.NewAuthError())
		return false
	}

	switch env.Type {
	case "ping":
		conn.send(s.Log, wire.Pong{Type: "pong"})
	case "connect":
		return s.handleConnect(conn, payload)
	case "subscribe":
		s.handleSubscribe(conn, payload)
	case "unsubscribe":
		s.handleUnsubscribe(conn, payload)
	case "prompt":
		s.handlePrompt(conn, payload)
	case "clear_context":
		s.handleClearContext(conn, payload)
	case "set_directory":
		s.handleSetDirectory(conn, payload)
	case "session_deleted":
		s.handleSessionDeleted(conn, payload)
	case "compact_session":
		s.handleCompactSession(conn, payload)
	case "start_recipe":
		s.handleStartRecipe(conn, payload)
	case "refresh_sessions":
		s.pushSessionList(conn)
		s.pushRecentSessions(conn)
	case "get_available_recipes":
		s.handleGetAvailableRecipes(conn)
	case "upload_file":
		s.handleUploadFile(conn, payload)
	case "list_resources":
		s.handleListResources(conn, payload)
	case "delete_resource":
		s.handleDeleteResource(conn, payload)
	case "create_workstream", "workstream_updated", "workstream_list":
		s.handleWorkstreamMessage(conn, env.Type, payload)
	case "kill_claude_session":
		s.handleKillSession(conn, payload)
	default:
		conn.send(s.Log, wire.NewError("unknown message type: "+env.Type, ""))
	}
	return true
}

func (s *Server) handleConnect(conn *Connection, payload []byte) bool {
	var req wire.ConnectRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.APIKey == "" {
		conn.send(s.Log, wire.NewAuthError())
		return false
	}
	if !s.ValidateKey(req.APIKey) {
		conn.send(s.Log, wire.NewAuthError())
		return false
	}

	conn.markAuthenticated()
	if req.RecentSessionsLimit != nil {
		conn.SetRecentSessionsLimit(*req.RecentSessionsLimit)
	}

	s.pushSessionList(conn)
	s.pushRecentSessions(conn)
	s.pushAvailableCommands(conn)
	return true
}

func (s *Server) handleSubscribe(conn *Connection, payload []byte) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		conn.send(s.Log, wire.NewError("subscribe requires session_id", ""))
		return
	}
	conn.Subscribe(req.SessionID)
	if s.Watcher != nil {
		s.Watcher.Resubscribe(req.SessionID)
	}
	s.replayHistory(conn, req.SessionID)
}

func (s *Server) handleUnsubscribe(conn *Connection, payload []byte) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		return
	}
	conn.Unsubscribe(req.SessionID)
}

func (s *Server) handleSessionDeleted(conn *Connection, payload []byte) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		return
	}
	conn.MarkDeleted(req.SessionID)
}

func (s *Server) handleSetDirectory(conn *Connection, payload []byte) {
	var req struct {
		WorkingDirectory string `json:"working_directory"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.WorkingDirectory == "" {
		conn.send(s.Log, wire.NewError("set_directory requires working_directory", ""))
		return
	}
	conn.SetWorkingDirectory(req.WorkingDirectory)
	s.pushAvailableCommands(conn)
}

func (s *Server) handleGetAvailableRecipes(conn *Connection) {
	conn.send(s.Log, wire.AvailableRecipes{Type: "available_recipes", Recipes: s.Recipes.IDs()})
}
