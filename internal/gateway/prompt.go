package gateway

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voicecode/voiced/internal/agent"
	"github.com/voicecode/voiced/internal/wire"
)

const gracePeriod = 5 * time.Second

// resolvePromptTarget validates the mutually-exclusive session targeting
// fields on a prompt request. A workstream with no active session is
// treated as new-session creation using the workstream's stored working
// directory.
func (s *Server) resolvePromptTarget(req wire.PromptRequest) (sessionID string, resume bool, workingDir string, err error) {
	set := 0
	if req.NewSessionID != "" {
		set++
	}
	if req.ResumeSessionID != "" {
		set++
	}
	if req.WorkstreamID != "" {
		set++
	}
	if set != 1 {
		return "", false, "", errMutuallyExclusive
	}

	switch {
	case req.NewSessionID != "":
		return req.NewSessionID, false, expandHome(req.WorkingDirectory), nil

	case req.ResumeSessionID != "":
		if meta, ok := s.Index.Get(req.ResumeSessionID); ok && meta.WorkingDirectory != "" {
			return req.ResumeSessionID, true, meta.WorkingDirectory, nil
		}
		return req.ResumeSessionID, true, expandHome(req.WorkingDirectory), nil

	case req.WorkstreamID != "" && s.Workstreams != nil:
		ws, getErr := s.Workstreams.Get(req.WorkstreamID)
		if getErr != nil || ws == nil {
			return "", false, "", errUnknownWorkstream
		}
		if ws.ActiveSessionID != "" {
			return ws.ActiveSessionID, true, ws.WorkingDirectory, nil
		}
		return "", false, ws.WorkingDirectory, nil // caller mints a new session ID
	}
	return "", false, "", errUnknownWorkstream
}

var (
	errMutuallyExclusive = fmtErr("exactly one of new_session_id, resume_session_id, workstream_id is required")
	errUnknownWorkstream = fmtErr("unknown workstream")
)

func fmtErr(msg string) error { return &simpleError{msg} }

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }

func expandHome(dir string) string {
	if strings.HasPrefix(dir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}

// handlePrompt acquires the session lock, acks immediately, then runs the
// agent invocation asynchronously so the connection stays responsive.
func (s *Server) handlePrompt(conn *Connection, payload []byte) {
	var req wire.PromptRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.send(s.Log, wire.NewError("malformed prompt: "+err.Error(), ""))
		return
	}

	sessionID, resume, workingDir, err := s.resolvePromptTarget(req)
	if err != nil {
		conn.send(s.Log, wire.NewError(err.Error(), ""))
		return
	}
	if sessionID == "" {
		// A workstream with no active session mints a fresh session ID here;
		// req.NewSessionID is empty for this request shape.
		sessionID = uuid.NewString()
	}

	if !s.Locks.TryAcquire(sessionID) {
		conn.send(s.Log, wire.SessionLocked{Type: "session_locked", SessionID: sessionID, Message: "a request is already in flight for this session"})
		return
	}

	conn.send(s.Log, wire.Ack{Type: "ack", SessionID: sessionID, MessageID: req.MessageID})

	go s.runPrompt(conn, sessionID, resume, workingDir, req)
}

func (s *Server) runPrompt(conn *Connection, sessionID string, resume bool, workingDir string, req wire.PromptRequest) {
	defer s.Locks.Release(sessionID)

	result := s.Invoker.Invoke(context.Background(), agent.InvokeOpts{
		SessionID:        sessionID,
		Resume:           resume,
		Prompt:           req.Text,
		WorkingDirectory: workingDir,
	})

	if !result.Success {
		conn.send(s.Log, wire.NewError(result.Error, sessionID))
		conn.send(s.Log, wire.TurnComplete{Type: "turn_complete", SessionID: sessionID})
		return
	}

	if req.WorkstreamID != "" && s.Workstreams != nil {
		_ = s.Workstreams.SetActiveSession(req.WorkstreamID, result.SessionID)
	}

	conn.send(s.Log, wire.AgentResponse{Type: "response", SessionID: sessionID, Text: result.Result})
	conn.send(s.Log, wire.TurnComplete{Type: "turn_complete", SessionID: sessionID})
}

func (s *Server) handleClearContext(conn *Connection, payload []byte) {
	var req struct {
		WorkstreamID string `json:"workstream_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.WorkstreamID == "" || s.Workstreams == nil {
		conn.send(s.Log, wire.NewError("clear_context requires workstream_id", ""))
		return
	}
	prev, err := s.Workstreams.Unlink(req.WorkstreamID)
	if err != nil {
		conn.send(s.Log, wire.NewError(err.Error(), ""))
		return
	}
	conn.send(s.Log, wire.ContextCleared{Type: "context_cleared", WorkstreamID: req.WorkstreamID, PreviousClaudeSessionID: prev})
}

func (s *Server) handleCompactSession(conn *Connection, payload []byte) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		conn.send(s.Log, wire.NewError("compact_session requires session_id", ""))
		return
	}

	if !s.Locks.TryAcquire(req.SessionID) {
		conn.send(s.Log, wire.SessionLocked{Type: "session_locked", SessionID: req.SessionID, Message: "session busy"})
		return
	}

	go func() {
		defer s.Locks.Release(req.SessionID)
		meta, _ := s.Index.Get(req.SessionID)
		result := s.Invoker.Invoke(context.Background(), agent.InvokeOpts{
			SessionID:        req.SessionID,
			Resume:           true,
			Prompt:           "/compact",
			WorkingDirectory: meta.WorkingDirectory,
		})
		if !result.Success {
			conn.send(s.Log, wire.CompactionError{Type: "compaction_error", SessionID: req.SessionID, Error: result.Error})
			return
		}
		conn.send(s.Log, wire.CompactionComplete{Type: "compaction_complete", SessionID: req.SessionID})
	}()
}

func (s *Server) handleStartRecipe(conn *Connection, payload []byte) {
	var req struct {
		RecipeID         string `json:"recipe_id"`
		SessionID        string `json:"session_id"`
		WorkingDirectory string `json:"working_directory,omitempty"`
		WorkstreamID     string `json:"workstream_id,omitempty"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.RecipeID == "" || req.SessionID == "" {
		conn.send(s.Log, wire.NewError("start_recipe requires recipe_id and session_id", ""))
		return
	}

	_, sessionExists := s.Index.Get(req.SessionID)
	go s.orchestrator.StartRecipe(context.Background(), req.RecipeID, req.SessionID, req.WorkingDirectory, req.WorkstreamID, sessionExists)
}

func (s *Server) handleKillSession(conn *Connection, payload []byte) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
		return
	}
	if err := s.Invoker.Kill(req.SessionID, gracePeriod); err != nil {
		conn.send(s.Log, wire.NewError(err.Error(), req.SessionID))
	}
}
