package gateway

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/voicecode/voiced/internal/wire"
)

type workstreamEvent struct {
	Type             string `json:"type"`
	WorkstreamID     string `json:"workstream_id"`
	Name             string `json:"name,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	ActiveSessionID  string `json:"active_claude_session_id,omitempty"`
}

func (s *Server) handleWorkstreamMessage(conn *Connection, msgType string, payload []byte) {
	if s.Workstreams == nil {
		conn.send(s.Log, wire.NewError("workstream store unavailable", ""))
		return
	}

	switch msgType {
	case "create_workstream":
		var req struct {
			Name             string `json:"name"`
			WorkingDirectory string `json:"working_directory"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.WorkingDirectory == "" {
			conn.send(s.Log, wire.NewError("create_workstream requires working_directory", ""))
			return
		}
		ws, err := s.Workstreams.Create(uuid.NewString(), req.Name, req.WorkingDirectory)
		if err != nil {
			conn.send(s.Log, wire.NewError(err.Error(), ""))
			return
		}
		s.broadcast(ws.ID, workstreamEvent{Type: "workstream_created", WorkstreamID: ws.ID, Name: ws.Name, WorkingDirectory: ws.WorkingDirectory})

	case "workstream_updated":
		var req struct {
			WorkstreamID string `json:"workstream_id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.WorkstreamID == "" {
			return
		}
		ws, err := s.Workstreams.Get(req.WorkstreamID)
		if err != nil || ws == nil {
			conn.send(s.Log, wire.NewError("unknown workstream", ""))
			return
		}
		s.broadcast(ws.ID, workstreamEvent{
			Type: "workstream_updated", WorkstreamID: ws.ID, Name: ws.Name,
			WorkingDirectory: ws.WorkingDirectory, ActiveSessionID: ws.ActiveSessionID,
		})

	case "workstream_list":
		all, err := s.Workstreams.List()
		if err != nil {
			conn.send(s.Log, wire.NewError(err.Error(), ""))
			return
		}
		events := make([]workstreamEvent, 0, len(all))
		for _, ws := range all {
			events = append(events, workstreamEvent{
				Type: "workstream", WorkstreamID: ws.ID, Name: ws.Name,
				WorkingDirectory: ws.WorkingDirectory, ActiveSessionID: ws.ActiveSessionID,
			})
		}
		conn.send(s.Log, struct {
			Type        string            `json:"type"`
			Workstreams []workstreamEvent `json:"workstreams"`
		}{"workstream_list", events})
	}
}
