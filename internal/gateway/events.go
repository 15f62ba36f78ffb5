package gateway

import (
	"time"

	"github.com/voicecode/voiced/internal/replicate"
	"github.com/voicecode/voiced/internal/wire"
)

func isoZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func toSummary(m replicate.SessionMetadata) wire.SessionSummary {
	return wire.SessionSummary{
		SessionID:        m.SessionID,
		Name:             m.Name,
		WorkingDirectory: displayWorkingDirectory(m),
		LastModified:     isoZ(m.LastModified),
		MessageCount:     m.MessageCount,
	}
}

func toRecentEntry(m replicate.SessionMetadata) wire.RecentSessionEntry {
	return wire.RecentSessionEntry{
		SessionID:        m.SessionID,
		WorkingDirectory: displayWorkingDirectory(m),
		LastModified:     isoZ(m.LastModified),
		MessageCount:     m.MessageCount,
	}
}

// displayWorkingDirectory falls back to a placeholder built from the
// mangled project directory name when metadata has no resolved working
// directory, emitting "[from project: <mangled>]" instead of an empty
// string.
func displayWorkingDirectory(m replicate.SessionMetadata) string {
	if m.WorkingDirectory != "" {
		return m.WorkingDirectory
	}
	return "[from project: " + mangledStem(m.FilePath) + "]"
}

func mangledStem(filePath string) string {
	// The project directory is the parent of the transcript file.
	dir := filePath
	if idx := lastSlash(filePath); idx >= 0 {
		dir = filePath[:idx]
	}
	if idx := lastSlash(dir); idx >= 0 {
		return dir[idx+1:]
	}
	return dir
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func (s *Server) pushSessionList(conn *Connection) {
	all := s.Index.List()
	summaries := make([]wire.SessionSummary, 0, len(all))
	for _, m := range all {
		summaries = append(summaries, toSummary(m))
	}
	conn.send(s.Log, wire.SessionList{Type: "session_list", Sessions: summaries, TotalCount: len(summaries)})
}

func (s *Server) pushRecentSessions(conn *Connection) {
	all := s.Index.List()
	limit := conn.RecentSessionsLimit()
	entries := make([]wire.RecentSessionEntry, 0, limit)
	for i, m := range all {
		if i >= limit {
			break
		}
		entries = append(entries, toRecentEntry(m))
	}
	conn.send(s.Log, wire.RecentSessions{Type: "recent_sessions", Sessions: entries, Limit: limit})
}

func (s *Server) pushAvailableCommands(conn *Connection) {
	dir := conn.WorkingDirectory()
	conn.send(s.Log, wire.AvailableCommands{
		Type:             "available_commands",
		WorkingDirectory: dir,
		ProjectCommands:  makefileCommands(dir),
		GeneralCommands:  wire.GeneralCommands(),
	})
}

// replayHistory sends the full parsed transcript for sessionID as a
// single session_updated-shaped push, used on subscribe.
func (s *Server) replayHistory(conn *Connection, sessionID string) {
	meta, ok := s.Index.Get(sessionID)
	if !ok {
		return
	}
	lines, _, err := readTranscript(meta.FilePath)
	if err != nil {
		return
	}
	conn.send(s.Log, wire.SessionEvent{
		Type:             "session_updated",
		SessionID:        meta.SessionID,
		Name:             meta.Name,
		WorkingDirectory: displayWorkingDirectory(meta),
		LastModified:     isoZ(meta.LastModified),
		MessageCount:     meta.MessageCount,
		Messages:         lines,
	})
}

// onSessionCreated is the replication watcher's session-creation
// callback; it broadcasts session_created to every eligible connection.
func (s *Server) onSessionCreated(meta replicate.SessionMetadata) {
	s.broadcast(meta.SessionID, wire.SessionEvent{
		Type:             "session_created",
		SessionID:        meta.SessionID,
		Name:             meta.Name,
		WorkingDirectory: displayWorkingDirectory(meta),
		LastModified:     isoZ(meta.LastModified),
		MessageCount:     meta.MessageCount,
	})
}

// onSessionUpdated is the tailer's incremental-append callback.
func (s *Server) onSessionUpdated(sessionID string, lines []wire.TranscriptLine) {
	meta, ok := s.Index.Get(sessionID)
	if !ok {
		return
	}
	s.broadcast(sessionID, wire.SessionEvent{
		Type:             "session_updated",
		SessionID:        meta.SessionID,
		Name:             meta.Name,
		WorkingDirectory: displayWorkingDirectory(meta),
		LastModified:     isoZ(meta.LastModified),
		MessageCount:     meta.MessageCount,
		Messages:         lines,
	})
}

// broadcast iterates the connection table and sends v to every
// authenticated connection that has not marked sessionID deleted.
func (s *Server) broadcast(sessionID string, v any) {
	for _, conn := range s.conns.Snapshot() {
		if !conn.IsAuthenticated() {
			continue
		}
		if conn.HasDeleted(sessionID) {
			continue
		}
		conn.send(s.Log, v)
	}
}

func readTranscript(path string) ([]wire.TranscriptLine, int64, error) {
	return replicate.ReadFrom(path, 0)
}
