package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func bytesReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}

// agentRecord is one element of the JSON array the agent writes to
// stdout; only the "result"-typed record carries the final reply.
type agentRecord struct {
	Type      string `json:"type"`
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
	IsError   bool   `json:"is_error"`
}

// parseReply reads the captured stdout file and extracts the record with
// type == "result". Parse failure yields {success: false, error}.
func parseReply(outputPath, fallbackSessionID string) Result {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("reading agent output: %v", err)}
	}

	var records []agentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("parsing agent output: %v", err)}
	}

	for _, rec := range records {
		if rec.Type != "result" {
			continue
		}
		sessionID := rec.SessionID
		if sessionID == "" {
			sessionID = fallbackSessionID
		}
		if rec.IsError {
			return Result{Success: false, Error: rec.Result, SessionID: sessionID}
		}
		return Result{Success: true, Result: rec.Result, SessionID: sessionID}
	}

	return Result{Success: false, Error: "no result record in agent output"}
}
