package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/voicecode/voiced/internal/resource"
)

// handleUpload serves the short-lived HTTP upload endpoint: Authorization:
// Bearer <key>, case-sensitive prefix, absence or any other scheme
// returns 401 before anything is written.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		s.writeAuthFailure(w)
		return
	}
	key := strings.TrimPrefix(authz, prefix)
	if !s.ValidateKey(key) {
		s.writeAuthFailure(w)
		return
	}

	var req resource.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	result, err := resource.Save(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"filename":  result.Filename,
		"path":      result.Path,
		"size":      result.Size,
		"timestamp": isoZ(result.Timestamp),
	})
}

func (s *Server) writeAuthFailure(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="voice-code"`)
	writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Authentication failed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
