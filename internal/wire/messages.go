package wire

import "encoding/json"

// Envelope is the minimal shape every incoming frame must satisfy: a
// required string "type" discriminator plus arbitrary other fields.
type Envelope struct {
	Type string `json:"type"`
}

// Hello is the unsolicited message sent on transport open, before
// authentication.
type Hello struct {
	Type         string `json:"type"`
	Version      string `json:"version"`
	AuthVersion  int    `json:"auth_version"`
	Instructions string `json:"instructions"`
}

func NewHello(version string) Hello {
	return Hello{
		Type:         "hello",
		Version:      version,
		AuthVersion:  1,
		Instructions: "send connect {api_key} to authenticate",
	}
}

// AuthError is sent on any authentication failure. The message is always
// the same string regardless of failure mode, so a client can never
// distinguish "unknown key" from "malformed request" by reading it.
type AuthError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const AuthFailureMessage = "Authentication failed"

func NewAuthError() AuthError {
	return AuthError{Type: "auth_error", Message: AuthFailureMessage}
}

// ConnectRequest is the client's authentication frame.
type ConnectRequest struct {
	Type                string `json:"type"`
	APIKey              string `json:"api_key"`
	SessionID           string `json:"session_id,omitempty"`
	RecentSessionsLimit *int   `json:"recent_sessions_limit,omitempty"`
}

// SessionSummary appears in session_list.
type SessionSummary struct {
	SessionID        string `json:"session_id"`
	Name             string `json:"name"`
	WorkingDirectory string `json:"working_directory"`
	LastModified     string `json:"last_modified"`
	MessageCount     int    `json:"message_count"`
}

type SessionList struct {
	Type       string           `json:"type"`
	Sessions   []SessionSummary `json:"sessions"`
	TotalCount int              `json:"total_count"`
}

// RecentSessionEntry intentionally has no Name field: the client supplies
// its own display name.
type RecentSessionEntry struct {
	SessionID        string `json:"session_id"`
	WorkingDirectory string `json:"working_directory"`
	LastModified     string `json:"last_modified"`
	MessageCount     int    `json:"message_count"`
}

type RecentSessions struct {
	Type     string                `json:"type"`
	Sessions []RecentSessionEntry  `json:"sessions"`
	Limit    int                   `json:"limit"`
}

// SessionEvent covers both session_created and session_updated; Messages
// is only populated for session_updated.
type SessionEvent struct {
	Type             string           `json:"type"`
	SessionID        string           `json:"session_id"`
	Name             string           `json:"name"`
	WorkingDirectory string           `json:"working_directory"`
	LastModified     string           `json:"last_modified"`
	MessageCount     int              `json:"message_count"`
	Messages         []TranscriptLine `json:"messages,omitempty"`
}

// TranscriptLine is a filtered, client-visible transcript record.
type TranscriptLine struct {
	Role      string          `json:"role"`
	Text      string          `json:"text,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Usage     json.RawMessage `json:"usage,omitempty"`
	Cost      json.RawMessage `json:"cost,omitempty"`
}

type CommandDescriptor struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type AvailableCommands struct {
	Type             string              `json:"type"`
	WorkingDirectory string              `json:"working_directory"`
	ProjectCommands  []CommandDescriptor `json:"project_commands"`
	GeneralCommands  []CommandDescriptor `json:"general_commands"`
}

// GeneralCommands is the fixed set of commands available regardless of
// working directory.
func GeneralCommands() []CommandDescriptor {
	return []CommandDescriptor{
		{ID: "git.status", Label: "Git Status", Description: "show working tree status", Type: "command"},
		{ID: "git.push", Label: "Git Push", Description: "push local commits to the remote", Type: "command"},
		{ID: "git.worktree.list", Label: "List Worktrees", Description: "list git worktrees", Type: "command"},
		{ID: "bd.ready", Label: "Ready Beads", Description: "list beads ready to work on", Type: "command"},
		{ID: "bd.list", Label: "List Beads", Description: "list all beads", Type: "command"},
	}
}

type PromptRequest struct {
	Type             string `json:"type"`
	NewSessionID     string `json:"new_session_id,omitempty"`
	ResumeSessionID  string `json:"resume_session_id,omitempty"`
	WorkstreamID     string `json:"workstream_id,omitempty"`
	Text             string `json:"text"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	MessageID        string `json:"message_id,omitempty"`
}

type Ack struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

type AgentResponse struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Text      string          `json:"text"`
	Usage     json.RawMessage `json:"usage,omitempty"`
	Cost      json.RawMessage `json:"cost,omitempty"`
}

type TurnComplete struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func NewError(message string, sessionID string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: message, SessionID: sessionID}
}

type SessionLocked struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type Pong struct {
	Type string `json:"type"`
}

type RecipeStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	RecipeID  string `json:"recipe_id"`
	Step      string `json:"step"`
}

type RecipeStepTransition struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	FromStep  string `json:"from_step"`
	ToStep    string `json:"to_step"`
	Outcome   string `json:"outcome"`
}

type RecipeExited struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

type OrchestrationRetry struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Step      string `json:"step"`
}

type ContextCleared struct {
	Type                     string `json:"type"`
	WorkstreamID             string `json:"workstream_id"`
	PreviousClaudeSessionID  string `json:"previous_claude_session_id"`
}

type CompactionComplete struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type CompactionError struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

type AvailableRecipes struct {
	Type    string   `json:"type"`
	Recipes []string `json:"recipes"`
}

// UploadFileRequest is the framed-protocol counterpart to the short-lived
// HTTP upload channel: same fields, delivered over an already-authenticated
// connection instead of a fresh Bearer-keyed request.
type UploadFileRequest struct {
	Type            string `json:"type"`
	Filename        string `json:"filename"`
	Content         string `json:"content"`
	StorageLocation string `json:"storage_location"`
}

type FileUploaded struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Timestamp string `json:"timestamp"`
}

type ListResourcesRequest struct {
	Type            string `json:"type"`
	StorageLocation string `json:"storage_location"`
}

type ResourcesList struct {
	Type            string   `json:"type"`
	StorageLocation string   `json:"storage_location"`
	Filenames       []string `json:"filenames"`
}

type DeleteResourceRequest struct {
	Type            string `json:"type"`
	StorageLocation string `json:"storage_location"`
	Filename        string `json:"filename"`
}

type ResourceDeleted struct {
	Type            string `json:"type"`
	StorageLocation string `json:"storage_location"`
	Filename        string `json:"filename"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}
