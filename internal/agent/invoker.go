// Package agent spawns the external coding agent as a child process, feeds
// it a prompt, and collects its structured JSON reply.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Result is the explicit outcome value returned by an invocation, in place
// of exception-based control flow.
type Result struct {
	Success   bool
	Result    string
	SessionID string
	Error     string
	ExitCode  int
	Timeout   bool
}

// EventSink reports invocation progress without the caller needing to know
// about os/exec. Any method may be nil.
type EventSink struct {
	OnStart func(sessionID string, pid int)
}

// Invoker tracks live child processes so kill_claude_session can terminate
// them, and bounds every invocation with a timeout.
type Invoker struct {
	// BinaryPath is the agent executable. Defaults to "claude" on the PATH.
	BinaryPath string
	// Timeout bounds a single invocation. Defaults to 24h.
	Timeout time.Duration
	// OutputDir is where stdout is captured to avoid memory bloat on long
	// replies. Defaults to os.TempDir().
	OutputDir string

	mu        sync.Mutex
	processes map[string]*os.Process
}

func NewInvoker(binaryPath, outputDir string) *Invoker {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &Invoker{
		BinaryPath: binaryPath,
		Timeout:    24 * time.Hour,
		OutputDir:  outputDir,
		processes:  make(map[string]*os.Process),
	}
}

// InvokeOpts describes one prompt invocation. Exactly one of NewSessionID
// or ResumeSessionID must be set by the caller before calling Invoke (the
// caller — the gateway's prompt handler — enforces that XOR contract;
// Invoke itself just needs a session key to track the process under).
type InvokeOpts struct {
	SessionID        string // the ID used for process tracking and as --session-id/--resume
	Resume           bool   // true -> --resume, false -> --session-id
	Prompt           string
	WorkingDirectory string
	Model            string // "", "haiku", "sonnet", or "opus"
	Sink             EventSink
}

// Invoke runs the agent synchronously and returns its parsed result. The
// caller is expected to run this on its own goroutine since it blocks for
// the duration of the child process.
func (inv *Invoker) Invoke(ctx context.Context, opts InvokeOpts) Result {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"--print", "--output-format", "json", "--dangerously-skip-permissions"}
	if opts.Resume {
		args = append(args, "--resume", opts.SessionID)
	} else {
		args = append(args, "--session-id", opts.SessionID)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	cmd := exec.CommandContext(ctx, inv.BinaryPath, args...)
	if opts.WorkingDirectory != "" {
		cmd.Dir = opts.WorkingDirectory
	}
	cmd.Stdin = bytesReader(opts.Prompt)

	outFile, err := inv.openOutputFile(opts.SessionID)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("creating output capture file: %v", err)}
	}
	defer outFile.Close()
	cmd.Stdout = outFile
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("starting agent process: %v", err)}
	}

	inv.track(opts.SessionID, cmd.Process)
	defer inv.untrack(opts.SessionID)

	if opts.Sink.OnStart != nil {
		opts.Sink.OnStart(opts.SessionID, cmd.Process.Pid)
	}

	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{Success: false, Error: "timeout", Timeout: true}
	}

	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{Success: false, Error: stderrOrGeneric(stderr.String(), waitErr), ExitCode: exitCode}
	}

	return parseReply(outFile.Name(), opts.SessionID)
}

// Kill terminates the tracked process for sessionID: a polite SIGTERM
// first, then SIGKILL if it is still alive after gracePeriod. Idempotent
// if the session has no tracked process.
func (inv *Invoker) Kill(sessionID string, gracePeriod time.Duration) error {
	inv.mu.Lock()
	proc, ok := inv.processes[sessionID]
	inv.mu.Unlock()
	if !ok {
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return proc.Kill()
	}

	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(gracePeriod):
		return proc.Kill()
	}
}

func (inv *Invoker) track(sessionID string, p *os.Process) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.processes[sessionID] = p
}

func (inv *Invoker) untrack(sessionID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.processes, sessionID)
}

func (inv *Invoker) openOutputFile(sessionID string) (*os.File, error) {
	dir := inv.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("agent-%s-%s.out", sessionID, uuid.NewString())
	return os.Create(dir + string(os.PathSeparator) + name)
}

func stderrOrGeneric(stderr string, err error) string {
	if stderr != "" {
		return stderr
	}
	return err.Error()
}
