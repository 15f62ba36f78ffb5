package replicate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/voicecode/voiced/internal/wire"
)

const (
	defaultDebounce = 200 * time.Millisecond
	defaultRetries  = 3
	retryBackoff    = 25 * time.Millisecond
)

// Callbacks are the client-visible side effects the watcher triggers.
// Injected at construction so tests can substitute fakes.
type Callbacks struct {
	OnSessionCreated func(meta SessionMetadata)
	OnSessionUpdated func(sessionID string, lines []wire.TranscriptLine)
}

// Watcher discovers, indexes, and tails transcript files beneath Root.
type Watcher struct {
	Root      string
	Index     *Index
	Callbacks Callbacks
	Debounce  time.Duration

	fs *fsnotify.Watcher
	log *slog.Logger

	posMu     sync.Mutex
	positions map[string]int64

	debMu       sync.Mutex
	debounce    map[string]*time.Timer
	pendingLast map[string]bool

	watchedDirs sync.Map // project dir path -> struct{}
}

func NewWatcher(root string, index *Index, cb Callbacks, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		Root:        root,
		Index:       index,
		Callbacks:   cb,
		Debounce:    defaultDebounce,
		fs:          fsw,
		log:         log,
		positions:   make(map[string]int64),
		debounce:    make(map[string]*time.Timer),
		pendingLast: make(map[string]bool),
	}, nil
}

// Start performs the initial scan, seeds the file-position table, and
// begins watching Root plus every existing project subdirectory.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.Root, 0755); err != nil {
		return err
	}
	if err := w.fs.Add(w.Root); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			w.watchProjectDir(filepath.Join(w.Root, e.Name()))
		}
	}

	if err := w.revalidateIndex(); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// revalidateIndex re-scans Root and rebuilds the index from scratch if it
// has drifted from the on-disk file list (NeedsRebuild). Run at startup
// and on every directory-creation event.
func (w *Watcher) revalidateIndex() error {
	scanned, err := ScanDirectory(w.Root)
	if err != nil {
		return err
	}
	if NeedsRebuild(w.Index, scanned) {
		w.rebuildIndex(scanned)
	}
	return nil
}

// rebuildIndex repopulates the index from an authoritative on-disk scan
// and drops any entry whose file no longer exists.
func (w *Watcher) rebuildIndex(onDisk []SessionMetadata) {
	onDiskByID := make(map[string]struct{}, len(onDisk))
	for _, meta := range onDisk {
		onDiskByID[meta.SessionID] = struct{}{}
		w.indexExistingFile(meta)
	}
	for _, meta := range w.Index.List() {
		if _, ok := onDiskByID[meta.SessionID]; !ok {
			w.Index.Delete(meta.SessionID)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) watchProjectDir(dir string) {
	if _, already := w.watchedDirs.LoadOrStore(dir, struct{}{}); already {
		return
	}
	if err := w.fs.Add(dir); err != nil {
		w.log.Warn("failed to watch project directory", "dir", dir, "error", err)
	}
}

// indexExistingFile seeds FilePosition to the current file size for a
// file discovered at startup (not a live create event), then does a
// one-shot metadata read without advancing the tailer position further.
func (w *Watcher) indexExistingFile(meta SessionMetadata) {
	info, err := os.Stat(meta.FilePath)
	if err != nil {
		return
	}
	w.setPosition(meta.FilePath, info.Size())

	lines, _, err := ReadFrom(meta.FilePath, 0)
	if err == nil {
		meta.MessageCount = len(lines)
		if len(lines) > 0 {
			meta.Preview = lines[len(lines)-1].Text
		}
	}
	w.Index.Set(meta)
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	if ev.Op&fsnotify.Create != 0 && isDir {
		base := filepath.Base(ev.Name)
		if strings.HasPrefix(base, ".") {
			return // hidden-directory policy: no watch added
		}
		w.watchProjectDir(ev.Name)
		if err := w.revalidateIndex(); err != nil {
			w.log.Warn("index revalidation failed", "error", err)
		}
		return
	}

	if !strings.HasSuffix(ev.Name, ".jsonl") {
		return
	}
	stem := strings.TrimSuffix(filepath.Base(ev.Name), ".jsonl")
	sessionID, ok := Canonicalize(stem)
	if !ok {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.handleCreate(sessionID, ev.Name)
	case ev.Op&fsnotify.Write != 0:
		w.scheduleTail(sessionID, ev.Name)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.Index.Delete(sessionID)
	}
}

// handleCreate sets FilePosition to the file's current size before the
// session is registered, so the first subsequent write event does not
// re-emit the initial contents as new messages.
func (w *Watcher) handleCreate(sessionID, path string) {
	info, err := os.Stat(path)
	var size int64
	if err == nil {
		size = info.Size()
	}
	w.setPosition(path, size)

	lines, _, err := ReadFrom(path, 0)
	meta := SessionMetadata{
		SessionID:    sessionID,
		FilePath:     path,
		CreatedAt:    time.Now(),
		LastModified: time.Now(),
	}
	if err == nil {
		meta.MessageCount = len(lines)
		if len(lines) > 0 {
			meta.Preview = lines[len(lines)-1].Text
		}
	}
	w.Index.Set(meta)

	if w.Callbacks.OnSessionCreated != nil {
		w.Callbacks.OnSessionCreated(meta)
	}
}

// scheduleTail debounces successive write events for the same session;
// the last event after a quiet period is guaranteed to fire.
func (w *Watcher) scheduleTail(sessionID, path string) {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w.debMu.Lock()
	defer w.debMu.Unlock()

	if timer, pending := w.debounce[sessionID]; pending {
		timer.Stop()
	}
	w.debounce[sessionID] = time.AfterFunc(debounce, func() {
		w.debMu.Lock()
		delete(w.debounce, sessionID)
		w.debMu.Unlock()
		w.tail(sessionID, path)
	})
}

func (w *Watcher) tail(sessionID, path string) {
	offset := w.getPosition(path)

	var lines []wire.TranscriptLine
	var newOffset int64
	var err error
	for attempt := 0; attempt < defaultRetries; attempt++ {
		lines, newOffset, err = ReadFrom(path, offset)
		if err == nil {
			break
		}
		if os.IsNotExist(err) {
			return
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
	if err != nil {
		w.log.Error("tail failed permanently", "session_id", sessionID, "path", path, "error", err)
		return
	}

	w.setPosition(path, newOffset)

	if len(lines) == 0 {
		return
	}

	if meta, ok := w.Index.Get(sessionID); ok {
		meta.MessageCount += len(lines)
		meta.LastModified = time.Now()
		meta.Preview = lines[len(lines)-1].Text
		w.Index.Set(meta)
	}

	if w.Callbacks.OnSessionUpdated != nil {
		w.Callbacks.OnSessionUpdated(sessionID, lines)
	}
}

// Resubscribe resets FilePosition for sessionID's file and advances it to
// the current file size, so a subsequent full-history replay (via a
// separate mechanism) is followed only by true new content.
func (w *Watcher) Resubscribe(sessionID string) {
	meta, ok := w.Index.Get(sessionID)
	if !ok {
		return
	}
	info, err := os.Stat(meta.FilePath)
	if err != nil {
		return
	}
	w.setPosition(meta.FilePath, info.Size())
}

func (w *Watcher) getPosition(path string) int64 {
	w.posMu.Lock()
	defer w.posMu.Unlock()
	return w.positions[path]
}

func (w *Watcher) setPosition(path string, offset int64) {
	w.posMu.Lock()
	defer w.posMu.Unlock()
	w.positions[path] = offset
}
