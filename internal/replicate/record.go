package replicate

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/voicecode/voiced/internal/wire"
)

// rawRecord mirrors the subset of a transcript line's JSON shape the
// replication engine inspects. Unknown fields are ignored by
// encoding/json, matching the "makes no attempt to reconstruct semantics
// beyond role, text, usage, and cost" non-goal.
type rawRecord struct {
	Role        string          `json:"role"`
	Text        string          `json:"text"`
	Timestamp   string          `json:"timestamp"`
	IsSidechain bool            `json:"isSidechain"`
	Type        string          `json:"type"`
	Usage       json.RawMessage `json:"usage"`
	Cost        json.RawMessage `json:"cost"`
}

// isFiltered reports whether a record must never reach a client and must
// never contribute to message_count.
func (r rawRecord) isFiltered() bool {
	return r.IsSidechain || r.Type == "summary" || r.Type == "system"
}

func (r rawRecord) toTranscriptLine() wire.TranscriptLine {
	return wire.TranscriptLine{
		Role:      r.Role,
		Text:      r.Text,
		Timestamp: r.Timestamp,
		Usage:     r.Usage,
		Cost:      r.Cost,
	}
}

// ReadFrom parses every complete line in the file at path starting at
// offset, returning the filtered, client-visible lines (their count is
// what message_count accounting adds) and the offset to resume from next
// time. Malformed lines are skipped silently. A trailing partial
// line (no final newline yet) is left unconsumed: the returned offset
// stops before it, so the next read picks up the full line once the
// writer finishes it.
func ReadFrom(path string, offset int64) (lines []wire.TranscriptLine, newOffset int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, err
	}

	reader := bufio.NewReader(f)
	pos := offset
	for {
		lineBytes, readErr := reader.ReadBytes('\n')
		if len(lineBytes) == 0 {
			break
		}
		if readErr == io.EOF {
			// Partial trailing line: do not advance past it.
			if lineBytes[len(lineBytes)-1] != '\n' {
				break
			}
		}
		pos += int64(len(lineBytes))

		var rec rawRecord
		if jsonErr := json.Unmarshal(trimNewline(lineBytes), &rec); jsonErr == nil {
			if !rec.isFiltered() {
				lines = append(lines, rec.toTranscriptLine())
			}
		}

		if readErr != nil {
			break
		}
	}
	return lines, pos, nil
}

func trimNewline(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
	}
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return b[:n]
}
