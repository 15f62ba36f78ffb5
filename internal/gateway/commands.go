package gateway

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/voicecode/voiced/internal/wire"
)

var makeTargetPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*):`)

// makefileCommands derives project_commands by parsing target lines out of
// a Makefile in dir.
func makefileCommands(dir string) []wire.CommandDescriptor {
	if dir == "" {
		return nil
	}
	f, err := os.Open(filepath.Join(dir, "Makefile"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []wire.CommandDescriptor
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		m := makeTargetPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := m[1]
		if target == ".PHONY" || strings.HasPrefix(target, ".") || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, wire.CommandDescriptor{
			ID:          "make." + target,
			Label:       target,
			Description: "run `make " + target + "`",
			Type:        "command",
		})
	}
	return out
}
