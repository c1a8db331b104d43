package model

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrDetails flattens a CUE validation error into one human readable
// line per underlying cause, so the CLI can print each on its own log
// record instead of one concatenated blob.
func CueErrDetails(err error) []string {
	if err == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		line := fmt.Sprintf(format, args...)
		if path := strings.Join(e.Path(), "."); path != "" {
			line = path + ": " + line
		}
		if pos := e.Position(); pos.IsValid() {
			line += fmt.Sprintf(" (%s:%d:%d)", pos.Filename(), pos.Line(), pos.Column())
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}

	if len(out) == 0 {
		return []string{err.Error()}
	}
	return out
}
