// Package progress estimates a 0-100 flashing percentage from the
// unstructured output of the workflow collaborator. The transfer tool's
// reporting is not guaranteed structured, so the estimator always
// re-scans the full accumulated buffer: markers split across read
// chunks are picked up on a later call.
package progress

import (
	"regexp"
	"strconv"
)

// State is the per-run estimation state. TotalBytes is the permanent
// denominator once discovered; Percent is the last emitted value, -1
// until the first emission.
type State struct {
	TotalBytes int64
	Percent    int
}

func NewState() State {
	return State{Percent: -1}
}

var (
	sizeRx     = regexp.MustCompile(`FLASH_IMAGE_SIZE_BYTES=(\d+)`)
	transferRx = regexp.MustCompile(`(?:^|[\r\n])\s*(\d+)\s+bytes\b[^\r\n]*\btransferred\b`)
)

// Update re-scans the combined accumulated output and returns the next
// state plus whether a new percentage should be emitted. The percentage
// is monotonically non-decreasing within one run.
func Update(combined string, prior State) (State, bool) {
	next := prior
	changed := false

	if next.TotalBytes == 0 {
		if m := sizeRx.FindStringSubmatch(combined); m != nil {
			if v, err := strconv.ParseInt(m[1], 10, 64); err == nil && v > 0 {
				next.TotalBytes = v
				if next.Percent < 0 {
					next.Percent = 0
					changed = true
				}
			}
		}
	}
	if next.TotalBytes == 0 {
		return next, changed
	}

	matches := transferRx.FindAllStringSubmatch(combined, -1)
	if len(matches) == 0 {
		return next, changed
	}
	// the transfer tool reports periodically, the last match is current
	transferred, err := strconv.ParseInt(matches[len(matches)-1][1], 10, 64)
	if err != nil {
		return next, changed
	}

	percent := int(transferred * 100 / next.TotalBytes)
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < next.Percent {
		percent = next.Percent
	}
	if percent != next.Percent {
		next.Percent = percent
		changed = true
	}
	return next, changed
}

// Finish synthesizes the final 100% for a run that ended successfully
// before the transfer reporting caught up.
func Finish(prior State) (State, bool) {
	if prior.Percent == 100 {
		return prior, false
	}
	next := prior
	next.Percent = 100
	return next, true
}
