// Package inventory parses the device listing collaborator's output and
// reconciles each fresh observation against the previously accepted
// device set, protecting devices with in-flight work from being dropped.
package inventory

import (
	"slices"
	"sort"
	"strings"

	"github.com/flashwarden/flashwarden/internal/model"
)

// ParseRows parses listing stdout: one device per line, tab separated
// `path\tsize\tmanufacturer` with trailing fields optional. Rows with an
// empty device key are discarded.
func ParseRows(stdout string) []model.DeviceRow {
	var rows []model.DeviceRow
	for _, raw := range strings.Split(stdout, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] == "" {
			continue
		}
		row := model.DeviceRow{Device: parts[0]}
		if len(parts) > 1 {
			row.Size = parts[1]
		}
		if len(parts) > 2 {
			row.Manufacturer = parts[2]
		}
		rows = append(rows, row)
	}
	return rows
}

// ActiveFunc reports whether a device key has an in-flight workflow run.
type ActiveFunc func(key string) bool

// Reconcile diffs freshly observed rows against the previously accepted
// set. Keys that vanished but still have an active run are retained with
// their last-known attributes (or blank ones); the remaining vanished
// keys are returned as forget and callers must release all state
// associated with them. changed is false when the resulting set is
// identical to previous by key, attributes and order, so callers can
// skip redundant downstream updates.
func Reconcile(previous, observed []model.DeviceRow, active ActiveFunc) (next []model.DeviceRow, forget []string, changed bool) {
	next = make([]model.DeviceRow, 0, len(observed))
	current := make(map[string]struct{}, len(observed))
	for _, row := range observed {
		if row.Device == "" {
			continue
		}
		next = append(next, row)
		current[row.Device] = struct{}{}
	}

	prevRows := make(map[string]model.DeviceRow, len(previous))
	var removed []string
	for _, row := range previous {
		prevRows[row.Device] = row
		if _, ok := current[row.Device]; !ok {
			removed = append(removed, row.Device)
		}
	}
	sort.Strings(removed)

	for _, key := range removed {
		if active != nil && active(key) {
			// a device mid-flash may briefly disappear from the
			// listing; keep it visible until its run ends
			row, ok := prevRows[key]
			if !ok {
				row = model.DeviceRow{Device: key}
			}
			next = append(next, row)
			current[key] = struct{}{}
			continue
		}
		forget = append(forget, key)
	}

	return next, forget, !slices.Equal(next, previous)
}
