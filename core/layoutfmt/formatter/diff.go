package formatter

import (
	"fmt"
	"strings"

	"github.com/dhmunro/dudley/core/layoutfmt"
)

// DiffResult is the difference between two documents, item by path.
type DiffResult struct {
	OrderChanged string // "old -> new" when the default byte order changed
	Added        []ItemDiff
	Removed      []ItemDiff
	Modified     []ItemDiff
}

// ItemDiff is one changed item.
type ItemDiff struct {
	Path     string
	Expected string // empty for added items
	Actual   string // empty for removed items
}

// Empty reports whether the documents are the same.
func (r *DiffResult) Empty() bool {
	return r.OrderChanged == "" && len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Diff compares two documents. Items are matched by kind, path and the
// number of earlier items sharing both, so a parameter and a data item of
// the same name, or two declarations of one parameter, pair up with their
// own counterparts. Matched items are compared by their rendering, so a
// moved address shows as a modification.
func Diff(expected, actual *layoutfmt.Document) *DiffResult {
	result := &DiffResult{}
	if expected.Order != actual.Order {
		result.OrderChanged = fmt.Sprintf("%s -> %s", expected.Order, actual.Order)
	}

	want, wantOrder := index(expected)
	got, gotOrder := index(actual)
	for _, k := range wantOrder {
		e := want[k]
		a, ok := got[k]
		if !ok {
			result.Removed = append(result.Removed, ItemDiff{Path: e.Path, Expected: FormatItem(e, false)})
			continue
		}
		es, as := FormatItem(e, false), FormatItem(a, false)
		if es != as {
			result.Modified = append(result.Modified, ItemDiff{Path: e.Path, Expected: es, Actual: as})
		}
	}
	for _, k := range gotOrder {
		if _, ok := want[k]; ok {
			continue
		}
		a := got[k]
		result.Added = append(result.Added, ItemDiff{Path: a.Path, Actual: FormatItem(a, false)})
	}
	return result
}

type itemKey struct {
	kind, path string
	n          int
}

// index keys the tracked items of d, returning the keys in document order.
func index(d *layoutfmt.Document) (map[itemKey]*layoutfmt.Item, []itemKey) {
	byKey := make(map[itemKey]*layoutfmt.Item, len(d.Items))
	order := make([]itemKey, 0, len(d.Items))
	count := make(map[itemKey]int)
	for i := range d.Items {
		it := &d.Items[i]
		if !tracked(it) {
			continue
		}
		base := itemKey{kind: it.Kind, path: it.Path}
		k := itemKey{kind: it.Kind, path: it.Path, n: count[base]}
		count[base]++
		byKey[k] = it
		order = append(order, k)
	}
	return byKey, order
}

// tracked skips the root and inline types, whose paths carry item ids.
func tracked(it *layoutfmt.Item) bool {
	return it.ID != 0 && !strings.HasPrefix(it.Path, "{#")
}

// FormatDiff returns a human-readable diff display.
func FormatDiff(result *DiffResult, useColor bool) string {
	var b strings.Builder

	red, green, yellow, reset := "", "", "", ""
	if useColor {
		red, green, yellow, reset = ColorRed, ColorGreen, ColorYellow, ColorReset
	}

	if result.OrderChanged != "" {
		fmt.Fprintf(&b, "%sByte order changed: %s%s\n\n", yellow, result.OrderChanged, reset)
	}

	if len(result.Modified) > 0 {
		fmt.Fprintf(&b, "%sModified items:%s\n", yellow, reset)
		for _, diff := range result.Modified {
			fmt.Fprintf(&b, "  %s:\n", diff.Path)
			fmt.Fprintf(&b, "    %s- %s%s\n", red, diff.Expected, reset)
			fmt.Fprintf(&b, "    %s+ %s%s\n", green, diff.Actual, reset)
		}
		fmt.Fprintln(&b)
	}

	if len(result.Added) > 0 {
		fmt.Fprintf(&b, "%sAdded items:%s\n", green, reset)
		for _, diff := range result.Added {
			fmt.Fprintf(&b, "  %s+ %s: %s%s\n", green, diff.Path, diff.Actual, reset)
		}
		fmt.Fprintln(&b)
	}

	if len(result.Removed) > 0 {
		fmt.Fprintf(&b, "%sRemoved items:%s\n", red, reset)
		for _, diff := range result.Removed {
			fmt.Fprintf(&b, "  %s- %s: %s%s\n", red, diff.Path, diff.Expected, reset)
		}
		fmt.Fprintln(&b)
	}

	if result.Empty() {
		fmt.Fprintln(&b, "No differences found.")
	}
	return b.String()
}
