package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/layoutfmt"
	"github.com/dhmunro/dudley/runtime"
)

func TestWatcherPrintsDiffs(t *testing.T) {
	sources := []string{
		"x = i4\ny = i4\n",
		"x = i4\nq = i2\n",
		"x = i4\nx = i4\n",
		"x = i4\nq = i2\nz = f8\n",
	}
	calls := 0
	var out bytes.Buffer
	w := &layoutWatcher{
		path: "a.dud",
		out:  &out,
		load: func() (*layoutfmt.Document, error) {
			src := sources[calls]
			calls++
			r, err := runtime.Resolve([]byte(src), runtime.Options{Logger: quiet})
			if err != nil {
				return nil, err
			}
			return layoutfmt.Canonicalize(r.Layout, r.Placement), nil
		},
	}

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error)
	go func() { done <- w.run(ctx, events, errs) }()

	events <- fsnotify.Event{Name: "other.dud", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "a.dud", Op: fsnotify.Chmod}
	events <- fsnotify.Event{Name: "a.dud", Op: fsnotify.Write}
	events <- fsnotify.Event{Name: "./a.dud", Op: fsnotify.Write}
	errs <- errors.New("watch overflow")
	events <- fsnotify.Event{Name: "a.dud", Op: fsnotify.Create}
	close(events)
	require.NoError(t, <-done)

	assert.Equal(t, 4, calls)
	got := out.String()
	assert.Contains(t, got, "└─ y = i4  @4 +4\n")
	assert.Contains(t, got, "Added items:\n  + /q: q = i2  @4 +2\n")
	assert.Contains(t, got, "Removed items:\n  - /y: y = i4  @4 +4\n")
	assert.Contains(t, got, "NameConflictError")
	assert.Contains(t, got, "Error: watch overflow\n")
	// The last diff is against the last good layout, not the failed one.
	assert.Contains(t, got, "Added items:\n  + /z: z = f8  @8 +8\n")
}
