package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhmunro/dudley/core/annot"
	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/layoutfmt"
	"github.com/dhmunro/dudley/core/layoutfmt/formatter"
	"github.com/dhmunro/dudley/runtime"
)

// DisplayLayout renders the resolved item tree.
func DisplayLayout(w io.Writer, r *runtime.Result, useColor bool) {
	formatter.FormatTree(w, layoutfmt.Canonicalize(r.Layout, r.Placement), useColor)
}

// DisplayAddress prints "path @addr +len" for one item. The length is "?"
// when it depends on the stream.
func DisplayAddress(w io.Writer, r *runtime.Result, path string) error {
	it, err := r.Layout.Find(path)
	if err != nil {
		return err
	}
	addr, err := r.Placement.Address(it)
	if err != nil {
		return err
	}
	length := "?"
	if _, _, n, ok := r.Placement.Extent(it); ok {
		length = fmt.Sprint(n)
	}
	_, err = fmt.Fprintf(w, "%s @%d +%s\n", layout.Path(it), addr, length)
	return err
}

// DisplayAnnotations prints the docs and attributes of every annotated item.
func DisplayAnnotations(w io.Writer, r *runtime.Result, store annot.Store, useColor bool) error {
	ids, err := store.Items()
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(w, Colorize(layout.Path(r.Layout.Item(id)), ColorBlue, useColor))
		docs, err := store.Docs(id)
		if err != nil {
			return err
		}
		for _, line := range docs {
			_, _ = fmt.Fprintf(w, "  ## %s\n", line)
		}
		attrs, err := store.Attrs(id)
		if err != nil {
			return err
		}
		for _, a := range attrs {
			_, _ = fmt.Fprintf(w, "  #: %s = %s\n", a.Name, attrValue(a.Value))
		}
	}
	return nil
}

func attrValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []string:
		q := make([]string, len(x))
		for i, s := range x {
			q[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(q, ", ") + "]"
	case []int64, []float64:
		s := fmt.Sprint(x)
		return "[" + strings.Join(strings.Fields(s[1:len(s)-1]), ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
