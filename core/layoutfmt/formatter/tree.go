// Package formatter renders layout documents for people.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhmunro/dudley/core/layoutfmt"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// Colorize wraps text in ANSI color codes if color is enabled
func Colorize(text, color string, useColor bool) string {
	if !useColor {
		return text
	}
	return color + text + ColorReset
}

// FormatTree renders the item tree of d with each item's address and
// length, as far as they are known.
func FormatTree(w io.Writer, d *layoutfmt.Document, useColor bool) {
	header := "/"
	var notes []string
	if d.Order != "|" {
		notes = append(notes, "order "+d.Order)
	}
	if d.Template {
		notes = append(notes, "template")
	}
	if len(notes) > 0 {
		header += " (" + strings.Join(notes, ", ") + ")"
	}
	_, _ = fmt.Fprintln(w, header)

	children := visible(d, d.Children(0))
	if len(children) == 0 {
		_, _ = fmt.Fprintln(w, "(empty)")
		return
	}
	renderChildren(w, d, children, "", useColor)
}

// visible drops anonymous inline types, which are shown through the data
// item that uses them.
func visible(d *layoutfmt.Document, ids []int) []int {
	out := ids[:0:0]
	for _, id := range ids {
		it := &d.Items[id]
		if it.Kind == "type" && it.Name == "" {
			continue
		}
		out = append(out, id)
	}
	return out
}

func renderChildren(w io.Writer, d *layoutfmt.Document, ids []int, indent string, useColor bool) {
	for i, id := range ids {
		isLast := i == len(ids)-1
		prefix, next := "├─ ", "│  "
		if isLast {
			prefix, next = "└─ ", "   "
		}
		it := &d.Items[id]
		_, _ = fmt.Fprintf(w, "%s%s%s\n", indent, prefix, FormatItem(it, useColor))

		if kids := visible(d, d.Children(id)); len(kids) > 0 {
			renderChildren(w, d, kids, indent+next, useColor)
		}
	}
}

// FormatItem renders one item the way it would be declared, followed by its
// placement.
func FormatItem(it *layoutfmt.Item, useColor bool) string {
	name := it.Name
	var decl string
	switch it.Kind {
	case "dict":
		decl = Colorize(name+"/", ColorBlue, useColor)
	case "list":
		decl = Colorize(name+"[]", ColorBlue, useColor)
	case "type":
		decl = Colorize("{"+name+"}", ColorCyan, useColor)
		if it.HasAlign {
			decl += fmt.Sprintf(" %%%d", it.Align)
		}
		if len(it.Free) > 0 {
			decl += " (" + strings.Join(it.Free, ", ") + ")"
		}
		return decl
	case "param":
		if it.Fixed {
			return fmt.Sprintf("%s: %d", name, it.Value)
		}
		decl = name + ": " + it.Type
	default:
		if name == "" {
			decl = "= " + it.Type + shapeString(it.Shape)
		} else {
			decl = name + " = " + it.Type + shapeString(it.Shape)
		}
		if it.Filter != "" {
			decl += " " + Colorize(it.Filter, ColorYellow, useColor)
		}
	}
	if it.Place != "" {
		decl += " " + it.Place
	}
	if it.Kind == "dict" || it.Kind == "list" {
		return decl
	}
	if e := extent(it); e != "" {
		decl += "  " + Colorize(e, ColorGray, useColor)
	}
	return decl
}

// extent is "" for struct members, which have offsets but no address.
func extent(it *layoutfmt.Item) string {
	if strings.Contains(it.Path, "}.") {
		return ""
	}
	addr := "@?"
	if it.AddressOK {
		addr = fmt.Sprintf("@%d", it.Address)
	}
	if it.LengthKnown {
		return fmt.Sprintf("%s +%d", addr, it.Length)
	}
	return addr + " +?"
}

func shapeString(dims []layoutfmt.Dim) string {
	if len(dims) == 0 {
		return ""
	}
	parts := make([]string, len(dims))
	for i, dim := range dims {
		if dim.Name == "" {
			parts[i] = fmt.Sprint(dim.Literal)
			continue
		}
		s := dim.Name
		if dim.Optional {
			s += "?"
		}
		switch {
		case dim.Adjust > 0:
			s += strings.Repeat("+", dim.Adjust)
		case dim.Adjust < 0:
			s += strings.Repeat("-", -dim.Adjust)
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
