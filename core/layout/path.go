package layout

import (
	"strconv"
	"strings"

	"github.com/dhmunro/dudley/core/types"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Path returns the slash-separated location of it. List elements appear as
// their index; named types as "{T}" and their members as "{T}.x".
func Path(it Item) string {
	if it == nil {
		return ""
	}
	if t, ok := it.(*Type); ok {
		if t.name != "" {
			return "{" + t.name + "}"
		}
		return "{#" + strconv.Itoa(t.id) + "}"
	}
	parent := it.Parent()
	if parent == nil {
		return "/"
	}
	if t, ok := parent.(*Type); ok {
		name := it.Name()
		if name == "" {
			name = "="
		}
		return Path(t) + "." + name
	}
	seg := it.Name()
	if lst, ok := parent.(*List); ok {
		seg = strconv.Itoa(lst.IndexOf(it))
	}
	prefix := Path(parent)
	if prefix == "/" {
		return "/" + seg
	}
	return prefix + "/" + seg
}

// Find returns the item at path. The final segment may also name a
// parameter of the dict reached so far, which returns its current binding.
func (l *Layout) Find(path string) (Item, error) {
	var cur Item = l.Root
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 1 && segs[0] == "" {
		return l.Root, nil
	}
	for i, seg := range segs {
		last := i == len(segs)-1
		switch c := cur.(type) {
		case *Dict:
			if it, ok := c.items[seg]; ok {
				cur = it
				continue
			}
			if p, ok := c.params[seg]; ok && last {
				return p, nil
			}
			return nil, derrors.New(derrors.Scope, types.Position{}, "no item %q", seg).WithPath(Path(c))
		case *List:
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 || n >= len(c.items) {
				return nil, derrors.New(derrors.Scope, types.Position{}, "no element %q in list", seg).
					WithPath(Path(c))
			}
			cur = c.items[n]
		default:
			return nil, derrors.New(derrors.Scope, types.Position{}, "%s is a %s, not a container",
				Path(cur), cur.Kind())
		}
	}
	return cur, nil
}
