package parser

import (
	"strings"
	"testing"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/runtime/resolver"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Fuzz tests for parser determinism and robustness:
//
// 1. FuzzParserDeterminism - same input, same tree or same error
// 2. FuzzParserNoPanic - every failure is a located *errors.Error
// 3. FuzzParserPathologicalDepth - deeply nested lists and structs
// 4. FuzzParserTreeShape - every item has a parent and a unique path

func addSeedCorpus(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("x = f8"))
	f.Add([]byte("N: i4\nx = f8[N+, 3]"))
	f.Add([]byte("<\n{N: i4  K: u8}\nx = f4[N, K-]"))
	f.Add([]byte("pt { %16  x = f8  y = f8 }\np = pt[2]"))
	f.Add([]byte("vec { w = f8[M] }\nM: 3\nv = vec"))
	f.Add([]byte("t { = i4[2] }\na = t"))
	f.Add([]byte("g/ h/ x = i1\n..\ny = i2\n/ z = u4"))
	f.Add([]byte("lst [i2, / a = f8, [c8, c16]]\nlst @64 %8"))
	f.Add([]byte("x = f8[2] -> gzip(6)\ny = f4 <- ref"))
	f.Add([]byte("z = {a = i1  b = {c = u2}}"))
	f.Add([]byte("x = f8 @16\ny = i1 %0\nq = {}"))
	f.Add([]byte("\"a name\" = U4[5]\n## doc\n#: units = \"m\", dims = [1, 2]"))

	// Broken inputs
	f.Add([]byte("x = "))
	f.Add([]byte("x = f8[N"))
	f.Add([]byte("lst [i2,]"))
	f.Add([]byte("x = f8[]"))
	f.Add([]byte("x = f8\nx = f4"))
	f.Add([]byte("..\n..\n}"))
	f.Add([]byte("x = f8[N++++++++++++++++++++++++++++++++]"))
	f.Add([]byte("\"unterminated"))
	f.Add([]byte{0xff, 0xfe, 'x'})
}

func FuzzParserDeterminism(f *testing.F) {
	addSeedCorpus(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		a, errA := Parse(input)
		b, errB := Parse(input)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("non-deterministic failure: %v vs %v", errA, errB)
		}
		if errA != nil {
			if errA.Error() != errB.Error() {
				t.Fatalf("different errors:\n%v\n%v", errA, errB)
			}
			return
		}
		if got, want := paths(b.Layout), paths(a.Layout); got != want {
			t.Fatalf("different trees:\n%s\n---\n%s", want, got)
		}
	})
}

func FuzzParserNoPanic(f *testing.F) {
	addSeedCorpus(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		tree, err := Parse(input)
		if err != nil {
			e, ok := derrors.As(err)
			if !ok {
				t.Fatalf("error is not located: %T %v", err, err)
			}
			if e.Message == "" {
				t.Fatalf("empty message for %q", input)
			}
			return
		}
		if err := resolver.Resolve(tree.Layout); err != nil {
			if _, ok := derrors.As(err); !ok {
				t.Fatalf("resolve error is not located: %T %v", err, err)
			}
		}
	})
}

func FuzzParserPathologicalDepth(f *testing.F) {
	f.Add(3, uint8(0))
	f.Add(100, uint8(1))
	f.Add(500, uint8(2))
	f.Fuzz(func(t *testing.T, depth int, style uint8) {
		if depth < 0 || depth > 2000 {
			t.Skip()
		}
		var src string
		switch style % 3 {
		case 0:
			src = "x " + strings.Repeat("[", depth) + "i1" + strings.Repeat("]", depth)
		case 1:
			src = "x = " + strings.Repeat("{a = ", depth) + "i1" + strings.Repeat("}", depth)
		default:
			src = strings.Repeat("g/ ", depth) + "x = i1"
		}
		if _, err := Parse([]byte(src)); err != nil {
			if _, ok := derrors.As(err); !ok {
				t.Fatalf("error is not located: %v", err)
			}
		}
	})
}

func FuzzParserTreeShape(f *testing.F) {
	addSeedCorpus(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		tree, err := Parse(input)
		if err != nil {
			return
		}
		l := tree.Layout
		seen := map[string]bool{}
		for i, it := range l.Items {
			if it.ID() != i {
				t.Fatalf("item %d has id %d", i, it.ID())
			}
			if i > 0 && it.Parent() == nil {
				t.Fatalf("item %d has no parent", i)
			}
			// A redeclared parameter shares its path with the earlier one.
			if _, ok := it.(*layout.Param); ok {
				continue
			}
			path := layout.Path(it)
			if seen[path] {
				t.Fatalf("duplicate path %s in %q", path, input)
			}
			seen[path] = true
		}
	})
}

func paths(l *layout.Layout) string {
	var sb strings.Builder
	for _, it := range l.Items {
		sb.WriteString(it.Kind().String())
		sb.WriteByte(' ')
		sb.WriteString(layout.Path(it))
		sb.WriteByte('\n')
	}
	return sb.String()
}
