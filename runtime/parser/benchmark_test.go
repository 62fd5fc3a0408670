package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dhmunro/dudley/runtime/resolver"
)

// BenchmarkParserCore measures tree construction across layout complexity levels.
func BenchmarkParserCore(b *testing.B) {
	scenarios := map[string]string{
		"empty":   "",
		"simple":  "x = f8[3]",
		"struct":  "pt { x = f8  y = f8 }\nN: i4\npts = pt[N]",
		"complex": generateLayout(50),
	}

	for name, input := range scenarios {
		b.Run(name, func(b *testing.B) {
			inputBytes := []byte(input)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := Parse(inputBytes); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTelemetryModes measures observability overhead.
func BenchmarkTelemetryModes(b *testing.B) {
	inputBytes := []byte(generateLayout(50))

	modes := map[string][]ParserOpt{
		"production": {},
		"monitoring": {WithTelemetryBasic()},
		"debugging":  {WithTelemetryTiming()},
	}

	for mode, opts := range modes {
		b.Run(mode, func(b *testing.B) {
			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := Parse(inputBytes, opts...); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkParserScaling should show a constant cost per group.
func BenchmarkParserScaling(b *testing.B) {
	sizes := map[string]int{
		"small":  10,
		"medium": 100,
		"large":  1000,
	}

	for size, groups := range sizes {
		inputBytes := []byte(generateLayout(groups))
		b.Run(size, func(b *testing.B) {
			b.SetBytes(int64(len(inputBytes)))
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				tree, err := Parse(inputBytes)
				if err != nil {
					b.Fatal(err)
				}
				if err := resolver.Resolve(tree.Layout); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// generateLayout builds n groups, each with its own parameter, a struct
// array, a filtered array and a list.
func generateLayout(n int) string {
	var sb strings.Builder
	sb.WriteString("<\nvec { %8  M: i4  w = f4[M, 3] }\nK: 3\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "g%d/\n", i)
		sb.WriteString("  ## one group\n")
		sb.WriteString("  N: i4\n")
		sb.WriteString("  x = f8[N+, K]\n")
		sb.WriteString("  v = vec[N]\n")
		sb.WriteString("  z = u1[K] -> gzip(6)\n")
		sb.WriteString("  lst [i2[N], / a = f8, [c8]]\n")
		sb.WriteString("..\n")
	}
	return sb.String()
}

func TestGeneratedLayoutResolves(t *testing.T) {
	tree, err := Parse([]byte(generateLayout(3)))
	if err != nil {
		t.Fatal(err)
	}
	if err := resolver.Resolve(tree.Layout); err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Layout.Find("/g2/lst/1/a"); err != nil {
		t.Errorf("expected /g2/lst/1/a: %v", err)
	}
}
