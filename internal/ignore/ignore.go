// Package ignore parses suppression directives out of raw source lines.
//
// Three directive forms are recognized after a comment marker:
//
//	// flowlint-ignore-start ... // flowlint-ignore-end   suppress the enclosed region
//	foo() // flowlint-ignore-line                        suppress this line
//	// flowlint-ignore-next                              suppress the following line
package ignore

import (
	"regexp"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// DefaultMarker is the directive token recognized when none is configured.
const DefaultMarker = "flowlint-ignore"

type directive int

const (
	directiveStart directive = iota
	directiveEnd
	directiveLine
	directiveNext
)

var suffixes = map[directive]string{
	directiveStart: "start",
	directiveEnd:   "end",
	directiveLine:  "line",
	directiveNext:  "next",
}

// Region is an inclusive, 1-based line range.
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line falls inside the region.
func (r Region) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// Map records which lines of a code unit are suppressed.
type Map struct {
	Regions     []Region
	SingleLines *roaring.Bitmap
	NextLines   *roaring.Bitmap

	// all is the union of every region and line set.
	all *roaring.Bitmap
}

// Empty returns a map that suppresses nothing.
func Empty() *Map {
	return &Map{
		SingleLines: roaring.New(),
		NextLines:   roaring.New(),
		all:         roaring.New(),
	}
}

// Parser recognizes directives for one marker token.
type Parser struct {
	patterns map[directive]*regexp.Regexp
}

// NewParser builds a parser for marker. An empty marker selects DefaultMarker.
func NewParser(marker string) *Parser {
	if strings.TrimSpace(marker) == "" {
		marker = DefaultMarker
	}
	p := &Parser{patterns: make(map[directive]*regexp.Regexp, len(suffixes))}
	for d, suffix := range suffixes {
		p.patterns[d] = regexp.MustCompile(`(?i)(?://|/\*)\s*` + regexp.QuoteMeta(marker) + `-` + suffix + `\b`)
	}
	return p
}

// Parse scans lines once, front to back. A start directive with no later end
// directive is dropped rather than extended to the end of the unit.
func (p *Parser) Parse(lines []string) *Map {
	m := Empty()
	for i, line := range lines {
		if p.match(directiveStart, line) {
			for j := i + 1; j < len(lines); j++ {
				if p.match(directiveEnd, lines[j]) {
					m.Regions = append(m.Regions, Region{Start: i + 1, End: j + 1})
					m.all.AddRange(uint64(i+1), uint64(j+2))
					break
				}
			}
		}
		if p.match(directiveLine, line) {
			m.SingleLines.Add(uint32(i + 1))
		}
		if p.match(directiveNext, line) && i+1 < len(lines) {
			m.NextLines.Add(uint32(i + 2))
		}
	}
	m.all.Or(m.SingleLines)
	m.all.Or(m.NextLines)
	return m
}

func (p *Parser) match(d directive, line string) bool {
	return p.patterns[d].MatchString(line)
}

// Parse is shorthand for NewParser(DefaultMarker).Parse(lines).
func Parse(lines []string) *Map {
	return NewParser(DefaultMarker).Parse(lines)
}

// Suppressed reports whether the 1-based line is covered by any directive.
func (m *Map) Suppressed(line int) bool {
	if m == nil || line < 1 {
		return false
	}
	return m.all.Contains(uint32(line))
}

// AnySuppressed reports whether any line in [from, to] is suppressed.
func (m *Map) AnySuppressed(from, to int) bool {
	if m == nil || to < from {
		return false
	}
	if from < 1 {
		from = 1
	}
	return m.all.IntersectsWithInterval(uint64(from), uint64(to)+1)
}

// Count returns the number of distinct suppressed lines.
func (m *Map) Count() int {
	if m == nil {
		return 0
	}
	return int(m.all.GetCardinality())
}
