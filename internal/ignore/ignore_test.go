package ignore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(src string) []string {
	return strings.Split(src, "\n")
}

func TestParse_Region(t *testing.T) {
	m := Parse(lines("a()\n// flowlint-ignore-start\nb()\nc()\n// flowlint-ignore-end\nd()"))

	require.Len(t, m.Regions, 1)
	assert.Equal(t, Region{Start: 2, End: 5}, m.Regions[0])
	assert.False(t, m.Suppressed(1))
	for line := 2; line <= 5; line++ {
		assert.True(t, m.Suppressed(line), "line %d", line)
	}
	assert.False(t, m.Suppressed(6))
}

func TestParse_UnterminatedRegionIsDropped(t *testing.T) {
	m := Parse(lines("// flowlint-ignore-start\nconsole.log(1)\ndebugger;"))

	assert.Empty(t, m.Regions)
	assert.Equal(t, 0, m.Count())
	assert.False(t, m.Suppressed(2))
}

func TestParse_LineAndNext(t *testing.T) {
	src := "x() // flowlint-ignore-line\n// FLOWLINT-IGNORE-NEXT\ny()\nz()"
	m := Parse(lines(src))

	assert.True(t, m.SingleLines.Contains(1))
	assert.True(t, m.Suppressed(1))
	assert.False(t, m.Suppressed(2), "the next-line directive itself is not suppressed")
	assert.True(t, m.Suppressed(3))
	assert.False(t, m.Suppressed(4))
}

func TestParse_NextOnLastLine(t *testing.T) {
	m := Parse(lines("a()\n// flowlint-ignore-next"))
	assert.Equal(t, uint64(0), m.NextLines.GetCardinality())
}

func TestParse_BlockCommentMarker(t *testing.T) {
	m := Parse(lines("/* flowlint-ignore-line */ debugger;"))
	assert.True(t, m.Suppressed(1))
}

func TestParse_RequiresCommentMarker(t *testing.T) {
	m := Parse(lines("var s = 'flowlint-ignore-line';"))
	assert.False(t, m.Suppressed(1))
}

func TestParser_CustomMarker(t *testing.T) {
	p := NewParser("nrlint-disable")
	m := p.Parse(lines("a() // nrlint-disable-line\nb() // flowlint-ignore-line"))
	assert.True(t, m.Suppressed(1))
	assert.False(t, m.Suppressed(2))
}

func TestMap_AnySuppressed(t *testing.T) {
	m := Parse(lines("a\nb // flowlint-ignore-line\nc\nd"))
	assert.True(t, m.AnySuppressed(1, 3))
	assert.False(t, m.AnySuppressed(3, 4))
	assert.False(t, m.AnySuppressed(4, 3))

	var nilMap *Map
	assert.False(t, nilMap.Suppressed(1))
	assert.False(t, nilMap.AnySuppressed(1, 10))
}
