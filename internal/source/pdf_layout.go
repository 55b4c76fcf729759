package source

import (
	"sort"
	"strings"
	"unicode"
)

const (
	defaultFontSize = 10.0

	// Multiples of the font size.
	baselineTolerance = 0.3
	wordGap           = 0.15
	gutterGap         = 1.5
	blockGap          = 0.5
	descent           = 0.2
)

// glyph is one positioned text run of a PDF page. Y grows upwards.
type glyph struct {
	X, Y, W float64
	Size    float64
	S       string
}

// fragment is a run of words on one baseline that is not interrupted by a
// gap wide enough to be a column gutter.
type fragment struct {
	x0, x1 float64
	y      float64
	size   float64
	text   string
}

func (f fragment) top() float64    { return f.y + f.size }
func (f fragment) bottom() float64 { return f.y - descent*f.size }

// layoutBlocks groups the glyphs of a page into text blocks in reading
// order. Columns separated by a vertical gutter are read left to right and
// vertical gaps larger than normal leading start a new block.
func layoutBlocks(glyphs []glyph) []string {
	frags := fragments(glyphs)
	if len(frags) == 0 {
		return []string{}
	}

	var blocks []string
	xyCut(frags, &blocks)
	return blocks
}

// pageText joins the blocks of a page with blank lines.
func pageText(glyphs []glyph) string {
	return strings.Join(layoutBlocks(glyphs), "\n\n")
}

// xyCut recursively splits frags on vertical gutters first, then on
// horizontal gaps, and appends each uncuttable group as one block.
func xyCut(frags []fragment, blocks *[]string) {
	if cols := cutColumns(frags); len(cols) > 1 {
		for _, c := range cols {
			xyCut(c, blocks)
		}
		return
	}
	if bands := cutBands(frags); len(bands) > 1 {
		for _, b := range bands {
			xyCut(b, blocks)
		}
		return
	}
	*blocks = append(*blocks, blockText(frags))
}

func cutColumns(frags []fragment) [][]fragment {
	sorted := append([]fragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].x0 < sorted[j].x0 })

	var cols [][]fragment
	start := 0
	right := sorted[0].x1
	for i := 1; i < len(sorted); i++ {
		f := sorted[i]
		if f.x0-right > gutterGap*f.size {
			cols = append(cols, sorted[start:i])
			start = i
		}
		right = max(right, f.x1)
	}
	return append(cols, sorted[start:])
}

func cutBands(frags []fragment) [][]fragment {
	sorted := append([]fragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].top() > sorted[j].top() })

	var bands [][]fragment
	start := 0
	bottom := sorted[0].bottom()
	for i := 1; i < len(sorted); i++ {
		f := sorted[i]
		if bottom-f.top() > blockGap*f.size {
			bands = append(bands, sorted[start:i])
			start = i
		}
		bottom = min(bottom, f.bottom())
	}
	return append(bands, sorted[start:])
}

// blockText orders fragments top to bottom, then left to right, one line
// per baseline.
func blockText(frags []fragment) string {
	sorted := append([]fragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sameBaseline(sorted[i], sorted[j]) {
			return sorted[i].x0 < sorted[j].x0
		}
		return sorted[i].y > sorted[j].y
	})

	var b strings.Builder
	for i, f := range sorted {
		if i > 0 {
			if sameBaseline(sorted[i-1], f) {
				b.WriteByte(' ')
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(f.text)
	}
	return b.String()
}

func sameBaseline(a, b fragment) bool {
	return abs(a.y-b.y) <= baselineTolerance*max(a.size, b.size)
}

// fragments clusters glyphs into baselines, words and gutter-free runs.
func fragments(glyphs []glyph) []fragment {
	gs := make([]glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if g.Size <= 0 {
			g.Size = defaultFontSize
		}
		gs = append(gs, g)
	}
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Y > gs[j].Y })

	var frags []fragment
	for start := 0; start < len(gs); {
		end := start + 1
		for end < len(gs) && gs[start].Y-gs[end].Y <= baselineTolerance*gs[start].Size {
			end++
		}
		line := append([]glyph(nil), gs[start:end]...)
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		frags = append(frags, lineFragments(line)...)
		start = end
	}
	return frags
}

type word struct {
	x0, x1 float64
	size   float64
	text   strings.Builder
}

func lineFragments(line []glyph) []fragment {
	var words []*word
	var cur *word
	for _, g := range line {
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			cur = nil
			continue
		}
		if cur != nil && g.X-cur.x1 > wordGap*g.Size {
			cur = nil
		}
		if cur == nil {
			cur = &word{x0: g.X, x1: g.X, size: g.Size}
			words = append(words, cur)
		}
		cur.text.WriteString(g.S)
		cur.x1 = max(cur.x1, g.X+g.W)
		cur.size = max(cur.size, g.Size)
	}
	if len(words) == 0 {
		return nil
	}

	y := line[0].Y
	var frags []fragment
	var parts []string
	f := fragment{x0: words[0].x0, x1: words[0].x1, y: y, size: words[0].size}
	for i, w := range words {
		if i > 0 && w.x0-f.x1 > gutterGap*w.size {
			f.text = strings.Join(parts, " ")
			frags = append(frags, f)
			parts = nil
			f = fragment{x0: w.x0, x1: w.x1, y: y, size: w.size}
		}
		parts = append(parts, strings.TrimSpace(w.text.String()))
		f.x1 = max(f.x1, w.x1)
		f.size = max(f.size, w.size)
	}
	f.text = strings.Join(parts, " ")
	return append(frags, f)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
