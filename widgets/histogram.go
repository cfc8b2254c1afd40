package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-sloth/theme"
)

// Histogram bins delay draws over [0, Span) seconds. Values past the span
// land in the last bin.
type Histogram struct {
	bins   []int
	span   float64
	count  int
	sum    float64
	maxVal float64
}

// NewHistogram creates a histogram with n bins covering [0, span)
func NewHistogram(n int, span float64) *Histogram {
	if n < 1 {
		n = 1
	}
	return &Histogram{bins: make([]int, n), span: span}
}

// Add records one delay in seconds
func (h *Histogram) Add(v float64) {
	if v < 0 || math.IsNaN(v) {
		return
	}
	i := len(h.bins) - 1
	if h.span > 0 && v < h.span {
		i = int(v / h.span * float64(len(h.bins)))
	}
	h.bins[i]++
	h.count++
	h.sum += v
	if v > h.maxVal {
		h.maxVal = v
	}
}

// Reset clears all bins; a positive span replaces the current one
func (h *Histogram) Reset(span float64) {
	for i := range h.bins {
		h.bins[i] = 0
	}
	if span > 0 {
		h.span = span
	}
	h.count, h.sum, h.maxVal = 0, 0, 0
}

func (h *Histogram) Bins() []int   { return h.bins }
func (h *Histogram) Span() float64 { return h.span }
func (h *Histogram) Count() int    { return h.count }
func (h *Histogram) Max() float64  { return h.maxVal }

// Mean of all recorded values (0 when empty)
func (h *Histogram) Mean() float64 {
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// View renders the bins as height rows of block characters with a
// millisecond axis. sigma, when inside the span, is marked under the axis.
func (h *Histogram) View(th *theme.Theme, height int, sigma float64) string {
	if height < 1 {
		height = 1
	}
	peak := 0
	for _, c := range h.bins {
		if c > peak {
			peak = c
		}
	}

	bars := th.Symbols.Bars
	steps := len(bars) - 1
	var rows []string
	for row := height - 1; row >= 0; row-- {
		var line strings.Builder
		for i, c := range h.bins {
			level := 0
			if peak > 0 {
				level = int(math.Round(float64(c) / float64(peak) * float64(height*steps)))
			}
			cell := level - row*steps
			switch {
			case cell <= 0:
				line.WriteRune(' ')
			case cell >= steps:
				line.WriteString(h.cellStyle(th, i).Render(string(bars[steps])))
			default:
				line.WriteString(h.cellStyle(th, i).Render(string(bars[cell])))
			}
		}
		rows = append(rows, line.String())
	}

	width := len(h.bins)
	axis := strings.Repeat("─", width)
	rows = append(rows, lipgloss.NewStyle().Foreground(th.Muted()).Render(axis))

	if sigma > 0 && sigma < h.span {
		pos := int(sigma / h.span * float64(width))
		marker := strings.Repeat(" ", pos) + string(th.Symbols.Marker) + " σ"
		rows = append(rows, lipgloss.NewStyle().Foreground(th.Accent()).Render(marker))
	}

	right := fmt.Sprintf("%.1f ms", h.span*1000)
	pad := width - len("0") - len(right)
	if pad < 1 {
		pad = 1
	}
	rows = append(rows, lipgloss.NewStyle().Foreground(th.Muted()).Render("0"+strings.Repeat(" ", pad)+right))
	return strings.Join(rows, "\n")
}

func (h *Histogram) cellStyle(th *theme.Theme, bin int) lipgloss.Style {
	norm := 0.3 + 0.7*float64(bin)/float64(len(h.bins))
	return lipgloss.NewStyle().Foreground(th.Color(norm))
}
