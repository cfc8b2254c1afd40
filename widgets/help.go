package widgets

import (
	"fmt"
	"strings"
)

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-10s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderBar renders a horizontal meter of width cells filled to norm (0-1)
func RenderBar(norm float64, width int, full, empty rune) string {
	if width <= 0 {
		return ""
	}
	switch {
	case norm < 0:
		norm = 0
	case norm > 1:
		norm = 1
	}
	n := int(norm*float64(width) + 0.5)
	return strings.Repeat(string(full), n) + strings.Repeat(string(empty), width-n)
}
