package theme

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const gpl = `GIMP Palette
Name: test
Columns: 2
# comment
  0   0   0	black
255 255 255	white
`

func TestLoadGPL(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/p.gpl", []byte(gpl), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadOrDefault(fs, "/p.gpl")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("unexpected palette %+v", p)
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Fatalf("Lookup(0.5) = %v", got)
	}
	if got := p.Lookup(2); got != (RGB{255, 255, 255}) {
		t.Fatalf("Lookup(2) = %v", got)
	}
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault(afero.NewMemMapFs(), "")
	if err != nil || p.Name != "sloth" {
		t.Fatalf("expected default palette, got %v %v", p, err)
	}
	if _, err := LoadOrDefault(afero.NewMemMapFs(), "/missing.gpl"); err == nil {
		t.Fatalf("expected error for missing palette")
	}
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Fatalf("expected error for empty palette")
	}
}

func TestSingleColorPalette(t *testing.T) {
	p := &Palette{Colors: []RGB{{1, 2, 3}}}
	if got := p.Lookup(0.3); got != (RGB{1, 2, 3}) {
		t.Fatalf("Lookup = %v", got)
	}
	if c := New(p).Accent(); c != "#010203" {
		t.Fatalf("Accent = %v", c)
	}
}
