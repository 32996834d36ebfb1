package room

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func boxContext(rect Rect) *RuntimeContext {
	return newRuntimeContext(map[ZoneID]Rect{"panel": rect}, NewSharedState())
}

func TestRenderZoneWithBox(t *testing.T) {
	ctx := boxContext(NewRect(0, 0, 20, 5))
	boxed, ok := RenderZoneWithBox(ctx, "panel", "hello", DefaultBoxConfig())
	if !ok {
		t.Fatal("box should render")
	}
	lines := strings.Split(boxed, "\n")
	if len(lines) != 5 {
		t.Fatalf("want 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "┌") || !strings.Contains(lines[len(lines)-1], "└") {
		t.Errorf("missing border corners:\n%s", boxed)
	}
	for i, line := range lines {
		if w := ansi.StringWidth(line); w != 20 {
			t.Errorf("line %d width %d, want 20", i, w)
		}
	}
	if !strings.Contains(boxed, "hello") {
		t.Error("content missing")
	}
}

func TestRenderZoneWithBoxCollapses(t *testing.T) {
	ctx := boxContext(NewRect(0, 0, 8, 3))
	config := DefaultBoxConfig() // MinWidth 10 > 8
	boxed, ok := RenderZoneWithBox(ctx, "panel", "a very long body", config)
	if !ok {
		t.Fatal("collapse-show should still render a placeholder")
	}
	if !strings.Contains(boxed, "...") {
		t.Errorf("placeholder missing:\n%s", boxed)
	}
}

func TestRenderZoneWithBoxHides(t *testing.T) {
	ctx := boxContext(NewRect(0, 0, 8, 3))
	config := DefaultBoxConfig()
	config.CollapseMode = CollapseHide
	if _, ok := RenderZoneWithBox(ctx, "panel", "body", config); ok {
		t.Error("collapse-hide must render nothing below minimums")
	}
}

func TestRenderZoneWithBoxTinyRect(t *testing.T) {
	ctx := boxContext(NewRect(0, 0, 4, 2))
	if _, ok := RenderZoneWithBox(ctx, "panel", "body", DefaultBoxConfig()); ok {
		t.Error("rects too small for even a placeholder must render nothing")
	}
}

func TestRenderZoneWithBoxUnknownZone(t *testing.T) {
	ctx := boxContext(NewRect(0, 0, 20, 5))
	if _, ok := RenderZoneWithBox(ctx, "missing", "body", DefaultBoxConfig()); ok {
		t.Error("unknown zone must render nothing")
	}
}
