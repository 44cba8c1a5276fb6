package templates

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jordanella.com/feed-liker/internal/cv"
	"jordanella.com/feed-liker/internal/logging"
)

func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 0, 255})
		}
	}
	if err := SavePNG(filepath.Join(dir, name), img); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLoadConventionalLayout(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "menu_trigger.png", 12, 8)
	writePNG(t, dir, "acted_marker.png", 10, 10)
	writePNG(t, dir, "acted_marker_2.png", 14, 9)

	var logs bytes.Buffer
	tr := NewTemplateRegistry(dir).WithLogger(logging.NewLogger("Templates").SetOutput(&logs))
	if err := tr.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	trigger, err := tr.Require(cv.KindMenuTrigger)
	if err != nil {
		t.Fatalf("expected trigger template, got %v", err)
	}
	if len(trigger.Variants) != 1 || trigger.Size() != (image.Point{X: 12, Y: 8}) {
		t.Errorf("unexpected trigger template: %d variants, size %v", len(trigger.Variants), trigger.Size())
	}
	if trigger.Threshold != cv.DefaultTriggerThreshold {
		t.Errorf("expected default threshold, got %v", trigger.Threshold)
	}

	marker, ok := tr.Get(cv.KindActedMarker)
	if !ok || len(marker.Variants) != 2 {
		t.Fatalf("expected 2 marker variants, got %v", len(marker.Variants))
	}

	if _, ok := tr.Get(cv.KindUndoAction); ok {
		t.Error("undo template should be reported missing")
	}
	if !strings.Contains(logs.String(), "template=undo_action") {
		t.Errorf("expected warning for optional template, got %q", logs.String())
	}
}

func TestRequireMissingTrigger(t *testing.T) {
	tr := NewTemplateRegistry(t.TempDir())
	if err := tr.Load(); err != nil {
		t.Fatalf("load of empty directory should succeed, got %v", err)
	}

	_, err := tr.Require(cv.KindMenuTrigger)
	if !errors.Is(err, ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate, got %v", err)
	}
}

func TestLoadFromManifest(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "dots.png", 20, 6)
	writePNG(t, dir, "undo.png", 16, 16)

	manifest := `templates:
  - name: menu_trigger
    files: [dots.png]
    threshold: 0.82
    required: true
  - name: undo_action
    files: [undo.png, undo_dark.png]
`
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	tr := NewTemplateRegistry(dir)
	if err := tr.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	trigger, ok := tr.Get(cv.KindMenuTrigger)
	if !ok || trigger.Threshold != 0.82 {
		t.Errorf("expected trigger with threshold 0.82, got %v (ok=%v)", trigger.Threshold, ok)
	}

	undo, ok := tr.Get(cv.KindUndoAction)
	if !ok || undo.Threshold != cv.DefaultUndoThreshold || len(undo.Variants) != 1 {
		t.Errorf("unexpected undo template: ok=%v threshold=%v variants=%d", ok, undo.Threshold, len(undo.Variants))
	}

	statuses := tr.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Kind != cv.KindUndoAction || len(statuses[1].Missing) != 1 {
		t.Errorf("expected undo_dark.png reported missing, got %+v", statuses[1])
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest TemplateFile
		wantErr  error
	}{
		{
			name:     "unknown name",
			manifest: TemplateFile{Templates: []TemplateDefinition{{Name: "heart"}}},
		},
		{
			name:     "empty name",
			manifest: TemplateFile{Templates: []TemplateDefinition{{Name: ""}}},
		},
		{
			name: "too many variants",
			manifest: TemplateFile{Templates: []TemplateDefinition{{
				Name:  "menu_trigger",
				Files: []string{"a.png", "b.png", "c.png"},
			}}},
		},
		{
			name: "threshold above one",
			manifest: TemplateFile{Templates: []TemplateDefinition{{
				Name:      "menu_trigger",
				Threshold: 1.5,
			}}},
			wantErr: cv.ErrInvalidThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTemplateRegistry(t.TempDir()).LoadManifest(tt.manifest)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestImageCacheReusesDecodedImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "shared.png", 8, 8)

	manifest := TemplateFile{Templates: []TemplateDefinition{
		{Name: "acted_marker", Files: []string{"shared.png"}},
		{Name: "undo_action", Files: []string{"shared.png"}},
	}}

	tr := NewTemplateRegistry(dir)
	if err := tr.LoadManifest(manifest); err != nil {
		t.Fatal(err)
	}

	stats := tr.CacheStats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("expected 1 miss and 1 hit, got %+v", stats)
	}
}

func TestVariantFile(t *testing.T) {
	if got := VariantFile(cv.KindActedMarker, 1); got != "acted_marker.png" {
		t.Errorf("got %s", got)
	}
	if got := VariantFile(cv.KindActedMarker, 2); got != "acted_marker_2.png" {
		t.Errorf("got %s", got)
	}
}

func TestLoadPNGNormalizesOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 15, 12))
	src.Set(5, 5, color.NRGBA{255, 0, 0, 255})

	rgba := ToRGBA(src)
	if rgba.Bounds() != image.Rect(0, 0, 10, 7) {
		t.Fatalf("expected bounds at origin, got %v", rgba.Bounds())
	}
	if r, _, _, _ := rgba.At(0, 0).RGBA(); r>>8 != 255 {
		t.Error("expected top-left pixel to carry over")
	}
}
