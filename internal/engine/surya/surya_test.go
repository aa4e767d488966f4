package surya

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-ocr-service/internal/engine"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProbe_VariantSelection(t *testing.T) {
	modern := []string{"predictor.onnx", "charset.txt"}
	legacy := []string{"det.onnx", "det.json", "rec.onnx", "rec.json"}

	tests := []struct {
		name    string
		layout  map[string][]string // subdir -> files
		variant engine.Variant
	}{
		{
			name:    "modern surface present",
			layout:  map[string][]string{"surya": modern},
			variant: engine.VariantModern,
		},
		{
			name:    "legacy surface only",
			layout:  map[string][]string{"surya-legacy": legacy},
			variant: engine.VariantLegacy,
		},
		{
			name:    "legacy under alternate install dir",
			layout:  map[string][]string{"surya_ocr": legacy},
			variant: engine.VariantLegacy,
		},
		{
			name: "modern preferred over legacy",
			layout: map[string][]string{
				"surya":        modern,
				"surya-legacy": legacy,
			},
			variant: engine.VariantModern,
		},
		{
			name: "incomplete modern surface falls through to legacy",
			layout: map[string][]string{
				"surya":        {"predictor.onnx"}, // charset missing
				"surya-legacy": legacy,
			},
			variant: engine.VariantLegacy,
		},
		{
			name:    "nothing installed",
			layout:  map[string][]string{},
			variant: engine.VariantNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modelDir := t.TempDir()
			for sub, files := range tt.layout {
				writeFiles(t, filepath.Join(modelDir, sub), files...)
			}

			desc := Probe(Config{ModelDir: modelDir})
			if desc.Variant != tt.variant {
				t.Errorf("variant = %v, want %v", desc.Variant, tt.variant)
			}
			if tt.variant == engine.VariantNone && desc.ProbeError == "" {
				t.Error("ProbeError empty, want a description of what was looked for")
			}
		})
	}
}

func TestLoad_ModernFallsBackToLegacy(t *testing.T) {
	modelDir := t.TempDir()
	writeFiles(t, filepath.Join(modelDir, "surya"), "predictor.onnx", "charset.txt")

	f := newFamily(Config{ModelDir: modelDir})

	var modernTried, legacyTried bool
	f.loadModern = func() (*handles, error) {
		modernTried = true
		return nil, os.ErrNotExist
	}
	f.loadLegacy = func() (*handles, error) {
		legacyTried = true
		return &handles{variant: engine.VariantLegacy}, nil
	}

	_, variant, err := f.load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !modernTried || !legacyTried {
		t.Errorf("modernTried=%v legacyTried=%v, want both", modernTried, legacyTried)
	}
	if variant != engine.VariantLegacy {
		t.Errorf("variant = %v, want %v", variant, engine.VariantLegacy)
	}
}

func TestLoad_LegacyProbeSkipsModernConstruction(t *testing.T) {
	modelDir := t.TempDir()
	writeFiles(t, filepath.Join(modelDir, "surya-legacy"),
		"det.onnx", "det.json", "rec.onnx", "rec.json")

	f := newFamily(Config{ModelDir: modelDir})

	f.loadModern = func() (*handles, error) {
		t.Fatal("modern construction attempted without a modern surface")
		return nil, nil
	}
	f.loadLegacy = func() (*handles, error) {
		return &handles{variant: engine.VariantLegacy}, nil
	}

	_, variant, err := f.load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if variant != engine.VariantLegacy {
		t.Errorf("variant = %v, want %v", variant, engine.VariantLegacy)
	}
}

func TestLoad_BothVariantsFailingNamesBothCauses(t *testing.T) {
	modelDir := t.TempDir()
	writeFiles(t, filepath.Join(modelDir, "surya"), "predictor.onnx", "charset.txt")

	f := newFamily(Config{ModelDir: modelDir})
	f.loadModern = func() (*handles, error) { return nil, os.ErrInvalid }
	f.loadLegacy = func() (*handles, error) { return nil, os.ErrNotExist }

	_, _, err := f.load(context.Background())
	if err == nil {
		t.Fatal("load succeeded, want composite failure")
	}
	msg := err.Error()
	if !strings.Contains(msg, "modern variant") || !strings.Contains(msg, "legacy fallback") {
		t.Errorf("error %q does not name both causes", msg)
	}
}

func TestLoad_NothingInstalled(t *testing.T) {
	f := newFamily(Config{ModelDir: t.TempDir()})

	_, variant, err := f.load(context.Background())
	if err == nil {
		t.Fatal("load succeeded with nothing installed")
	}
	if variant != engine.VariantNone {
		t.Errorf("variant = %v, want %v", variant, engine.VariantNone)
	}
}

func TestDecodeCharRow(t *testing.T) {
	charset := []string{"a", "b", "c"}

	tests := []struct {
		name string
		row  []float32
		want string
	}{
		{"empty", nil, ""},
		{"all blanks", []float32{0, 0, 0}, ""},
		{"plain sequence", []float32{1, 2, 3}, "abc"},
		{"repeats collapse", []float32{1, 1, 2, 2}, "ab"},
		{"blank separates repeats", []float32{1, 0, 1}, "aa"},
		{"out of range ignored", []float32{1, 9, 2}, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeCharRow(tt.row, charset); got != tt.want {
				t.Errorf("decodeCharRow(%v) = %q, want %q", tt.row, got, tt.want)
			}
		})
	}
}

func TestDecodeModern(t *testing.T) {
	charset := []string{"h", "i"}
	// One line: corners (0,0) (10,0) (10,4) (0,4), confidence 0.75,
	// chars "hi" at half-scale ratio.
	boxes := []float32{0, 0, 10, 0, 10, 4, 0, 4, 0.75}
	chars := []float32{1, 2, 0}

	result, err := decodeModern(boxes, chars, charset, 0.5)
	if err != nil {
		t.Fatalf("decodeModern: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("len(Lines) = %d, want 1", len(result.Lines))
	}

	line := result.Lines[0]
	if line.Text != "hi" {
		t.Errorf("Text = %q, want %q", line.Text, "hi")
	}
	if line.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", line.Confidence)
	}
	if !line.HasConfidence {
		t.Error("HasConfidence = false, want true")
	}
	// Coordinates scale back to the original image space.
	if got := line.Box[1][0]; got != 20 {
		t.Errorf("Box[1][0] = %v, want 20", got)
	}
}

func TestDecodeModern_Malformed(t *testing.T) {
	if _, err := decodeModern([]float32{1, 2, 3}, nil, nil, 1); err == nil {
		t.Error("truncated boxes output accepted")
	}
	twoBoxes := make([]float32, 18)
	if _, err := decodeModern(twoBoxes, []float32{1, 2, 3}, []string{"a"}, 1); err == nil {
		t.Error("chars length not divisible by box count accepted")
	}
}
