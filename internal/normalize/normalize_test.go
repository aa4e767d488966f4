package normalize

import (
	"math"
	"reflect"
	"testing"

	"go-ocr-service/internal/engine"
)

func TestNormalize_Lines(t *testing.T) {
	raw := engine.RawResult{
		Lines: []engine.RawLine{
			{
				Text:          "Hello",
				Confidence:    0.9,
				HasConfidence: true,
				Box:           [][]float64{{0, 0}, {50, 0}, {50, 10}, {0, 10}},
			},
			{
				Text: "World",
				Box:  [][]float64{{0, 12}, {52, 12}, {52, 22}, {0, 22}},
			},
		},
	}

	resp := Normalize("surya", raw, 12.5)

	if resp.Engine != "surya" {
		t.Errorf("Engine = %q, want %q", resp.Engine, "surya")
	}
	if resp.Text != "Hello World" {
		t.Errorf("Text = %q, want %q", resp.Text, "Hello World")
	}
	if resp.ProcessingTime != 12.5 {
		t.Errorf("ProcessingTime = %v, want 12.5", resp.ProcessingTime)
	}
	if len(resp.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(resp.Lines))
	}

	// First line keeps its native confidence, second falls back.
	if resp.Lines[0].Confidence != 0.9 {
		t.Errorf("Lines[0].Confidence = %v, want 0.9", resp.Lines[0].Confidence)
	}
	if resp.Lines[1].Confidence != FallbackConfidence {
		t.Errorf("Lines[1].Confidence = %v, want %v", resp.Lines[1].Confidence, FallbackConfidence)
	}

	wantMean := (0.9 + FallbackConfidence) / 2
	if math.Abs(resp.Confidence-wantMean) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", resp.Confidence, wantMean)
	}

	wantBox := []float64{0, 0, 50, 0, 50, 10, 0, 10}
	if !reflect.DeepEqual(resp.Lines[0].BBox, wantBox) {
		t.Errorf("Lines[0].BBox = %v, want %v", resp.Lines[0].BBox, wantBox)
	}

	if resp.LaTeX != "" {
		t.Errorf("LaTeX = %q, want empty for line results", resp.LaTeX)
	}
}

func TestNormalize_FlatBoxPassthrough(t *testing.T) {
	raw := engine.RawResult{
		Lines: []engine.RawLine{
			{Text: "x", FlatBox: []float64{1, 2, 3, 4}},
		},
	}

	resp := Normalize("tesseract", raw, 0)

	want := []float64{1, 2, 3, 4}
	if !reflect.DeepEqual(resp.Lines[0].BBox, want) {
		t.Errorf("BBox = %v, want %v", resp.Lines[0].BBox, want)
	}
}

func TestNormalize_ZeroLines(t *testing.T) {
	resp := Normalize("paddleocr", engine.RawResult{}, 3)

	if resp.Text != "" {
		t.Errorf("Text = %q, want empty", resp.Text)
	}
	if resp.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", resp.Confidence)
	}
	if resp.Lines == nil || len(resp.Lines) != 0 {
		t.Errorf("Lines = %v, want empty non-nil slice", resp.Lines)
	}
}

func TestNormalize_ZeroConfidenceIsNative(t *testing.T) {
	// A backend-reported 0.0 must not be replaced by the fallback.
	raw := engine.RawResult{
		Lines: []engine.RawLine{
			{Text: "faint", Confidence: 0.0, HasConfidence: true},
		},
	}

	resp := Normalize("surya", raw, 0)

	if resp.Lines[0].Confidence != 0.0 {
		t.Errorf("Confidence = %v, want native 0.0", resp.Lines[0].Confidence)
	}
	if resp.Confidence != 0.0 {
		t.Errorf("mean Confidence = %v, want 0.0", resp.Confidence)
	}
}

func TestNormalize_Plain(t *testing.T) {
	resp := Normalize("pix2text", engine.PlainResult(`\frac{a}{b}`), 7)

	if resp.Text != `\frac{a}{b}` {
		t.Errorf("Text = %q, want the formula string", resp.Text)
	}
	if resp.LaTeX != `\frac{a}{b}` {
		t.Errorf("LaTeX = %q, want the formula string", resp.LaTeX)
	}
	if resp.Confidence != FallbackConfidence {
		t.Errorf("Confidence = %v, want %v", resp.Confidence, FallbackConfidence)
	}
	if len(resp.Lines) != 0 {
		t.Errorf("len(Lines) = %d, want 0", len(resp.Lines))
	}
}
