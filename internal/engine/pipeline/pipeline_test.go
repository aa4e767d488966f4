package pipeline

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// step builds one logit timestep with a strong peak at idx.
func step(numClasses, idx int) []float32 {
	out := make([]float32, numClasses)
	for i := range out {
		out[i] = -10
	}
	out[idx] = 10
	return out
}

func concat(steps ...[]float32) []float32 {
	var out []float32
	for _, s := range steps {
		out = append(out, s...)
	}
	return out
}

func TestDecodeCTC(t *testing.T) {
	charset := []string{"a", "b", "c"}
	n := len(charset) + 1 // class 0 is the blank

	tests := []struct {
		name   string
		output []float32
		want   string
	}{
		{
			name:   "plain sequence",
			output: concat(step(n, 1), step(n, 2), step(n, 3)),
			want:   "abc",
		},
		{
			name:   "repeats collapse",
			output: concat(step(n, 1), step(n, 1), step(n, 2)),
			want:   "ab",
		},
		{
			name:   "blank separates repeats",
			output: concat(step(n, 1), step(n, 0), step(n, 1)),
			want:   "aa",
		},
		{
			name:   "all blanks",
			output: concat(step(n, 0), step(n, 0)),
			want:   "",
		},
		{
			name:   "empty output",
			output: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, conf := DecodeCTC(tt.output, n, charset)
			if text != tt.want {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
			if tt.want == "" && conf != 0 {
				t.Errorf("confidence = %v, want 0 for empty decode", conf)
			}
			if tt.want != "" && (conf <= 0 || conf > 1) {
				t.Errorf("confidence = %v, want in (0, 1]", conf)
			}
		})
	}
}

func TestDecodeCTC_ConfidenceTracksPeakSharpness(t *testing.T) {
	charset := []string{"a"}
	n := 2

	sharp := []float32{-10, 10}
	soft := []float32{0.4, 0.6}

	_, sharpConf := DecodeCTC(sharp, n, charset)
	_, softConf := DecodeCTC(soft, n, charset)

	if sharpConf <= softConf {
		t.Errorf("sharp peak confidence %v not above soft peak %v", sharpConf, softConf)
	}
	if math.Abs(sharpConf-1) > 0.01 {
		t.Errorf("sharp peak confidence = %v, want near 1", sharpConf)
	}
}

func TestLoadCharset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charset.txt")
	if err := os.WriteFile(path, []byte("a\nb\né\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	charset, err := LoadCharset(path)
	if err != nil {
		t.Fatalf("LoadCharset: %v", err)
	}
	want := []string{"a", "b", "é"}
	if len(charset) != len(want) {
		t.Fatalf("len = %d, want %d", len(charset), len(want))
	}
	for i := range want {
		if charset[i] != want[i] {
			t.Errorf("charset[%d] = %q, want %q", i, charset[i], want[i])
		}
	}
}

func TestLoadDetProcessor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "det.json")
	cfg := `{"input_size": 960, "mean": [0.485, 0.456, 0.406], "std": [0.229, 0.224, 0.225], "box_threshold": 0.6}`
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadDetProcessor(path)
	if err != nil {
		t.Fatalf("LoadDetProcessor: %v", err)
	}
	if p.InputSize != 960 {
		t.Errorf("InputSize = %d, want 960", p.InputSize)
	}
	if p.BoxThreshold != 0.6 {
		t.Errorf("BoxThreshold = %v, want 0.6", p.BoxThreshold)
	}
}

func TestLoadDetProcessor_Missing(t *testing.T) {
	if _, err := LoadDetProcessor(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadDetProcessor succeeded on a missing file")
	}
}
