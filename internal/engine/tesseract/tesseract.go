// Package tesseract adapts Tesseract through gosseract. The native client
// is not reentrant for concurrent calls, so inference is serialized via
// the adapter's call lock.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os/exec"
	"strings"

	"go-ocr-service/internal/engine"
	"go-ocr-service/internal/raster"

	"github.com/otiai10/gosseract/v2"
)

const Name = "tesseract"

type Config struct {
	// Languages are Tesseract traineddata codes ("eng", "deu", ...).
	Languages []string
}

// Probe checks that the tesseract runtime is installed, without creating
// a client or touching traineddata.
func Probe(cfg Config) engine.CapabilityDescriptor {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return engine.CapabilityDescriptor{
			Variant:    engine.VariantNone,
			ProbeError: fmt.Sprintf("%s: runtime not found in PATH", Name),
		}
	}
	return engine.CapabilityDescriptor{Variant: engine.VariantModern}
}

// NewAdapter builds the tesseract engine adapter.
func NewAdapter(cfg Config) *engine.Adapter {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	f := &family{cfg: cfg, descriptor: Probe(cfg)}
	return engine.NewAdapter(Name, f.load, f.infer, engine.WithSerializedInference())
}

type family struct {
	cfg        Config
	descriptor engine.CapabilityDescriptor
}

// textClient is the slice of gosseract.Client that inference needs.
type textClient interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

type handles struct {
	client textClient
}

func (h *handles) Complete() bool { return h.client != nil }

func (h *handles) Close() error {
	if h.client != nil {
		return h.client.Close()
	}
	return nil
}

func (f *family) load(ctx context.Context) (engine.Handles, engine.Variant, error) {
	if f.descriptor.Variant == engine.VariantNone {
		return nil, engine.VariantNone, fmt.Errorf("%s", f.descriptor.ProbeError)
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(f.cfg.Languages...); err != nil {
		_ = client.Close()
		return nil, engine.VariantNone, fmt.Errorf("set languages %v: %w", f.cfg.Languages, err)
	}

	return &handles{client: client}, engine.VariantModern, nil
}

func (f *family) infer(ctx context.Context, eh engine.Handles, img *raster.Image, languages []string) (engine.RawResult, error) {
	h, ok := eh.(*handles)
	if !ok {
		return engine.RawResult{}, fmt.Errorf("unexpected handle bundle type %T", eh)
	}

	// The client outlives the request, so the language set is applied on
	// every call; a hinted request must not change what later hint-less
	// requests run with.
	langs := requestLanguages(languages, f.cfg.Languages)
	if err := h.client.SetLanguage(langs...); err != nil {
		return engine.RawResult{}, fmt.Errorf("set languages %v: %w", langs, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToRGBA()); err != nil {
		return engine.RawResult{}, fmt.Errorf("encode raster: %w", err)
	}
	if err := h.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return engine.RawResult{}, fmt.Errorf("set image: %w", err)
	}

	boxes, err := h.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return engine.RawResult{}, fmt.Errorf("bounding boxes: %w", err)
	}

	var lines []engine.RawLine
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		lines = append(lines, engine.RawLine{
			Text:          text,
			Confidence:    box.Confidence / 100.0,
			HasConfidence: true,
			FlatBox: []float64{
				float64(box.Box.Min.X), float64(box.Box.Min.Y),
				float64(box.Box.Max.X), float64(box.Box.Max.Y),
			},
		})
	}
	return engine.RawResult{Lines: lines}, nil
}

// requestLanguages resolves the traineddata set for a single inference
// call: mapped hints when the request carries any, the configured
// defaults otherwise.
func requestLanguages(hints []string, defaults []string) []string {
	if langs := TraineddataCodes(hints); len(langs) > 0 {
		return langs
	}
	return defaults
}

// TraineddataCodes maps common ISO 639-1 hints onto Tesseract traineddata
// codes, passing through anything already in traineddata form.
func TraineddataCodes(hints []string) []string {
	iso := map[string]string{
		"en": "eng", "de": "deu", "fr": "fra", "es": "spa",
		"it": "ita", "nl": "nld", "pt": "por", "ja": "jpn",
		"zh": "chi_sim", "ko": "kor", "ru": "rus",
	}

	var out []string
	for _, hint := range hints {
		hint = strings.TrimSpace(strings.ToLower(hint))
		if hint == "" {
			continue
		}
		if code, ok := iso[hint]; ok {
			out = append(out, code)
			continue
		}
		out = append(out, hint)
	}
	return out
}
