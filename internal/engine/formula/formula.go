// Package formula adapts the pix2text backend family, specialized for
// mathematical formulas. Its native output is a bare LaTeX string with no
// per-line structure and no native confidence; the normalizer applies its
// documented fallback.
package formula

import (
	"context"
	"fmt"
	"path/filepath"

	"go-ocr-service/internal/engine"
	"go-ocr-service/internal/engine/pipeline"
	"go-ocr-service/internal/onnx"
	"go-ocr-service/internal/raster"

	ort "github.com/getcharzp/onnxruntime_purego"
	"github.com/up-zero/gotool/imageutil"
)

const Name = "pix2text"

const dirName = "pix2text"

type Config struct {
	ModelDir           string
	OnnxRuntimeLibPath string
}

func weightFiles(dir string) []string {
	return []string{
		filepath.Join(dir, "formula.onnx"),
		filepath.Join(dir, "rec.json"),
	}
}

// Probe checks for an installed weight bundle without loading it.
func Probe(cfg Config) engine.CapabilityDescriptor {
	dir := filepath.Join(cfg.ModelDir, dirName)
	if engine.FilesPresent(weightFiles(dir)...) {
		return engine.CapabilityDescriptor{Variant: engine.VariantModern}
	}
	return engine.CapabilityDescriptor{
		Variant:    engine.VariantNone,
		ProbeError: engine.DescribeMissing(Name, dir),
	}
}

// NewAdapter builds the pix2text engine adapter.
func NewAdapter(cfg Config) *engine.Adapter {
	f := &family{cfg: cfg, descriptor: Probe(cfg)}
	return engine.NewAdapter(Name, f.load, f.infer)
}

type family struct {
	cfg        Config
	descriptor engine.CapabilityDescriptor
}

type handles struct {
	runtime   *onnx.Runtime
	model     *ort.Session
	processor *pipeline.RecProcessor
}

func (h *handles) Complete() bool {
	return h.model != nil && h.processor != nil
}

func (h *handles) Close() error {
	if h.model != nil {
		h.model.Destroy()
	}
	return nil
}

func (f *family) load(ctx context.Context) (engine.Handles, engine.Variant, error) {
	if f.descriptor.Variant == engine.VariantNone {
		return nil, engine.VariantNone, fmt.Errorf("%s", f.descriptor.ProbeError)
	}
	dir := filepath.Join(f.cfg.ModelDir, dirName)

	runtime, err := onnx.NewRuntime(f.cfg.OnnxRuntimeLibPath)
	if err != nil {
		return nil, engine.VariantNone, err
	}
	model, err := runtime.NewSession(filepath.Join(dir, "formula.onnx"))
	if err != nil {
		return nil, engine.VariantNone, err
	}
	processor, err := pipeline.LoadRecProcessor(filepath.Join(dir, "rec.json"))
	if err != nil {
		model.Destroy()
		return nil, engine.VariantNone, err
	}

	return &handles{runtime: runtime, model: model, processor: processor},
		engine.VariantModern, nil
}

// infer transcribes the whole image as one formula. Language hints are
// irrelevant to LaTeX output and ignored.
func (f *family) infer(ctx context.Context, eh engine.Handles, img *raster.Image, languages []string) (engine.RawResult, error) {
	h, ok := eh.(*handles)
	if !ok {
		return engine.RawResult{}, fmt.Errorf("unexpected handle bundle type %T", eh)
	}

	data, shape := formulaInput(img, h.processor.InputHeight)
	output, err := onnx.RunFloat32(h.model, "input", shape, data, "logits")
	if err != nil {
		return engine.RawResult{}, err
	}

	latex, _ := pipeline.DecodeCTC(output, len(h.processor.Charset)+1, h.processor.Charset)
	return engine.PlainResult(latex), nil
}

func formulaInput(img *raster.Image, targetH int) ([]float32, []int64) {
	targetW := img.Width * targetH / img.Height
	if targetW < 1 {
		targetW = 1
	}
	resized := imageutil.Resize(img.ToRGBA(), targetW, targetH)
	gray := imageutil.Grayscale(resized)

	data := make([]float32, targetH*targetW)
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			pix := gray.Pix[y*gray.Stride+x]
			data[y*targetW+x] = (float32(pix)/255.0 - 0.5) / 0.5
		}
	}
	return data, []int64{1, 1, int64(targetH), int64(targetW)}
}
