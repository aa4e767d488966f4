// Package paddle adapts the paddleocr backend family: a single-variant,
// two-stage engine (text detection followed by per-region recognition)
// running on the shared ONNX pipeline.
package paddle

import (
	"context"
	"fmt"
	"path/filepath"

	"go-ocr-service/internal/engine"
	"go-ocr-service/internal/engine/pipeline"
	"go-ocr-service/internal/onnx"
	"go-ocr-service/internal/raster"

	ort "github.com/getcharzp/onnxruntime_purego"
)

const Name = "paddleocr"

const dirName = "paddleocr"

type Config struct {
	ModelDir           string
	OnnxRuntimeLibPath string
}

func weightFiles(dir string) []string {
	return []string{
		filepath.Join(dir, "det.onnx"),
		filepath.Join(dir, "det.json"),
		filepath.Join(dir, "rec.onnx"),
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

// NewAdapter builds the paddleocr engine adapter.
func NewAdapter(cfg Config) *engine.Adapter {
	f := &family{cfg: cfg, descriptor: Probe(cfg)}
	return engine.NewAdapter(Name, f.load, f.infer)
}

type family struct {
	cfg        Config
	descriptor engine.CapabilityDescriptor
}

type handles struct {
	runtime      *onnx.Runtime
	detModel     *ort.Session
	detProcessor *pipeline.DetProcessor
	recModel     *ort.Session
	recProcessor *pipeline.RecProcessor
}

func (h *handles) Complete() bool {
	return h.detModel != nil && h.detProcessor != nil &&
		h.recModel != nil && h.recProcessor != nil
}

func (h *handles) Close() error {
	if h.detModel != nil {
		h.detModel.Destroy()
	}
	if h.recModel != nil {
		h.recModel.Destroy()
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

	h := &handles{runtime: runtime}
	if h.detModel, err = runtime.NewSession(filepath.Join(dir, "det.onnx")); err != nil {
		return nil, engine.VariantNone, err
	}
	if h.detProcessor, err = pipeline.LoadDetProcessor(filepath.Join(dir, "det.json")); err != nil {
		_ = h.Close()
		return nil, engine.VariantNone, err
	}
	if h.recModel, err = runtime.NewSession(filepath.Join(dir, "rec.onnx")); err != nil {
		_ = h.Close()
		return nil, engine.VariantNone, err
	}
	if h.recProcessor, err = pipeline.LoadRecProcessor(filepath.Join(dir, "rec.json")); err != nil {
		_ = h.Close()
		return nil, engine.VariantNone, err
	}

	return h, engine.VariantModern, nil
}

func (f *family) infer(ctx context.Context, eh engine.Handles, img *raster.Image, languages []string) (engine.RawResult, error) {
	h, ok := eh.(*handles)
	if !ok {
		return engine.RawResult{}, fmt.Errorf("unexpected handle bundle type %T", eh)
	}

	results, err := pipeline.Run(
		[]*raster.Image{img},
		[][]string{languages},
		h.detModel, h.detProcessor,
		h.recModel, h.recProcessor,
	)
	if err != nil {
		return engine.RawResult{}, err
	}
	return engine.RawResult{Lines: results[0]}, nil
}
