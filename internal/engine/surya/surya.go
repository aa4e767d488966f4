// Package surya adapts the surya backend family, which ships two mutually
// incompatible API shapes. The modern variant bundles detection and
// recognition into one predictor constructed in a single call; the legacy
// variant loads four independent handles (detection model and
// preprocessor, recognition model and preprocessor) driven through the
// two-stage pipeline. The adapter negotiates the variant at load time and
// hides the difference behind the engine contract.
package surya

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

const Name = "surya"

// The modern predictor takes a fixed task descriptor plus a math-aware
// recognition flag; both ride in as a flags tensor on every call.
const (
	taskOCRWithBoxes = 1.0
	mathModeEnabled  = 1.0

	modernInputSize = 1024
)

const modernDirName = "surya"

// The legacy weights ship under more than one installed directory name;
// the first readable one wins.
var legacyDirNames = []string{"surya-legacy", "surya_ocr"}

type Config struct {
	ModelDir           string
	OnnxRuntimeLibPath string
}

func modernFiles(dir string) []string {
	return []string{
		filepath.Join(dir, "predictor.onnx"),
		filepath.Join(dir, "charset.txt"),
	}
}

func legacyFiles(dir string) []string {
	return []string{
		filepath.Join(dir, "det.onnx"),
		filepath.Join(dir, "det.json"),
		filepath.Join(dir, "rec.onnx"),
		filepath.Join(dir, "rec.json"),
	}
}

// Probe inspects which variant surfaces are installed without loading any
// weights. The modern variant is preferred; legacy is selected only when
// the modern surface is absent, never because of a later load error.
func Probe(cfg Config) engine.CapabilityDescriptor {
	modernDir := filepath.Join(cfg.ModelDir, modernDirName)
	if engine.FilesPresent(modernFiles(modernDir)...) {
		return engine.CapabilityDescriptor{Variant: engine.VariantModern}
	}
	if _, ok := firstLegacyDir(cfg.ModelDir); ok {
		return engine.CapabilityDescriptor{Variant: engine.VariantLegacy}
	}

	looked := append([]string{modernDir}, legacyCandidates(cfg.ModelDir)...)
	return engine.CapabilityDescriptor{
		Variant:    engine.VariantNone,
		ProbeError: engine.DescribeMissing(Name, looked...),
	}
}

func legacyCandidates(modelDir string) []string {
	out := make([]string, 0, len(legacyDirNames))
	for _, name := range legacyDirNames {
		out = append(out, filepath.Join(modelDir, name))
	}
	return out
}

func firstLegacyDir(modelDir string) (string, bool) {
	for _, dir := range legacyCandidates(modelDir) {
		if engine.FilesPresent(legacyFiles(dir)...) {
			return dir, true
		}
	}
	return "", false
}

type family struct {
	cfg        Config
	descriptor engine.CapabilityDescriptor

	// Construction seams, replaceable in tests.
	loadModern func() (*handles, error)
	loadLegacy func() (*handles, error)
}

// NewAdapter builds the surya engine adapter. The capability probe runs
// once, here; the heavy model construction is deferred to the adapter's
// load protocol.
func NewAdapter(cfg Config) *engine.Adapter {
	f := newFamily(cfg)
	return engine.NewAdapter(Name, f.load, f.infer)
}

func newFamily(cfg Config) *family {
	f := &family{cfg: cfg, descriptor: Probe(cfg)}
	f.loadModern = f.constructModern
	f.loadLegacy = f.constructLegacy
	return f
}

type handles struct {
	variant engine.Variant
	runtime *onnx.Runtime

	// Modern: one bundled predictor.
	predictor *ort.Session
	charset   []string

	// Legacy: four independent handles.
	detModel     *ort.Session
	detProcessor *pipeline.DetProcessor
	recModel     *ort.Session
	recProcessor *pipeline.RecProcessor
}

func (h *handles) Complete() bool {
	switch h.variant {
	case engine.VariantModern:
		return h.predictor != nil && len(h.charset) > 0
	case engine.VariantLegacy:
		return h.detModel != nil && h.detProcessor != nil &&
			h.recModel != nil && h.recProcessor != nil
	default:
		return false
	}
}

func (h *handles) Close() error {
	if h.predictor != nil {
		h.predictor.Destroy()
	}
	if h.detModel != nil {
		h.detModel.Destroy()
	}
	if h.recModel != nil {
		h.recModel.Destroy()
	}
	return nil
}

// load selects and constructs the variant. Modern is attempted only when
// the probe reported it present; if modern construction fails, the error
// is recorded and the legacy path is probed and constructed as fallback.
// Both failing produces a composite error naming both causes.
func (f *family) load(ctx context.Context) (engine.Handles, engine.Variant, error) {
	if f.descriptor.Variant == engine.VariantNone {
		return nil, engine.VariantNone, fmt.Errorf("%s", f.descriptor.ProbeError)
	}

	var modernErr error
	if f.descriptor.Variant == engine.VariantModern {
		h, err := f.loadModern()
		if err == nil {
			return h, engine.VariantModern, nil
		}
		modernErr = err
	}

	h, legacyErr := f.loadLegacy()
	if legacyErr == nil {
		return h, engine.VariantLegacy, nil
	}

	if modernErr != nil {
		return nil, engine.VariantNone,
			fmt.Errorf("modern variant: %v; legacy fallback: %v", modernErr, legacyErr)
	}
	return nil, engine.VariantNone, legacyErr
}

// constructModern builds the bundled predictor: a single session carrying
// all the sub-models the variant needs.
func (f *family) constructModern() (*handles, error) {
	dir := filepath.Join(f.cfg.ModelDir, modernDirName)

	runtime, err := onnx.NewRuntime(f.cfg.OnnxRuntimeLibPath)
	if err != nil {
		return nil, err
	}
	predictor, err := runtime.NewSession(filepath.Join(dir, "predictor.onnx"))
	if err != nil {
		return nil, err
	}
	charset, err := pipeline.LoadCharset(filepath.Join(dir, "charset.txt"))
	if err != nil {
		predictor.Destroy()
		return nil, err
	}

	return &handles{
		variant:   engine.VariantModern,
		runtime:   runtime,
		predictor: predictor,
		charset:   charset,
	}, nil
}

// constructLegacy probes the candidate install directories and constructs
// the four legacy handles from the first usable one.
func (f *family) constructLegacy() (*handles, error) {
	dir, ok := firstLegacyDir(f.cfg.ModelDir)
	if !ok {
		return nil, fmt.Errorf("no legacy weights under %v", legacyCandidates(f.cfg.ModelDir))
	}

	runtime, err := onnx.NewRuntime(f.cfg.OnnxRuntimeLibPath)
	if err != nil {
		return nil, err
	}

	h := &handles{variant: engine.VariantLegacy, runtime: runtime}

	if h.detModel, err = runtime.NewSession(filepath.Join(dir, "det.onnx")); err != nil {
		return nil, err
	}
	if h.detProcessor, err = pipeline.LoadDetProcessor(filepath.Join(dir, "det.json")); err != nil {
		_ = h.Close()
		return nil, err
	}
	if h.recModel, err = runtime.NewSession(filepath.Join(dir, "rec.onnx")); err != nil {
		_ = h.Close()
		return nil, err
	}
	if h.recProcessor, err = pipeline.LoadRecProcessor(filepath.Join(dir, "rec.json")); err != nil {
		_ = h.Close()
		return nil, err
	}

	return h, nil
}

func (f *family) infer(ctx context.Context, eh engine.Handles, img *raster.Image, languages []string) (engine.RawResult, error) {
	h, ok := eh.(*handles)
	if !ok {
		return engine.RawResult{}, fmt.Errorf("unexpected handle bundle type %T", eh)
	}

	switch h.variant {
	case engine.VariantModern:
		return runModern(h, img)
	case engine.VariantLegacy:
		return runLegacy(h, img, languages)
	default:
		return engine.RawResult{}, fmt.Errorf("no usable variant loaded")
	}
}

// runModern drives the bundled predictor: detection and recognition fused
// into one call, with the fixed task descriptor and math-aware flag.
func runModern(h *handles, img *raster.Image) (engine.RawResult, error) {
	data, ratio := modernInput(img)

	outputs, err := onnx.RunSession(h.predictor,
		[]onnx.Feed{
			{Name: "images", Shape: []int64{1, 3, modernInputSize, modernInputSize}, Data: data},
			{Name: "flags", Shape: []int64{1, 2}, Data: []float32{taskOCRWithBoxes, mathModeEnabled}},
		},
		"boxes", "chars",
	)
	if err != nil {
		return engine.RawResult{}, err
	}

	return decodeModern(outputs[0], outputs[1], h.charset, ratio)
}

func modernInput(img *raster.Image) ([]float32, float64) {
	size := modernInputSize
	ratio := float64(size) / float64(maxInt(img.Width, img.Height))
	if ratio > 1 {
		ratio = 1
	}

	newW := int(float64(img.Width) * ratio)
	newH := int(float64(img.Height) * ratio)
	resized := imageutil.Resize(img.ToRGBA(), newW, newH)

	data := make([]float32, 3*size*size)
	area := size * size
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*area+y*size+x] = (float32(r>>8)/255.0 - 0.5) / 0.5
			data[1*area+y*size+x] = (float32(g>>8)/255.0 - 0.5) / 0.5
			data[2*area+y*size+x] = (float32(b>>8)/255.0 - 0.5) / 0.5
		}
	}
	return data, ratio
}

// decodeModern unpacks the fused predictor outputs: per line, "boxes"
// carries four corner points plus a confidence, "chars" carries the CTC
// id sequence for the same line.
func decodeModern(boxes, chars []float32, charset []string, ratio float64) (engine.RawResult, error) {
	const boxStride = 9 // 4 corner points + confidence

	if len(boxes)%boxStride != 0 {
		return engine.RawResult{}, fmt.Errorf("malformed boxes output (len %d)", len(boxes))
	}
	n := len(boxes) / boxStride
	if n == 0 {
		return engine.RawResult{}, nil
	}
	if len(chars)%n != 0 {
		return engine.RawResult{}, fmt.Errorf("malformed chars output (len %d for %d boxes)", len(chars), n)
	}
	seqLen := len(chars) / n

	var lines []engine.RawLine
	for i := 0; i < n; i++ {
		row := boxes[i*boxStride : (i+1)*boxStride]
		text := decodeCharRow(chars[i*seqLen:(i+1)*seqLen], charset)
		if text == "" {
			continue
		}

		corners := make([][]float64, 0, 4)
		for c := 0; c < 4; c++ {
			corners = append(corners, []float64{
				float64(row[c*2]) / ratio,
				float64(row[c*2+1]) / ratio,
			})
		}

		lines = append(lines, engine.RawLine{
			Text:          text,
			Confidence:    float64(row[8]),
			HasConfidence: true,
			Box:           corners,
		})
	}
	return engine.RawResult{Lines: lines}, nil
}

// decodeCharRow CTC-decodes one row of float-encoded char ids.
func decodeCharRow(row []float32, charset []string) string {
	var text string
	lastIdx := -1
	for _, v := range row {
		idx := int(v)
		if idx != 0 && idx != lastIdx && idx-1 < len(charset) && idx > 0 {
			text += charset[idx-1]
		}
		lastIdx = idx
	}
	return text
}

// runLegacy drives the four-handle two-stage pipeline through the stable
// legacy calling convention.
func runLegacy(h *handles, img *raster.Image, languages []string) (engine.RawResult, error) {
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
