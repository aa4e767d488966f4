// Package pipeline implements the two-stage detect-then-recognize OCR
// flow shared by the ONNX-backed backend families: a detection model with
// its preprocessor finds text regions, then a recognition model with its
// preprocessor transcribes each region. The Run signature is the stable
// legacy calling convention the adapters build on.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go-ocr-service/internal/engine"
	"go-ocr-service/internal/onnx"
	"go-ocr-service/internal/raster"

	ort "github.com/getcharzp/onnxruntime_purego"
	"github.com/up-zero/gotool/imageutil"
)

// DetProcessor holds the detection model's input contract, loaded from the
// det.json shipped next to the weights.
type DetProcessor struct {
	InputSize    int        `json:"input_size"`
	Mean         [3]float32 `json:"mean"`
	Std          [3]float32 `json:"std"`
	BoxThreshold float32    `json:"box_threshold"`
}

// RecProcessor holds the recognition model's input contract and charset.
type RecProcessor struct {
	InputHeight int `json:"input_height"`
	CharsetFile string `json:"charset_file"`

	Charset []string `json:"-"`
}

// LoadDetProcessor reads a detection preprocessor descriptor.
func LoadDetProcessor(path string) (*DetProcessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detection preprocessor %s: %w", path, err)
	}
	p := &DetProcessor{InputSize: 960, BoxThreshold: 0.5}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse detection preprocessor %s: %w", path, err)
	}
	if p.InputSize <= 0 {
		return nil, fmt.Errorf("detection preprocessor %s: input_size must be > 0", path)
	}
	return p, nil
}

// LoadRecProcessor reads a recognition preprocessor descriptor and the
// charset file it references (resolved relative to the descriptor).
func LoadRecProcessor(path string) (*RecProcessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recognition preprocessor %s: %w", path, err)
	}
	p := &RecProcessor{InputHeight: 48}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse recognition preprocessor %s: %w", path, err)
	}
	if p.CharsetFile == "" {
		return nil, fmt.Errorf("recognition preprocessor %s: charset_file missing", path)
	}
	charset, err := LoadCharset(filepath.Join(filepath.Dir(path), p.CharsetFile))
	if err != nil {
		return nil, err
	}
	p.Charset = charset
	return p, nil
}

// LoadCharset reads one charset entry per line.
func LoadCharset(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open charset %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read charset %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("charset %s is empty", path)
	}
	return lines, nil
}

// Run executes the two-stage flow over a batch of images. languageLists
// carries per-image language hints for signature stability; the packaged
// models are language-fixed, so the hints do not alter inference.
func Run(images []*raster.Image, languageLists [][]string,
	detModel *ort.Session, detProcessor *DetProcessor,
	recModel *ort.Session, recProcessor *RecProcessor) ([][]engine.RawLine, error) {

	if detModel == nil || detProcessor == nil || recModel == nil || recProcessor == nil {
		return nil, fmt.Errorf("two-stage pipeline requires all four handles")
	}

	results := make([][]engine.RawLine, len(images))
	for i, img := range images {
		boxes, err := Detect(img, detModel, detProcessor)
		if err != nil {
			return nil, err
		}

		var lines []engine.RawLine
		for _, box := range boxes {
			crop := img.Crop(box[0], box[1], box[2], box[3])
			if crop.Width == 0 || crop.Height == 0 {
				continue
			}
			text, confidence, err := Recognize(crop, recModel, recProcessor)
			if err != nil {
				return nil, err
			}
			if text == "" {
				continue
			}
			lines = append(lines, engine.RawLine{
				Text:          text,
				Confidence:    confidence,
				HasConfidence: true,
				FlatBox: []float64{
					float64(box[0]), float64(box[1]),
					float64(box[2]), float64(box[3]),
				},
			})
		}
		results[i] = lines
	}
	return results, nil
}

// Detect runs the detection stage and returns axis-aligned boxes in image
// coordinates, in the model's output order.
func Detect(img *raster.Image, detModel *ort.Session, p *DetProcessor) ([][4]int, error) {
	data, ratio := detInput(img, p)
	shape := []int64{1, 3, int64(p.InputSize), int64(p.InputSize)}

	output, err := onnx.RunFloat32(detModel, "images", shape, data, "boxes")
	if err != nil {
		return nil, fmt.Errorf("detection inference: %w", err)
	}

	// Each detection row is [x1, y1, x2, y2, score] in input-scale pixels.
	var boxes [][4]int
	for offset := 0; offset+5 <= len(output); offset += 5 {
		score := output[offset+4]
		if score < p.BoxThreshold {
			continue
		}
		x1 := int(float64(output[offset+0]) / ratio)
		y1 := int(float64(output[offset+1]) / ratio)
		x2 := int(float64(output[offset+2]) / ratio)
		y2 := int(float64(output[offset+3]) / ratio)
		boxes = append(boxes, [4]int{x1, y1, x2, y2})
	}
	return boxes, nil
}

func detInput(img *raster.Image, p *DetProcessor) ([]float32, float64) {
	size := p.InputSize
	ratio := math.Min(float64(size)/float64(img.Height), float64(size)/float64(img.Width))

	newW := int(float64(img.Width) * ratio)
	newH := int(float64(img.Height) * ratio)
	resized := imageutil.Resize(img.ToRGBA(), newW, newH)

	data := make([]float32, 3*size*size)
	area := size * size
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*area+y*size+x] = (float32(r>>8)/255.0 - p.Mean[0]) / std(p.Std[0])
			data[1*area+y*size+x] = (float32(g>>8)/255.0 - p.Mean[1]) / std(p.Std[1])
			data[2*area+y*size+x] = (float32(b>>8)/255.0 - p.Mean[2]) / std(p.Std[2])
		}
	}
	return data, ratio
}

func std(v float32) float32 {
	if v == 0 {
		return 1
	}
	return v
}

// Recognize runs the recognition stage over one cropped region and
// returns the transcribed text with its mean per-step confidence.
func Recognize(crop *raster.Image, recModel *ort.Session, p *RecProcessor) (string, float64, error) {
	data, shape := recInput(crop, p)

	output, err := onnx.RunFloat32(recModel, "input", shape, data, "logits")
	if err != nil {
		return "", 0, fmt.Errorf("recognition inference: %w", err)
	}

	text, confidence := DecodeCTC(output, len(p.Charset)+1, p.Charset)
	return text, confidence, nil
}

func recInput(crop *raster.Image, p *RecProcessor) ([]float32, []int64) {
	targetH := p.InputHeight
	targetW := crop.Width * targetH / crop.Height
	if targetW < 1 {
		targetW = 1
	}
	resized := imageutil.Resize(crop.ToRGBA(), targetW, targetH)
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

// DecodeCTC greedy-decodes per-step logits: argmax each step, drop blanks
// (index 0) and repeats, and average the softmax probability of the kept
// steps as the confidence. Zero kept steps yields an empty string with
// confidence 0.
func DecodeCTC(output []float32, numClasses int, charset []string) (string, float64) {
	if numClasses <= 0 || len(output) < numClasses {
		return "", 0
	}

	var text string
	var probSum float64
	kept := 0
	lastIdx := -1

	steps := len(output) / numClasses
	for i := 0; i < steps; i++ {
		step := output[i*numClasses : (i+1)*numClasses]

		maxIdx, maxVal := 0, float32(math.Inf(-1))
		for idx, val := range step {
			if val > maxVal {
				maxVal = val
				maxIdx = idx
			}
		}

		if maxIdx != 0 && maxIdx != lastIdx {
			if maxIdx-1 < len(charset) {
				text += charset[maxIdx-1]
				probSum += softmaxProb(step, maxIdx)
				kept++
			}
		}
		lastIdx = maxIdx
	}

	if kept == 0 {
		return "", 0
	}
	return text, probSum / float64(kept)
}

func softmaxProb(logits []float32, idx int) float64 {
	var max float32 = logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - max))
	}
	if sum == 0 {
		return 0
	}
	return math.Exp(float64(logits[idx]-max)) / sum
}
