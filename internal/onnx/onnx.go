// Package onnx wraps the onnxruntime purego bindings behind the small
// surface the engine adapters need: runtime bring-up, session construction
// and single input/output tensor round-trips.
package onnx

import (
	"fmt"
	"runtime"

	ort "github.com/getcharzp/onnxruntime_purego"
)

// Runtime owns the loaded onnxruntime shared library and the session
// options shared by every session created through it. Construct once per
// process; sessions created from a ready Runtime are safe for concurrent
// Run calls with distinct inputs.
type Runtime struct {
	engine  *ort.Engine
	options *ort.SessionOptions
}

// NewRuntime loads the onnxruntime shared library from libPath, or from the
// platform default location when libPath is empty.
func NewRuntime(libPath string) (*Runtime, error) {
	if libPath == "" {
		libPath = DefaultLibraryPath()
	}
	engine, err := ort.NewEngine(libPath)
	if err != nil {
		return nil, fmt.Errorf("load onnxruntime library %s: %w", libPath, err)
	}
	options, err := engine.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	return &Runtime{engine: engine, options: options}, nil
}

// NewSession builds an inference session for the model at modelPath.
func (r *Runtime) NewSession(modelPath string) (*ort.Session, error) {
	session, err := r.engine.NewSession(modelPath, r.options)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}
	return session, nil
}

// RunFloat32 feeds one float32 input tensor and reads one float32 output.
func RunFloat32(session *ort.Session, inputName string, shape []int64, data []float32, outputName string) ([]float32, error) {
	outputs, err := run(session, inputName, shape, data)
	if err != nil {
		return nil, err
	}
	defer destroyAll(outputs)

	value, ok := outputs[outputName]
	if !ok {
		return nil, fmt.Errorf("model output %q missing", outputName)
	}
	return ort.GetTensorData[float32](value)
}

// destroyAll releases every native tensor in a session output map. Models
// can emit outputs beyond the ones a caller reads; those still hold
// native memory until destroyed.
func destroyAll(values map[string]*ort.Value) {
	for _, v := range values {
		v.Destroy()
	}
}

// Feed is one named float32 input tensor.
type Feed struct {
	Name  string
	Shape []int64
	Data  []float32
}

// RunSession feeds any number of float32 inputs and reads the named
// float32 outputs, in order.
func RunSession(session *ort.Session, feeds []Feed, outputNames ...string) ([][]float32, error) {
	inputs := make(map[string]*ort.Value, len(feeds))
	for _, feed := range feeds {
		tensor, err := ort.NewTensor(feed.Shape, feed.Data)
		if err != nil {
			for _, v := range inputs {
				v.Destroy()
			}
			return nil, fmt.Errorf("build input tensor %q: %w", feed.Name, err)
		}
		inputs[feed.Name] = tensor
	}
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()

	outputs, err := session.Run(inputs)
	if err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}
	defer destroyAll(outputs)

	results := make([][]float32, 0, len(outputNames))
	for _, name := range outputNames {
		value, ok := outputs[name]
		if !ok {
			return nil, fmt.Errorf("model output %q missing", name)
		}
		data, err := ort.GetTensorData[float32](value)
		if err != nil {
			return nil, fmt.Errorf("read model output %q: %w", name, err)
		}
		results = append(results, data)
	}
	return results, nil
}

func run(session *ort.Session, inputName string, shape []int64, data []float32) (map[string]*ort.Value, error) {
	tensor, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer tensor.Destroy()

	outputs, err := session.Run(map[string]*ort.Value{inputName: tensor})
	if err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}
	return outputs, nil
}

// DefaultLibraryPath resolves the bundled onnxruntime shared library for
// the current platform.
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so"
	}

	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}
