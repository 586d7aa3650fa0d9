//go:build onnx
// +build onnx

package encoder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX-backed encoder under the onnx build tag. Initializes ORT lazily and
// opens a dynamic session. Exposes both the pooled output and the per-token
// hidden states when the model emits them.
type onnxEncoder struct {
	width       int
	modelPath   string
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

func newONNXEncoder(modelPath string, width int) (Encoder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("onnx model path is required")
	}
	return &onnxEncoder{width: width, modelPath: modelPath}, nil
}

func (e *onnxEncoder) Width() int { return e.width }

func (e *onnxEncoder) ensureSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	// Probe IO
	ins, outs, err := ort.GetInputOutputInfo(e.modelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	var inputNames []string
	var idsName, maskName, tokTypeName string
	for _, ii := range ins {
		n := strings.ToLower(ii.Name)
		if strings.Contains(n, "input_ids") || n == "ids" {
			idsName = ii.Name
		}
		if strings.Contains(n, "attention_mask") || n == "mask" {
			maskName = ii.Name
		}
		if strings.Contains(n, "token_type") {
			tokTypeName = ii.Name
		}
	}
	if idsName != "" {
		inputNames = append(inputNames, idsName)
	}
	if maskName != "" {
		inputNames = append(inputNames, maskName)
	}
	if tokTypeName != "" {
		inputNames = append(inputNames, tokTypeName)
	}
	// Fallback: take first two int tensor inputs
	if len(inputNames) == 0 {
		for _, ii := range ins {
			if ii.DataType == ort.TensorElementDataTypeInt64 {
				inputNames = append(inputNames, ii.Name)
				if len(inputNames) >= 2 {
					break
				}
			}
		}
	}
	if len(inputNames) == 0 {
		return fmt.Errorf("could not determine ONNX input names")
	}
	// Take every float output: transformer exports typically emit
	// last_hidden_state (rank 3) and sometimes pooler_output (rank 2).
	var outputNames []string
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat {
			outputNames = append(outputNames, oi.Name)
		}
	}
	if len(outputNames) == 0 {
		return fmt.Errorf("could not determine ONNX output name")
	}

	var opts *ort.SessionOptions
	if onnxEPPreference != "" && onnxEPPreference != "cpu" {
		if o, err2 := ort.NewSessionOptions(); err2 == nil {
			_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
			_ = o.SetIntraOpNumThreads(0)
			_ = o.SetInterOpNumThreads(0)
			switch onnxEPPreference {
			case "cuda":
				if cu, e2 := ort.NewCUDAProviderOptions(); e2 == nil {
					_ = o.AppendExecutionProviderCUDA(cu)
					_ = cu.Destroy()
				}
			case "tensorrt":
				if trt, e2 := ort.NewTensorRTProviderOptions(); e2 == nil {
					_ = o.AppendExecutionProviderTensorRT(trt)
					_ = trt.Destroy()
				}
			case "coreml":
				_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
			case "dml":
				_ = o.AppendExecutionProviderDirectML(onnxDeviceID)
			}
			opts = o
		}
	}
	var s *ort.DynamicAdvancedSession
	if opts != nil {
		s, err = ort.NewDynamicAdvancedSession(e.modelPath, inputNames, outputNames, opts)
		_ = opts.Destroy()
	} else {
		s, err = ort.NewDynamicAdvancedSession(e.modelPath, inputNames, outputNames, nil)
	}
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	e.session = s
	e.inputNames = inputNames
	e.outputNames = outputNames
	return nil
}

func (e *onnxEncoder) Forward(ctx context.Context, ids, mask [][]int64) (*Outputs, error) {
	if err := e.ensureSession(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	batch := len(ids)
	if batch == 0 {
		return &Outputs{}, nil
	}
	seq := len(ids[0])
	flatIDs := make([]int64, batch*seq)
	flatMask := make([]int64, batch*seq)
	for i := 0; i < batch; i++ {
		copy(flatIDs[i*seq:(i+1)*seq], ids[i])
		copy(flatMask[i*seq:(i+1)*seq], mask[i])
	}
	shape := ort.NewShape(int64(batch), int64(seq))
	idsTensor, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	inVals := make([]ort.Value, len(e.inputNames))
	for i, name := range e.inputNames {
		ln := strings.ToLower(name)
		switch {
		case strings.Contains(ln, "input_ids") || ln == "ids":
			inVals[i] = idsTensor
		case strings.Contains(ln, "attention_mask") || ln == "mask":
			inVals[i] = maskTensor
		default:
			zero := make([]int64, batch*seq)
			zeroTensor, e2 := ort.NewTensor(shape, zero)
			if e2 != nil {
				return nil, fmt.Errorf("alloc zero tensor: %w", e2)
			}
			defer zeroTensor.Destroy()
			inVals[i] = zeroTensor
		}
	}
	outs := make([]ort.Value, len(e.outputNames))
	if err := e.session.Run(inVals, outs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	result := &Outputs{}
	for _, o := range outs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			continue
		}
		data := t.GetData()
		dims := t.GetShape()
		switch len(dims) {
		case 2: // pooled: [batch, width]
			rows, cols := int(dims[0]), int(dims[1])
			pooled := make([][]float32, rows)
			for r := 0; r < rows; r++ {
				row := make([]float32, cols)
				copy(row, data[r*cols:(r+1)*cols])
				pooled[r] = adjustToWidth(row, e.width)
			}
			result.Pooled = pooled
		case 3: // hidden states: [batch, seq, width]
			b, s, w := int(dims[0]), int(dims[1]), int(dims[2])
			hidden := make([][][]float32, b)
			for r := 0; r < b; r++ {
				rows := make([][]float32, s)
				for j := 0; j < s; j++ {
					start := (r*s + j) * w
					row := make([]float32, w)
					copy(row, data[start:start+w])
					rows[j] = adjustToWidth(row, e.width)
				}
				hidden[r] = rows
			}
			result.Hidden = hidden
		}
	}
	if result.Pooled == nil && result.Hidden != nil {
		// derive masked mean pooling when the export has no pooler head
		result.Pooled = make([][]float32, batch)
		for i := range result.Hidden {
			pooled := make([]float32, e.width)
			var count float32
			for j, vec := range result.Hidden[i] {
				if j < len(mask[i]) && mask[i][j] == 1 {
					for k := range pooled {
						pooled[k] += vec[k]
					}
					count++
				}
			}
			if count > 0 {
				for k := range pooled {
					pooled[k] /= count
				}
			}
			result.Pooled[i] = pooled
		}
	}
	if result.Pooled == nil && result.Hidden == nil {
		return nil, fmt.Errorf("unexpected output ranks from %s", e.modelPath)
	}
	return result, nil
}

// adjustToWidth truncates or pads a vector to the target width.
func adjustToWidth(vec []float32, target int) []float32 {
	if target <= 0 || len(vec) == target {
		return vec
	}
	if len(vec) > target {
		return vec[:target]
	}
	out := make([]float32, target)
	copy(out, vec)
	return out
}
