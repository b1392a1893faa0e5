package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"modelmarket/internal/domain"
)

const (
	megabyte = 1024 * 1024

	// MaxSafeSize is the largest upload the security scan accepts without a threat.
	MaxSafeSize = 300 * megabyte
)

var fileTypes = map[string]string{
	".onnx":        "ONNX Model",
	".pt":          "PyTorch Model",
	".pth":         "PyTorch Model",
	".h5":          "Keras Model",
	".keras":       "Keras Model",
	".pb":          "TensorFlow Model",
	".tflite":      "TensorFlow Lite Model",
	".safetensors": "SafeTensors Model",
	".gguf":        "GGUF Model",
	".pkl":         "Pickle Model",
	".bin":         "Binary Model",
}

var frameworks = map[string]string{
	".onnx":        "ONNX Runtime",
	".pt":          "PyTorch",
	".pth":         "PyTorch",
	".safetensors": "PyTorch",
	".h5":          "Keras",
	".keras":       "Keras",
	".pb":          "TensorFlow",
	".tflite":      "TensorFlow Lite",
	".gguf":        "llama.cpp",
}

// DefaultArchitectures maps an extension to the architecture names the ML
// analysis picks from. The empty key is the fallback.
var DefaultArchitectures = map[string][]string{
	".onnx":        {"ResNet-50", "MobileNetV2", "EfficientNet-B0", "BERT-Base"},
	".pt":          {"ResNet-101", "GPT-2", "ViT-B/16", "YOLOv5"},
	".pth":         {"ResNet-101", "GPT-2", "ViT-B/16", "YOLOv5"},
	".safetensors": {"Llama-2-7B", "Mistral-7B", "Stable Diffusion UNet"},
	".h5":          {"VGG16", "InceptionV3", "Xception"},
	".keras":       {"VGG16", "InceptionV3", "Xception"},
	".pb":          {"MobileNetV3", "EfficientDet-D0", "SSD MobileNet"},
	".tflite":      {"MobileNetV3", "EfficientDet-Lite0", "SSD MobileNet"},
	".gguf":        {"Llama-2-7B-Q4", "Mistral-7B-Q5", "Phi-2-Q8"},
	"":             {"Custom Transformer", "Custom CNN", "Custom MLP"},
}

var layerTypes = []string{"Conv2D", "Dense", "BatchNorm", "Attention", "LayerNorm", "Embedding", "Pooling"}

// FormatMB renders a byte count as "X.XX MB".
func FormatMB(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/megabyte)
}

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// AnalyzeFile maps the file extension to a human label and formats its size.
func AnalyzeFile(f domain.FileRef) domain.FileInfo {
	ext := extension(f.Name)
	label, ok := fileTypes[ext]
	if !ok {
		label = "Unknown Model"
	}
	format := strings.ToUpper(strings.TrimPrefix(ext, "."))
	if format == "" {
		format = "UNKNOWN"
	}
	return domain.FileInfo{
		Name:      f.Name,
		Type:      label,
		Format:    format,
		Extension: ext,
		Size:      FormatMB(f.Size),
		SizeBytes: f.Size,
	}
}

var securityChecks = []string{
	"file size limit",
	"filename signature",
	"serialized payload heuristics",
	"embedded executable heuristics",
}

// RunDeepSecurityScan flags files over MaxSafeSize and names containing
// "hack" or "malware". Everything else is reported safe.
func RunDeepSecurityScan(f domain.FileRef, now time.Time) domain.SecurityResult {
	res := domain.SecurityResult{
		Threats:         []domain.Threat{},
		ChecksPerformed: append([]string(nil), securityChecks...),
		ScannedAt:       now,
	}
	if f.Size > MaxSafeSize {
		res.Threats = append(res.Threats, domain.Threat{
			Code:        "FILE_TOO_LARGE",
			Severity:    domain.SeverityWarning,
			Description: fmt.Sprintf("file is %s, above the %s limit", FormatMB(f.Size), FormatMB(MaxSafeSize)),
		})
	}
	name := strings.ToLower(f.Name)
	for _, sig := range []string{"hack", "malware"} {
		if strings.Contains(name, sig) {
			res.Threats = append(res.Threats, domain.Threat{
				Code:        "SUSPICIOUS_FILENAME",
				Severity:    domain.SeverityCritical,
				Description: fmt.Sprintf("filename contains %q", sig),
			})
		}
	}
	res.Safe = len(res.Threats) == 0
	return res
}

// AnalyzeMLModel fabricates an architecture, layers and parameter totals.
func AnalyzeMLModel(r Rand, info domain.FileInfo, architectures map[string][]string) domain.MLAnalysis {
	if architectures == nil {
		architectures = DefaultArchitectures
	}
	names, ok := architectures[info.Extension]
	if !ok || len(names) == 0 {
		names = architectures[""]
	}
	if len(names) == 0 {
		names = DefaultArchitectures[""]
	}
	framework, ok := frameworks[info.Extension]
	if !ok {
		framework = "Unknown"
	}

	n := between(r, 20, 100)
	layers := make([]domain.Layer, n)
	var total, trainable int64
	for i := range layers {
		typ := layerTypes[r.IntN(len(layerTypes))]
		var params int64
		switch typ {
		case "Pooling":
			params = 0
		case "BatchNorm", "LayerNorm":
			params = int64(between(r, 64, 4096))
		default:
			params = int64(between(r, 1_000, 2_000_000))
		}
		isTrainable := typ != "BatchNorm" && params > 0
		layers[i] = domain.Layer{
			Index:      i,
			Name:       fmt.Sprintf("%s_%d", strings.ToLower(typ), i),
			Type:       typ,
			Parameters: params,
			Trainable:  isTrainable,
		}
		total += params
		if isTrainable {
			trainable += params
		}
	}

	pruned := r.Float64() < 0.5
	quantized := r.Float64() < 0.5
	precision := "FP32"
	if quantized {
		precision = "INT8"
	}

	return domain.MLAnalysis{
		Architecture:        names[r.IntN(len(names))],
		Framework:           framework,
		LayerCount:          n,
		Layers:              layers,
		TotalParameters:     total,
		TrainableParameters: trainable,
		Precision:           precision,
		Pruned:              pruned,
		Quantized:           quantized,
		InputShape:          []int{1, 3, 224, 224},
		OutputShape:         []int{1, between(r, 2, 1000)},
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// RunPerformanceBenchmark derives inference time from the parameter count plus noise.
func RunPerformanceBenchmark(r Rand, ml domain.MLAnalysis) domain.Performance {
	perMillion := 0.8
	bytesPerParam := 4.0
	if ml.Quantized {
		perMillion = 0.4
		bytesPerParam = 1
	}
	inference := round2(float64(ml.TotalParameters)/1e6*perMillion + 2 + r.Float64()*10)
	return domain.Performance{
		InferenceTimeMs:  inference,
		LatencyP95Ms:     round2(inference * (1.2 + r.Float64()*0.3)),
		ThroughputPerSec: round2(1000 / inference),
		MemoryMB:         round2(float64(ml.TotalParameters) * bytesPerParam / megabyte),
	}
}

// CheckPlatformCompatibility applies per-platform format and size limits.
func CheckPlatformCompatibility(info domain.FileInfo) domain.Compatibility {
	mb := float64(info.SizeBytes) / megabyte
	in := func(exts ...string) bool {
		for _, e := range exts {
			if info.Extension == e {
				return true
			}
		}
		return false
	}
	c := domain.Compatibility{
		IOS:     in(".onnx", ".tflite", ".mlmodel") && mb <= 200,
		Android: in(".onnx", ".tflite", ".pt", ".pth") && mb <= 150,
		Web:     in(".onnx", ".tflite") && mb <= 100,
		Edge:    !in(".pkl") && mb <= 50,
	}
	if !c.IOS {
		c.Notes = append(c.Notes, "iOS requires ONNX, TFLite or Core ML under 200 MB")
	}
	if !c.Android {
		c.Notes = append(c.Notes, "Android requires ONNX, TFLite or PyTorch under 150 MB")
	}
	if !c.Web {
		c.Notes = append(c.Notes, "Web requires ONNX or TFLite under 100 MB")
	}
	if !c.Edge {
		c.Notes = append(c.Notes, "Edge devices require a non-pickle model under 50 MB")
	}
	return c
}

// AnalyzeCompressionPotential estimates the achievable size reduction.
func AnalyzeCompressionPotential(info domain.FileInfo, ml domain.MLAnalysis) domain.CompressionAnalysis {
	ratio := 60
	techniques := []string{"weight clustering"}
	if !ml.Pruned {
		ratio += 15
		techniques = append(techniques, "structured pruning")
	}
	if !ml.Quantized {
		ratio += 20
		techniques = append(techniques, "int8 quantization")
	}
	mb := float64(info.SizeBytes) / megabyte
	return domain.CompressionAnalysis{
		EstimatedRatio:  ratio,
		EstimatedSizeMB: round2(mb * (1 - float64(ratio)/100)),
		Recommended:     ratio >= 75,
		Techniques:      techniques,
	}
}
