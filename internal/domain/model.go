package domain

import "time"

// Core models used internally and serialized by the HTTP adapter. The
// verification and compression runs are session-local; collaborator records
// live in records.go.

type RunKind string

const (
	KindVerification RunKind = "verification"
	KindCompression  RunKind = "compression"
)

type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

type LogEntry struct {
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// FileRef is the selected file. Only name and size feed the analyzers.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	// Path is where the upload was spooled, empty when only metadata was sent.
	Path string `json:"-"`
}

type VerificationRun struct {
	ID           string       `json:"id"`
	SelectedFile FileRef      `json:"selectedFile"`
	Logs         []LogEntry   `json:"logs"`
	Progress     int          `json:"progress"`
	Stage        string       `json:"stage"`
	Status       RunStatus    `json:"status"`
	Error        string       `json:"error,omitempty"`
	Result       *FinalReport `json:"result"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type ReportStatus string

const (
	ReportVerified ReportStatus = "verified"
	ReportWarning  ReportStatus = "warning"
)

type FinalReport struct {
	Status              ReportStatus        `json:"status"`
	Score               int                 `json:"score"`
	Grade               string              `json:"grade"`
	FileInfo            FileInfo            `json:"fileInfo"`
	SecurityResult      SecurityResult      `json:"securityResult"`
	MLAnalysis          MLAnalysis          `json:"mlAnalysis"`
	Performance         Performance         `json:"performance"`
	Compatibility       Compatibility       `json:"compatibility"`
	Quality             Quality             `json:"quality"`
	CompressionAnalysis CompressionAnalysis `json:"compressionAnalysis"`
	Timestamp           time.Time           `json:"timestamp"`
	VerificationID      string              `json:"verificationId"`
}

type FileInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Format    string `json:"format"`
	Extension string `json:"extension"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"sizeBytes"`
}

type ThreatSeverity string

const (
	SeverityWarning  ThreatSeverity = "warning"
	SeverityCritical ThreatSeverity = "critical"
)

type Threat struct {
	Code        string         `json:"code"`
	Severity    ThreatSeverity `json:"severity"`
	Description string         `json:"description"`
}

type SecurityResult struct {
	Safe            bool      `json:"safe"`
	Threats         []Threat  `json:"threats"`
	ChecksPerformed []string  `json:"checksPerformed"`
	ScannedAt       time.Time `json:"scannedAt"`
}

// Critical reports whether any threat must abort the run.
func (r SecurityResult) Critical() bool {
	for _, t := range r.Threats {
		if t.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

type Layer struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Parameters int64  `json:"parameters"`
	Trainable  bool   `json:"trainable"`
}

type MLAnalysis struct {
	Architecture        string  `json:"architecture"`
	Framework           string  `json:"framework"`
	LayerCount          int     `json:"layerCount"`
	Layers              []Layer `json:"layers"`
	TotalParameters     int64   `json:"totalParameters"`
	TrainableParameters int64   `json:"trainableParameters"`
	Precision           string  `json:"precision"`
	Pruned              bool    `json:"pruned"`
	Quantized           bool    `json:"quantized"`
	InputShape          []int   `json:"inputShape"`
	OutputShape         []int   `json:"outputShape"`
}

type Performance struct {
	InferenceTimeMs  float64 `json:"inferenceTimeMs"`
	LatencyP95Ms     float64 `json:"latencyP95Ms"`
	ThroughputPerSec float64 `json:"throughputPerSec"`
	MemoryMB         float64 `json:"memoryMB"`
}

type Compatibility struct {
	IOS     bool     `json:"ios"`
	Android bool     `json:"android"`
	Web     bool     `json:"web"`
	Edge    bool     `json:"edge"`
	Notes   []string `json:"notes,omitempty"`
}

type Quality struct {
	Accuracy   int    `json:"accuracy"`
	Robustness int    `json:"robustness"`
	Efficiency int    `json:"efficiency"`
	Security   int    `json:"security"`
	Overall    int    `json:"overall"`
	Grade      string `json:"grade"`
}

type CompressionAnalysis struct {
	EstimatedRatio  int      `json:"estimatedRatio"`
	EstimatedSizeMB float64  `json:"estimatedSizeMB"`
	Recommended     bool     `json:"recommended"`
	Techniques      []string `json:"techniques"`
}

type CompressionLevel string

const (
	LevelLight      CompressionLevel = "light"
	LevelBalanced   CompressionLevel = "balanced"
	LevelAggressive CompressionLevel = "aggressive"
	LevelExtreme    CompressionLevel = "extreme"
)

// Valid reports whether l is one of the known levels.
func (l CompressionLevel) Valid() bool {
	switch l {
	case LevelLight, LevelBalanced, LevelAggressive, LevelExtreme:
		return true
	}
	return false
}

type ModelInfo struct {
	Name       string  `json:"name"`
	Format     string  `json:"format"`
	SizeBytes  int64   `json:"sizeBytes"`
	SizeMB     float64 `json:"sizeMB"`
	Parameters int64   `json:"parameters"`
}

type CompressionResult struct {
	OriginalSizeMB    float64  `json:"originalSizeMB"`
	CompressedSizeMB  float64  `json:"compressedSizeMB"`
	Ratio             float64  `json:"ratio"`
	AccuracyRetention float64  `json:"accuracyRetention"`
	SpeedUp           float64  `json:"speedUp"`
	Techniques        []string `json:"techniques"`
}

type CompressionRun struct {
	ID                string             `json:"id"`
	ModelInfo         ModelInfo          `json:"modelInfo"`
	CompressionLevel  CompressionLevel   `json:"compressionLevel"`
	CompressionResult *CompressionResult `json:"compressionResult"`
	Logs              []LogEntry         `json:"logs"`
	Progress          int                `json:"progress"`
	Stage             string             `json:"stage"`
	Status            RunStatus          `json:"status"`
	Error             string             `json:"error,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}
