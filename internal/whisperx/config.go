package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the model key or name ("large-v3", "turbo", "medium.en").
	Model string
	// Binary is the whisperx executable from a provisioned runtime. When
	// empty the engine is launched through uvx.
	Binary string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote models.
	HFToken string
	// Language is an ISO 639-1 hint; empty lets the engine detect it.
	Language string
	// BatchSize overrides the default inference batch size when positive.
	BatchSize int
	// Diarize enables speaker diarization.
	Diarize     bool
	MinSpeakers int
	MaxSpeakers int
}

// WhisperX configuration constants.
const (
	DefaultModel      = "large-v3"
	TurboModel        = "large-v3-turbo"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	DefaultBatchSize  = 4
	ChunkSize         = "15"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "int8"
	CUDAComputeType   = "float16"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// Command names for external tools.
const (
	UVXCommand      = "uvx"
	WhisperXCommand = "whisperx"
	FFmpegCommand   = "ffmpeg"
)

// modelAliases maps short keys accepted on the command line to engine model names.
var modelAliases = map[string]string{
	"large-v3":       DefaultModel,
	"large":          DefaultModel,
	"turbo":          TurboModel,
	"large-v3-turbo": TurboModel,
}

// ResolveModel maps a model key to the name WhisperX expects. Unknown keys
// pass through unchanged so any engine-supported model can be used.
func ResolveModel(key string) string {
	if key == "" {
		return DefaultModel
	}
	if name, ok := modelAliases[key]; ok {
		return name
	}
	return key
}
