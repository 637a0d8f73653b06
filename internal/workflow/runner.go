package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"transcribe/internal/cache"
	"transcribe/internal/config"
	"transcribe/internal/deps"
	"transcribe/internal/diarize"
	"transcribe/internal/export"
	"transcribe/internal/fileutil"
	"transcribe/internal/language"
	"transcribe/internal/logging"
	"transcribe/internal/media/ffprobe"
	"transcribe/internal/preflight"
	"transcribe/internal/runtime"
	"transcribe/internal/services"
	"transcribe/internal/transcript"
	"transcribe/internal/whisperx"
)

// Engine is the transcription backend used by Runner.
type Engine interface {
	ExtractAudio(ctx context.Context, source, dest string) error
	Transcribe(ctx context.Context, source, outputDir string) (whisperx.Result, string, error)
	Model() string
	Diarize() bool
}

// EngineFactory builds an engine for one run.
type EngineFactory func(cfg whisperx.Config) Engine

// Runner executes transcription jobs.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	newEngine EngineFactory
	probe     ffprobe.Runner
}

// NewRunner constructs a runner backed by the WhisperX service.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	ffmpeg := cfg.FFmpegBinary()
	return &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		newEngine: func(c whisperx.Config) Engine {
			return whisperx.NewService(c, ffmpeg)
		},
	}
}

// WithProbeRunner replaces how ffprobe is executed (for testing).
func (r *Runner) WithProbeRunner(run ffprobe.Runner) *Runner {
	r.probe = run
	return r
}

// WithEngineFactory replaces the engine constructor (for testing).
func (r *Runner) WithEngineFactory(factory EngineFactory) *Runner {
	r.newEngine = factory
	return r
}

// run carries per-job state between steps.
type run struct {
	ctx    context.Context
	id     string
	logger *slog.Logger
}

func (r *Runner) begin(ctx context.Context, input string) *run {
	id := uuid.NewString()
	ctx = services.WithRequestID(ctx, id)
	ctx = services.WithInput(ctx, input)
	return &run{ctx: ctx, id: id, logger: logging.WithContext(ctx, r.logger)}
}

func (j *run) stage(name string) (context.Context, *slog.Logger) {
	return services.WithStage(j.ctx, name), j.logger.With(logging.String(logging.FieldStage, name))
}

// Run transcribes req.Input and writes the formatted transcript.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	job := r.begin(ctx, req.Input)
	result := Result{RunID: job.id, Input: req.Input}

	if err := r.validate(job, req); err != nil {
		return result, err
	}
	if err := r.inspect(job, req.Input); err != nil {
		return result, err
	}
	result.Output = r.outputPath(req)

	diarizeEngine := req.LabelSpeakers && strings.TrimSpace(req.RTTMPath) == ""
	engineCfg := r.engineConfig(req, diarizeEngine)

	if err := r.preflight(job); err != nil {
		return result, err
	}

	engineResult, hit, err := r.engineResult(job, req, engineCfg)
	if err != nil {
		return result, err
	}
	result.CacheHit = hit
	result.Language = engineResult.Language

	stats, err := r.finish(job, req, engineResult, result.Output)
	if err != nil {
		return result, err
	}
	result.Stats = stats
	result.Elapsed = time.Since(started)

	job.logger.Info("transcript written",
		logging.String("output", result.Output),
		logging.Bool("cache_hit", hit),
		logging.Int("paragraphs", stats.Paragraphs),
		logging.Int("words", stats.Words),
		logging.Int("speakers", stats.Speakers),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return result, nil
}

// FormatFile formats an existing engine JSON file without running the engine.
func (r *Runner) FormatFile(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	job := r.begin(ctx, req.Input)
	result := Result{RunID: job.id, Input: req.Input}

	_, logger := job.stage("load")
	if err := req.Options.Validate(); err != nil {
		return result, services.Wrap(services.ErrValidation, "load", "formatting options", err.Error(), nil)
	}
	engineResult, err := whisperx.LoadResult(req.Input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, services.Wrap(services.ErrNotFound, "load", "read engine json", req.Input, err)
		}
		return result, services.Wrap(services.ErrValidation, "load", "decode engine json", req.Input, err)
	}
	logger.Debug("engine json loaded", logging.Int("segments", len(engineResult.Segments)))

	result.Output = r.outputPath(req)
	result.Language = engineResult.Language
	stats, err := r.finish(job, req, engineResult, result.Output)
	if err != nil {
		return result, err
	}
	result.Stats = stats
	result.Elapsed = time.Since(started)
	job.logger.Info("transcript written",
		logging.String("output", result.Output),
		logging.Int("paragraphs", stats.Paragraphs),
		logging.Int("words", stats.Words),
		logging.String(logging.FieldEventType, "format_complete"),
	)
	return result, nil
}

func (r *Runner) outputPath(req Request) string {
	if strings.TrimSpace(req.Output) != "" {
		return req.Output
	}
	return OutputPath(req.Input, req.Format)
}

func (r *Runner) engineConfig(req Request, diarizeEngine bool) whisperx.Config {
	model := r.cfg.Transcription.Model
	if strings.TrimSpace(req.Model) != "" {
		model = req.Model
	}
	lang := r.languageHint(req)
	cfg := whisperx.Config{
		Model:       model,
		CUDAEnabled: r.cfg.Transcription.CUDA,
		VADMethod:   r.cfg.Transcription.VADMethod,
		HFToken:     r.cfg.Diarization.HFToken,
		Language:    lang,
		BatchSize:   r.cfg.Transcription.BatchSize,
		Diarize:     diarizeEngine,
		MinSpeakers: r.cfg.Diarization.MinSpeakers,
		MaxSpeakers: r.cfg.Diarization.MaxSpeakers,
	}
	if handle, ok := runtime.Detect(r.cfg.Paths.RuntimeDir); ok {
		cfg.Binary = handle.WhisperX
	}
	return cfg
}

// languageHint is the requested language, falling back to the config.
func (r *Runner) languageHint(req Request) string {
	if lang := strings.TrimSpace(req.Language); lang != "" {
		return lang
	}
	return strings.TrimSpace(r.cfg.Transcription.Language)
}

func (r *Runner) validate(job *run, req Request) error {
	_, logger := job.stage("validate")
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return services.Wrap(services.ErrValidation, "validate", "input", "Audio file path required", nil)
	}
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "validate", "input", "File not found: "+input, err)
		}
		return services.Wrap(services.ErrValidation, "validate", "input", "Inspect "+input, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "validate", "input", input+" is a directory", nil)
	}
	if !supportedExtension(input) {
		logging.WarnWithContext(logger, "unexpected audio extension; trying anyway", "input_extension_unexpected",
			logging.String("extension", filepath.Ext(input)),
			logging.String(logging.FieldErrorHint, "convert to m4a, mp3, wav, flac, ogg or webm if transcription fails"),
			logging.String(logging.FieldImpact, "ffmpeg may not decode this container"),
		)
	}
	if err := req.Options.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "validate", "formatting options", err.Error(), nil)
	}
	if lang := r.languageHint(req); req.LabelSpeakers && lang != "" && !language.HasAlignment(lang) {
		logging.WarnWithContext(logger, "no default alignment model for language", "alignment_unavailable",
			logging.String("language", lang),
			logging.String(logging.FieldErrorHint, "omit --language to let WhisperX pick an aligned model"),
			logging.String(logging.FieldImpact, "speaker labels fall back to whole segments"),
		)
	}
	if req.RTTMPath != "" {
		if _, err := os.Stat(req.RTTMPath); err != nil {
			return services.Wrap(services.ErrNotFound, "validate", "rttm", "RTTM file not found: "+req.RTTMPath, err)
		}
	}
	logger.Debug("input accepted", logging.Int64("bytes", info.Size()))
	return nil
}

// inspect rejects inputs ffprobe reports as having no audio. When ffprobe is
// unavailable or cannot read the file the run continues and ffmpeg decides.
func (r *Runner) inspect(job *run, input string) error {
	ctx, logger := job.stage("probe")
	probe, err := ffprobe.Inspect(ctx, r.probe, r.cfg.FFprobeBinary(), input)
	if err != nil {
		logger.Debug("ffprobe unavailable; skipping inspection", logging.Error(err))
		return nil
	}
	audio, err := probe.Audio()
	if errors.Is(err, ffprobe.ErrNoAudio) {
		return services.Wrap(services.ErrValidation, "probe", "input", input+" has no audio stream", err)
	}
	if err != nil {
		return nil
	}
	logger.Info("input inspected",
		logging.String("codec", audio.Codec),
		logging.Int("sample_rate", audio.SampleRate),
		logging.Int("channels", audio.Channels),
		logging.String("duration_seconds", audio.Duration.StringFixed(1)),
		logging.String(logging.FieldEventType, "input_probed"),
	)
	return nil
}

func (r *Runner) preflight(job *run) error {
	ctx, logger := job.stage("preflight")
	if err := r.cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "directories", "Create runtime and cache directories", err)
	}
	failed := preflight.Failed(preflight.RunAll(ctx, r.cfg, preflight.Options{}))
	if len(failed) == 0 {
		return nil
	}
	details := make([]string, 0, len(failed))
	for _, f := range failed {
		details = append(details, fmt.Sprintf("%s: %s", f.Name, f.Detail))
	}
	logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
		logging.String("failures", strings.Join(details, "; ")),
		logging.String(logging.FieldErrorHint, "check directory permissions in the config file"),
	)
	return services.Wrap(services.ErrConfiguration, "preflight", "checks", strings.Join(details, "; "), nil)
}

// engineResult returns the engine output for the request, from the cache when
// possible.
func (r *Runner) engineResult(job *run, req Request, engineCfg whisperx.Config) (whisperx.Result, bool, error) {
	_, logger := job.stage("hash")
	hash, size, err := fileutil.HashFile(req.Input)
	if err != nil {
		return whisperx.Result{}, false, services.Wrap(services.ErrValidation, "hash", "read input", req.Input, err)
	}
	logger.Debug("input hashed", logging.String("blake3", hash), logging.Int64("bytes", size))

	engine := r.newEngine(engineCfg)
	key := cache.Key{AudioHash: hash, Model: engine.Model(), Diarize: engine.Diarize(), VAD: engineCfg.VADMethod}

	store := r.openCache(job, req)
	if store != nil {
		defer store.Close()
		if res, ok := r.lookup(job, store, key); ok {
			return res, true, nil
		}
	}

	if engineCfg.Diarize && strings.TrimSpace(engineCfg.HFToken) == "" {
		return whisperx.Result{}, false, services.Wrap(services.ErrConfiguration, "transcribe", "diarization",
			"Hugging Face token not configured\n"+whisperx.AuthHelp, whisperx.ErrHuggingFaceAuth)
	}
	if err := r.checkDeps(job, engineCfg); err != nil {
		return whisperx.Result{}, false, err
	}

	workDir, err := os.MkdirTemp("", "transcribe-*")
	if err != nil {
		return whisperx.Result{}, false, services.Wrap(services.ErrTransient, "extract", "work dir", "Create temporary directory", err)
	}
	defer os.RemoveAll(workDir)

	ctx, logger := job.stage("extract")
	base := strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input))
	wav := filepath.Join(workDir, base+".wav")
	logger.Info("extracting audio", logging.String("wav", wav), logging.String(logging.FieldEventType, "extract_start"))
	if err := engine.ExtractAudio(ctx, req.Input, wav); err != nil {
		if ctx.Err() != nil {
			return whisperx.Result{}, false, ctx.Err()
		}
		return whisperx.Result{}, false, services.Wrap(services.ErrExternalTool, "extract", "ffmpeg", "Audio extraction failed", err)
	}

	ctx, logger = job.stage("transcribe")
	if minutes := r.cfg.Transcription.TimeoutMinutes; minutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(minutes)*time.Minute)
		defer cancel()
	}
	started := time.Now()
	logger.Info("transcribing",
		logging.String("model", engine.Model()),
		logging.Bool("diarize", engine.Diarize()),
		logging.String(logging.FieldEventType, "transcribe_start"),
	)
	res, jsonPath, err := engine.Transcribe(ctx, wav, workDir)
	if err != nil {
		return whisperx.Result{}, false, classifyEngineError(ctx, err)
	}
	logger.Info("transcription complete",
		logging.Int("segments", len(res.Segments)),
		logging.String("language", res.Language),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "transcribe_complete"),
	)

	if store != nil {
		r.store(job, store, key, req.Input, size, res, jsonPath)
	}
	return res, false, nil
}

func classifyEngineError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transcribe", "whisperx", "Transcription timed out", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, whisperx.ErrHuggingFaceAuth) {
		return services.Wrap(services.ErrConfiguration, "transcribe", "diarization", err.Error()+"\n"+whisperx.AuthHelp, err)
	}
	if errors.Is(err, transcript.ErrMalformedSegment) {
		return services.Wrap(services.ErrValidation, "transcribe", "engine output", "Engine produced a malformed segment", err)
	}
	return services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "Transcription failed", err)
}

func (r *Runner) checkDeps(job *run, engineCfg whisperx.Config) error {
	_, logger := job.stage("preflight")
	statuses := preflight.CheckSystemDeps(r.cfg, engineCfg.Binary)
	missing := deps.MissingRequired(statuses)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, m.Name)
	}
	logging.ErrorWithContext(logger, "required tools missing", "deps_missing",
		logging.String("missing", strings.Join(names, ", ")),
		logging.String(logging.FieldErrorHint, "install ffmpeg and uv, or run 'transcribe install'"),
	)
	return services.Wrap(services.ErrExternalTool, "preflight", "dependencies", "Missing required tools: "+strings.Join(names, ", "), nil)
}

// finish turns engine output into the written transcript.
func (r *Runner) finish(job *run, req Request, res whisperx.Result, output string) (transcript.Stats, error) {
	_, logger := job.stage("attribute")
	segments, err := r.attribute(logger, req, res)
	if err != nil {
		return transcript.Stats{}, err
	}

	_, logger = job.stage("format")
	opts := req.Options
	opts.LabelSpeakers = req.LabelSpeakers
	doc, err := transcript.Format(segments, opts)
	if err != nil {
		return transcript.Stats{}, services.Wrap(services.ErrValidation, "format", "segments", err.Error(), err)
	}
	stats := doc.Stats()
	logger.Debug("formatted", logging.Int("paragraphs", stats.Paragraphs), logging.Int("words", stats.Words))

	_, logger = job.stage("write")
	title := strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input))
	data, err := export.Encode(doc.Markdown(), req.Format, title)
	if err != nil {
		return transcript.Stats{}, services.Wrap(services.ErrValidation, "write", "encode", err.Error(), err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return transcript.Stats{}, services.Wrap(services.ErrTransient, "write", "output", "Create output directory", err)
	}
	if err := fileutil.WriteFileAtomic(output, data, 0o644); err != nil {
		return transcript.Stats{}, services.Wrap(services.ErrTransient, "write", "output", "Write "+output, err)
	}
	logger.Debug("output written", logging.String("output", output), logging.Int("bytes", len(data)))
	return stats, nil
}

func (r *Runner) attribute(logger *slog.Logger, req Request, res whisperx.Result) ([]transcript.Segment, error) {
	switch {
	case strings.TrimSpace(req.RTTMPath) != "":
		turns, err := diarize.LoadRTTM(req.RTTMPath)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "attribute", "rttm", err.Error(), err)
		}
		logger.Info("attributing speakers from rttm", logging.Int("turns", len(turns)), logging.String("rttm", req.RTTMPath))
		return diarize.Attribute(res.Segments, turns), nil
	case req.LabelSpeakers:
		if !res.HasSpeakers() {
			logging.WarnWithContext(logger, "engine output has no speaker labels", "speakers_missing",
				logging.Alert("diarization_empty"),
				logging.String(logging.FieldErrorHint, "check the Hugging Face token and model access"),
				logging.String(logging.FieldImpact, "paragraphs are labeled as a single unknown speaker"),
			)
		}
		return diarize.FromEngine(res.Segments), nil
	default:
		return diarize.Plain(res.Segments), nil
	}
}
