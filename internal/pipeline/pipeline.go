package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/recapcut/internal/domain/compose"
	"github.com/forPelevin/recapcut/internal/domain/effects"
	"github.com/forPelevin/recapcut/internal/domain/matcher"
	"github.com/forPelevin/recapcut/internal/domain/storyboard"
	"github.com/forPelevin/recapcut/internal/logging"
	"github.com/forPelevin/recapcut/internal/ports"
	"github.com/forPelevin/recapcut/internal/ports/adapters/beepaudio"
	"github.com/forPelevin/recapcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/recapcut/internal/ports/adapters/gemini"
	"github.com/forPelevin/recapcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/recapcut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/recapcut/internal/store"
	"github.com/forPelevin/recapcut/internal/types"
	"github.com/forPelevin/recapcut/internal/usecase"
)

// Config is the effective configuration of one render run.
type Config struct {
	StoryboardPath string
	Source         string
	NarrationDir   string
	Selection      []string

	OutDir string
	// CacheDir is the base directory for scratch space. If empty, defaults to ".cache".
	CacheDir string
	// DBPath enables the run history. Empty disables it.
	DBPath string

	Mode          string
	NarrationGain float64
	MusicPath     string
	MusicGain     float64
	MusicSegment  string
	WatermarkPath string
	WatermarkPos  string
	LetterboxPx   int
	Effects       []string

	Concurrency int
	CallTimeout time.Duration
	Seed        uint64
	Tolerance   time.Duration
	GapMin      time.Duration
	GapMax      time.Duration

	FFmpegPath  string
	FFprobePath string

	Logger *slog.Logger
}

func (c Config) Validate() error {
	if c.StoryboardPath == "" {
		return errors.New("storyboard is empty")
	}
	if c.Source == "" {
		return errors.New("source video is empty")
	}
	for _, p := range []string{c.StoryboardPath, c.Source} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
	}
	if st, err := os.Stat(c.NarrationDir); err != nil {
		return fmt.Errorf("stat narration dir: %w", err)
	} else if !st.IsDir() {
		return fmt.Errorf("narration dir %s is not a directory", c.NarrationDir)
	}
	if _, err := compose.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := effects.ParseTreatments(c.Effects); err != nil {
		return err
	}
	if c.MusicPath != "" {
		if _, err := os.Stat(c.MusicPath); err != nil {
			return fmt.Errorf("stat music: %w", err)
		}
	}
	if c.MusicSegment != "" && c.MusicPath == "" {
		return errors.New("music segment is set but no music path")
	}
	if c.WatermarkPath != "" {
		if _, err := os.Stat(c.WatermarkPath); err != nil {
			return fmt.Errorf("stat watermark: %w", err)
		}
	}
	if _, err := compose.ParseWatermarkPos(c.WatermarkPos); err != nil {
		return err
	}
	if c.NarrationGain <= 0 {
		return errors.New("narration gain must be > 0")
	}
	if c.MusicGain < 0 {
		return errors.New("music gain must be >= 0")
	}
	if c.LetterboxPx <= 0 {
		return errors.New("letterbox must be > 0")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be > 0")
	}
	if c.Tolerance < 0 || c.CallTimeout < 0 {
		return errors.New("durations must be >= 0")
	}
	if c.Tolerance > matcher.Tolerance {
		return fmt.Errorf("tolerance must be <= %s", matcher.Tolerance)
	}
	if c.GapMax > 0 && c.GapMin > c.GapMax {
		return errors.New("gap min must be <= gap max")
	}
	return nil
}

// Render runs one render and writes report.json next to the outputs. A report is returned
// for every run that passed Validate, including one whose storyboard could not be read.
func Render(ctx context.Context, cfg Config) (*types.RunReport, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	runID := uuid.NewString()
	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	workDir := filepath.Join(baseCache, "runs", hash(cfg.Source)+"-"+runID[:8])
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.StoryboardPath, time.Now().UTC())

	sb, err := readStoryboard(cfg.StoryboardPath)
	if err != nil {
		report := failedReport(runID, cfg.Mode, err)
		saveRun(ctx, log, cfg.DBPath, runOutDir, report)
		return report, err
	}
	mode, _ := compose.ParseMode(cfg.Mode)
	treatments, _ := effects.ParseTreatments(cfg.Effects)
	watermarkPos, _ := compose.ParseWatermarkPos(cfg.WatermarkPos)

	// adapters
	ff := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	uc := usecase.New(usecase.Deps{
		Transcoder: ff,
		Narration:  beepaudio.New(ff),
		Observer:   logging.NewObserver(log),
	})
	log.Info("render", "run_id", runID, "segments", len(sb.Segments), "out", runOutDir, "work", workDir)

	report, runErr := uc.Render(ctx, usecase.RenderInput{
		RunID:        runID,
		Storyboard:   sb,
		Source:       cfg.Source,
		NarrationDir: cfg.NarrationDir,
		Selection:    cfg.Selection,
		Output: compose.Settings{
			Mode:          mode,
			NarrationGain: cfg.NarrationGain,
			MusicPath:     cfg.MusicPath,
			MusicGain:     cfg.MusicGain,
			MusicSegment:  cfg.MusicSegment,
			WatermarkPath: cfg.WatermarkPath,
			WatermarkPos:  watermarkPos,
			LetterboxPx:   cfg.LetterboxPx,
		},
		Treatments:  treatments,
		Concurrency: cfg.Concurrency,
		CallTimeout: cfg.CallTimeout,
		Seed:        cfg.Seed,
		Tolerance:   cfg.Tolerance,
		GapMin:      cfg.GapMin,
		GapMax:      cfg.GapMax,
		WorkDir:     workDir,
		OutDir:      runOutDir,
	})
	saveRun(ctx, log, cfg.DBPath, runOutDir, report)
	return report, runErr
}

func readStoryboard(path string) (types.Storyboard, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Storyboard{}, fmt.Errorf("read storyboard: %w", err)
	}
	return storyboard.Parse(raw)
}

func failedReport(runID, mode string, err error) *types.RunReport {
	now := time.Now()
	if mode == "" {
		mode = string(compose.Concat)
	}
	r := &types.RunReport{
		RunID:      runID,
		Mode:       mode,
		Status:     types.RunFailed,
		Error:      err.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
	r.Finalize()
	return r
}

// saveRun keeps the report even for a stopped run. Failures are logged, not returned.
func saveRun(ctx context.Context, log *slog.Logger, dbPath, runOutDir string, report *types.RunReport) {
	if err := writeReport(runOutDir, report); err != nil {
		log.Warn("failed to write report", "error", err)
	}
	if dbPath == "" {
		return
	}
	if err := saveHistory(context.WithoutCancel(ctx), dbPath, report); err != nil {
		log.Warn("failed to save run history", "error", err)
	}
}

func writeReport(dir string, report *types.RunReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "report.json"), b, 0o644)
}

func saveHistory(ctx context.Context, dbPath string, report *types.RunReport) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveReport(ctx, report)
}

// History lists the latest recorded runs.
func History(ctx context.Context, dbPath string, limit int) ([]store.RunSummary, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.RecentRuns(ctx, limit)
}

// StoryboardConfig is the effective configuration of the storyboard command.
type StoryboardConfig struct {
	Source   string
	SRTPath  string
	OutPath  string
	CacheDir string
	Language string

	Provider     string
	Model        string
	Key          string
	BaseURL      string
	AllowedHosts []string

	FFmpegPath   string
	FFprobePath  string
	WhisperBin   string
	WhisperModel string
	CallTimeout  time.Duration

	Logger *slog.Logger
}

func (c StoryboardConfig) Validate() error {
	if c.Source == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.Source); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.SRTPath == "" && c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	if c.Key == "" {
		return fmt.Errorf("%s api key is required", c.Provider)
	}
	switch strings.ToLower(c.Provider) {
	case "gemini":
		return nil
	case "openrouter":
		return openrouter.ValidateBaseURL(c.BaseURL, c.AllowedHosts)
	default:
		return fmt.Errorf("unknown producer %q (want gemini or openrouter)", c.Provider)
	}
}

// Storyboard transcribes the source and asks the configured producer for a storyboard.
func Storyboard(ctx context.Context, cfg StoryboardConfig) (usecase.StoryboardResult, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var producer ports.StoryboardProducer
	if strings.EqualFold(cfg.Provider, "openrouter") {
		producer = openrouter.New(cfg.Key, cfg.Model, cfg.BaseURL)
	} else {
		g, err := gemini.New(ctx, cfg.Key, cfg.Model)
		if err != nil {
			return usecase.StoryboardResult{}, err
		}
		producer = g
	}

	uc := usecase.New(usecase.Deps{
		Transcoder: ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath),
		ASR:        whispercpp.New(cfg.WhisperBin, cfg.WhisperModel),
		Producer:   producer,
		Observer:   logging.NewObserver(log),
	})

	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "storyboard", hash(cfg.Source))
	log.Info("preparing storyboard", "cache", cacheDir, "provider", cfg.Provider)

	out := cfg.OutPath
	if out == "" {
		out = "storyboard.json"
	}
	return uc.Storyboard(ctx, usecase.StoryboardInput{
		Source:      cfg.Source,
		SRTPath:     cfg.SRTPath,
		Language:    cfg.Language,
		CacheDir:    cacheDir,
		OutPath:     out,
		CallTimeout: cfg.CallTimeout,
	})
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = storyboard.Slug(name)
	if name == "" {
		name = "recap"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.Transcoder = (*ffmpeg.Adapter)(nil)
var _ ports.NarrationProber = (*beepaudio.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.StoryboardProducer = (*gemini.Adapter)(nil)
var _ ports.StoryboardProducer = (*openrouter.Adapter)(nil)
var _ ports.Observer = (*logging.Observer)(nil)
