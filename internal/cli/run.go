package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/recapcut/internal/config"
	"github.com/forPelevin/recapcut/internal/pipeline"
)

// Renders stop cooperatively on interrupt; this bounds a run that never returns.
const runTimeout = 6 * time.Hour

func newRenderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <storyboard.json> <source.mp4>",
		Short: "Cut, match and compose the recap video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cmd, a.cfg, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("narration", "narration", "Directory with one narration file per segment label")
	f.String("out", "", "Output directory")
	f.StringSlice("segments", nil, "Render only these segments (all must complete)")
	f.String("mode", "", "Output mode: concat or per_segment")
	f.Float64("narration-gain", 0, "Narration volume factor")
	f.String("music", "", "Background music file")
	f.Float64("music-gain", 0, "Background music volume factor")
	f.String("music-segment", "", "Play music only under this segment")
	f.String("watermark", "", "Image overlaid in a corner of every output")
	f.String("watermark-pos", "", "Watermark corner: top_left, top_right, bottom_left, bottom_right")
	f.StringSlice("effects", nil, "Per-clip treatments: color, motion, hflip")
	f.Int("concurrency", 0, "Segments processed in parallel")
	f.Uint64("seed", 0, "Random seed for filler and effect choices")

	// Hidden tuning flags
	f.Int("letterbox", 0, "Letterbox bar height in pixels")
	f.Duration("tolerance", 0, "Accepted visual/narration length difference")
	_ = f.MarkHidden("letterbox")
	_ = f.MarkHidden("tolerance")
	return cmd
}

func render(cmd *cobra.Command, fc *config.Config, storyboardPath, source string) error {
	f := cmd.Flags()
	rc := fc.Render
	narration, _ := f.GetString("narration")
	outDir := fc.OutDir
	if f.Changed("out") {
		outDir, _ = f.GetString("out")
	}
	selection, _ := f.GetStringSlice("segments")
	if f.Changed("mode") {
		rc.Mode, _ = f.GetString("mode")
	}
	if f.Changed("narration-gain") {
		rc.NarrationGain, _ = f.GetFloat64("narration-gain")
	}
	if f.Changed("music") {
		rc.Music.Path, _ = f.GetString("music")
	}
	if f.Changed("music-gain") {
		rc.Music.Gain, _ = f.GetFloat64("music-gain")
	}
	if f.Changed("music-segment") {
		rc.Music.Segment, _ = f.GetString("music-segment")
	}
	if f.Changed("watermark") {
		rc.Watermark.Path, _ = f.GetString("watermark")
	}
	if f.Changed("watermark-pos") {
		rc.Watermark.Pos, _ = f.GetString("watermark-pos")
	}
	if f.Changed("effects") {
		rc.Effects, _ = f.GetStringSlice("effects")
	}
	if f.Changed("concurrency") {
		rc.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("seed") {
		rc.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("letterbox") {
		rc.LetterboxPx, _ = f.GetInt("letterbox")
	}
	if f.Changed("tolerance") {
		tol, _ := f.GetDuration("tolerance")
		rc.Tolerance = config.Duration(tol)
	}

	absSB, err := filepath.Abs(storyboardPath)
	if err != nil {
		return err
	}
	absSrc, err := filepath.Abs(source)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		StoryboardPath: absSB,
		Source:         absSrc,
		NarrationDir:   narration,
		Selection:      selection,
		OutDir:         outDir,
		CacheDir:       fc.CacheDir,
		DBPath:         fc.DB.Path,

		Mode:          rc.Mode,
		NarrationGain: rc.NarrationGain,
		MusicPath:     rc.Music.Path,
		MusicGain:     rc.Music.Gain,
		MusicSegment:  rc.Music.Segment,
		WatermarkPath: rc.Watermark.Path,
		WatermarkPos:  rc.Watermark.Pos,
		LetterboxPx:   rc.LetterboxPx,
		Effects:       rc.Effects,

		Concurrency: rc.Concurrency,
		CallTimeout: rc.CallTimeout.D(),
		Seed:        rc.Seed,
		Tolerance:   rc.Tolerance.D(),
		GapMin:      rc.Gap.Min.D(),
		GapMax:      rc.Gap.Max.D(),

		FFmpegPath:  fc.Tools.FFmpeg,
		FFprobePath: fc.Tools.FFprobe,
		Logger:      slog.Default(),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := pipeline.Render(ctx, cfg)
	if report != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %s (processed %d, skipped %d, failed %d, stopped %d)\n",
			report.RunID, report.Status, report.Summary.Processed, report.Summary.Skipped,
			report.Summary.Failed, report.Summary.Stopped)
		for _, o := range report.Outputs {
			fmt.Fprintln(out, o)
		}
	}
	return err
}

func newStoryboardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storyboard <source.mp4>",
		Short: "Transcribe the film and ask the producer for a storyboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return produceStoryboard(cmd, a.cfg, args[0])
		},
	}
	cmd.Flags().String("out", "storyboard.json", "Where to write the storyboard")
	cmd.Flags().String("srt", "", "Use these subtitles instead of transcribing")
	cmd.Flags().String("language", "", "Narration language")
	return cmd
}

func produceStoryboard(cmd *cobra.Command, fc *config.Config, source string) error {
	out, _ := cmd.Flags().GetString("out")
	srt, _ := cmd.Flags().GetString("srt")
	pc := fc.Producer
	if cmd.Flags().Changed("language") {
		pc.Language, _ = cmd.Flags().GetString("language")
	}

	absIn, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	cfg := pipeline.StoryboardConfig{
		Source:       absIn,
		SRTPath:      srt,
		OutPath:      out,
		CacheDir:     fc.CacheDir,
		Language:     pc.Language,
		Provider:     pc.Provider,
		Model:        pc.Model,
		Key:          pc.Key,
		BaseURL:      pc.BaseURL,
		AllowedHosts: pc.AllowedHosts,
		FFmpegPath:   fc.Tools.FFmpeg,
		FFprobePath:  fc.Tools.FFprobe,
		WhisperBin:   fc.Tools.WhisperBin,
		WhisperModel: fc.Tools.WhisperModel,
		CallTimeout:  fc.Render.CallTimeout.D(),
		Logger:       slog.Default(),
	}
	if cfg.Key == "" {
		return fmt.Errorf("config: %s is required (set it in .env)", config.KeyEnv(pc.Provider))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := pipeline.Storyboard(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "storyboard written (%d segments): %s\n", len(res.Storyboard.Segments), res.Path)
	return nil
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent render runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if a.cfg.DB.Path == "" {
				return errors.New("config: db.path is empty")
			}
			runs, err := pipeline.History(cmd.Context(), a.cfg.DB.Path, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tRUN\tSTATUS\tSEGMENTS\tGAPS\tTITLE")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.ID, r.Status,
					r.Processed, r.Segments, r.GapWarnings, r.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to show")
	return cmd
}

func newInitConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("config: %s already exists (use --force to overwrite)", a.configPath)
			}
			// Defaults only: keys picked up from the environment stay out of the file.
			if err := config.Save(a.configPath, config.DefaultConfig()); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written: %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
