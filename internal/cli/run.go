package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/forPelevin/hookcut/internal/pipeline"
	"github.com/forPelevin/hookcut/internal/platform/config"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <video-url|file>",
		Short: "Find hooks in a video and render them as vertical clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	fs := cmd.Flags()
	fs.String("out", config.GetEnv("HOOKCUT_OUT_DIR", "out"), "Output directory")
	fs.Int("clips", 0, "Render at most this many clips (0 = all accepted hooks)")
	fs.String("project", "", "Project id for stored clip records (default: random)")
	fs.String("profile", config.GetEnv("HOOKCUT_RENDER_PROFILE", ""), "Render profile YAML")
	fs.Int("workers", config.GetEnvInt("HOOKCUT_RENDER_WORKERS", 0), "Parallel renders (0 = number of CPUs)")
	fs.Duration("render-timeout", config.GetEnvDuration("HOOKCUT_RENDER_TIMEOUT", 10*time.Minute), "Timeout for one clip render (0 = none)")
	fs.Bool("thumbnails", true, "Extract a poster frame per clip")
	fs.Duration("timeout", 3*time.Hour, "Timeout for the whole run")
	addPolicyFlags(fs)

	// Heuristic oracle tuning, only used without an OpenRouter key.
	fs.Int("max-hooks", 3, "Max hooks the local heuristic oracle proposes")
	_ = fs.MarkHidden("max-hooks")
	return cmd
}

func run(cmd *cobra.Command, input string) error {
	fs := cmd.Flags()
	outDir, _ := fs.GetString("out")
	maxClips, _ := fs.GetInt("clips")
	project, _ := fs.GetString("project")
	profile, _ := fs.GetString("profile")
	workers, _ := fs.GetInt("workers")
	renderTimeout, _ := fs.GetDuration("render-timeout")
	thumbs, _ := fs.GetBool("thumbnails")
	timeout, _ := fs.GetDuration("timeout")
	maxHooks, _ := fs.GetInt("max-hooks")

	log := newLogger(cmd)

	cfg := pipeline.Config{
		Input:     input,
		OutDir:    outDir,
		ProjectID: project,

		Policy:      policyFromFlags(fs),
		ProfilePath: profile,
		MaxClips:    maxClips,
		MaxHooks:    maxHooks,

		Workers:       workers,
		RenderTimeout: renderTimeout,
		Thumbnails:    thumbs,
		CacheDir:      config.GetEnv("HOOKCUT_CACHE_DIR", ".cache"),

		FFmpegPath:  config.GetEnv("HOOKCUT_FFMPEG", "ffmpeg"),
		FFprobePath: config.GetEnv("HOOKCUT_FFPROBE", "ffprobe"),
		FontFile:    config.GetEnv("HOOKCUT_FONT_FILE", ""),

		YtDlpPath:   config.GetEnv("HOOKCUT_YTDLP", "yt-dlp"),
		YtDlpFormat: config.GetEnv("HOOKCUT_YTDLP_FORMAT", ""),

		WhisperBin:   config.GetEnv("HOOKCUT_WHISPER_BIN", ".cache/bin/whisper.cpp"),
		WhisperModel: config.GetEnv("HOOKCUT_WHISPER_MODEL", ".cache/models/ggml-base.bin"),

		OpenRouterAPIKey:       config.GetEnv("HOOKCUT_OPENROUTER_API_KEY", config.GetEnv("OPENROUTER_API_KEY", "")),
		OpenRouterModel:        config.GetEnv("HOOKCUT_OPENROUTER_MODEL", ""),
		OpenRouterFallback:     config.GetEnv("HOOKCUT_OPENROUTER_FALLBACK_MODEL", ""),
		OpenRouterBaseURL:      config.GetEnv("HOOKCUT_OPENROUTER_BASE_URL", ""),
		OpenRouterAllowedHosts: config.GetEnvList("HOOKCUT_OPENROUTER_ALLOWED_HOSTS"),

		DatabaseURL: config.GetEnv("HOOKCUT_DATABASE_URL", ""),
		ClipsTable:  config.GetEnv("HOOKCUT_CLIPS_TABLE", ""),

		Log:     log,
		Metrics: metrics.New(),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m, err := pipeline.Run(ctx, cfg)
	if m.Input != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "rendered %d of %d clips (%d hooks, %d rejected)\n", m.Rendered, len(m.Clips), m.Hooks, m.Rejected)
	}
	return err
}
