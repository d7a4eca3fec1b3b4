package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/hookcut/internal/domain/highlights"
	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/platform/logger"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
	"github.com/forPelevin/hookcut/internal/ports"
	"github.com/forPelevin/hookcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/hookcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/hookcut/internal/ports/adapters/postgres"
	"github.com/forPelevin/hookcut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/hookcut/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/hookcut/internal/types"
	"github.com/forPelevin/hookcut/internal/usecase"
)

type Config struct {
	// Input is a video page URL (resolved with yt-dlp) or a local media file
	// (transcribed with whisper.cpp).
	Input     string
	OutDir    string
	ProjectID string

	Policy      hooks.Policy
	ProfilePath string
	MaxClips    int
	MaxHooks    int

	Workers       int
	RenderTimeout time.Duration
	Thumbnails    bool

	// CacheDir holds temporary ASR artifacts. Defaults to ".cache".
	CacheDir string

	FFmpegPath  string
	FFprobePath string
	FontFile    string

	YtDlpPath   string
	YtDlpFormat string

	WhisperBin   string
	WhisperModel string

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterFallback     string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string

	DatabaseURL string
	ClipsTable  string

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.New("input is empty")
	}
	if !isRemote(c.Input) {
		if _, err := os.Stat(c.Input); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		if c.WhisperModel == "" {
			return errors.New("whisper model path is required for local input")
		}
	}
	if c.MaxClips < 0 {
		return errors.New("max clips must be >= 0")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.OpenRouterAPIKey == "" {
		return nil
	}
	return openrouter.ValidateBaseURL(c.OpenRouterBaseURL, c.OpenRouterAllowedHosts)
}

// Profile loads the render profile, or returns the default one when no path
// is configured.
func (c Config) Profile() (render.Profile, error) {
	if c.ProfilePath == "" {
		return render.DefaultProfile(), nil
	}
	return render.LoadProfile(c.ProfilePath)
}

// Oracle returns the LLM oracle when an API key is set and the local
// heuristic oracle otherwise.
func (c Config) Oracle(log *slog.Logger) ports.HookOracle {
	if c.OpenRouterAPIKey == "" {
		log.Info("no OpenRouter key, using the local heuristic oracle")
		maxClip := c.Policy.MaxTotal
		if maxClip <= 0 {
			maxClip = max(3*c.Policy.MinTotal, hooks.DefaultPolicy().MaxTotal)
		}
		return highlights.NewOracle(c.Policy.MinTotal, maxClip, c.MaxHooks)
	}
	o := openrouter.New(c.OpenRouterAPIKey, c.OpenRouterModel, c.OpenRouterFallback, c.OpenRouterBaseURL)
	o.Logf = logger.Printf(log)
	return o
}

func Run(ctx context.Context, cfg Config) (types.Manifest, error) {
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}
	profile, err := cfg.Profile()
	if err != nil {
		return types.Manifest{}, err
	}

	video := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, ffmpeg.NewFontResolver(cfg.FontFile))
	deps := usecase.Deps{
		Oracle:  cfg.Oracle(log),
		Engine:  video,
		Prober:  video,
		Log:     log,
		Metrics: cfg.Metrics,
	}
	if isRemote(cfg.Input) {
		yt := ytdlp.New(cfg.YtDlpPath, cfg.YtDlpFormat)
		deps.Transcripts = yt
		deps.Media = yt
	} else {
		baseCache := cfg.CacheDir
		if baseCache == "" {
			baseCache = ".cache"
		}
		cacheDir := filepath.Join(baseCache, "runs", hash(cfg.Input))
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return types.Manifest{}, err
		}
		log.Info("cache ready", "dir", cacheDir)
		deps.Transcripts = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel, video, cacheDir)
		deps.Media = localFile{}
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return types.Manifest{}, err
		}
		defer db.Close()
		repo := postgres.NewClipRepository(db, cfg.ClipsTable)
		if err := repo.Migrate(ctx); err != nil {
			return types.Manifest{}, err
		}
		deps.Store = repo
		log.Info("clip store ready", "db", postgres.MaskURL(cfg.DatabaseURL))
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runOutDir := buildRunOutDir(outDir, cfg.Input, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return types.Manifest{}, err
	}
	log.Info("output run dir", "dir", runOutDir)

	res, runErr := usecase.New(deps).Run(ctx, usecase.Input{
		VideoURL:      cfg.Input,
		ProjectID:     cfg.ProjectID,
		OutDir:        runOutDir,
		Policy:        cfg.Policy,
		Profile:       profile,
		MaxClips:      cfg.MaxClips,
		Workers:       cfg.Workers,
		RenderTimeout: cfg.RenderTimeout,
		Thumbnails:    cfg.Thumbnails,
	})
	if res.Manifest.Input == "" {
		return res.Manifest, runErr
	}

	b, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return res.Manifest, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runOutDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return res.Manifest, err
	}
	log.Info("manifest written", "rendered", res.Manifest.Rendered, "clips", len(res.Manifest.Clips), "path", manifestPath)
	return res.Manifest, runErr
}

// localFile serves local media directly to the render engine.
type localFile struct{}

func (localFile) ResolveStream(_ context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func isRemote(input string) bool {
	u, err := url.Parse(input)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := normalizePathSegment(inputName(input))
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

// inputName is the human part of a run directory: the file stem for local
// media, the video id (or last path segment) for URLs.
func inputName(input string) string {
	if isRemote(input) {
		u, _ := url.Parse(input)
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		return u.Host + "-" + filepath.Base(u.Path)
	}
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.RenderEngine     = (*ffmpeg.Adapter)(nil)
	_ ports.MediaProber      = (*ffmpeg.Adapter)(nil)
	_ ports.TranscriptSource = (*ytdlp.Adapter)(nil)
	_ ports.MediaResolver    = (*ytdlp.Adapter)(nil)
	_ ports.TranscriptSource = (*whispercpp.Adapter)(nil)
	_ ports.MediaResolver    = localFile{}
	_ ports.HookOracle       = (*openrouter.Adapter)(nil)
	_ ports.HookOracle       = (*highlights.Oracle)(nil)
	_ ports.ClipStore        = (*postgres.ClipRepository)(nil)
)
