package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/forPelevin/hookcut/internal/domain/render"
	"github.com/forPelevin/hookcut/internal/platform/config"
	"github.com/forPelevin/hookcut/internal/platform/metrics"
	"github.com/forPelevin/hookcut/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve hook resolution and render planning over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	fs := cmd.Flags()
	fs.String("addr", config.GetEnv("HOOKCUT_ADDR", ":8080"), "Listen address")
	fs.String("profile", config.GetEnv("HOOKCUT_RENDER_PROFILE", ""), "Render profile YAML")
	addPolicyFlags(fs)
	return cmd
}

func serve(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	addr, _ := fs.GetString("addr")
	profilePath, _ := fs.GetString("profile")

	log := newLogger(cmd)
	policy := policyFromFlags(fs)
	if err := policy.Validate(); err != nil {
		return err
	}
	profile := render.DefaultProfile()
	if profilePath != "" {
		var err error
		if profile, err = render.LoadProfile(profilePath); err != nil {
			return err
		}
	}

	met := metrics.New()
	h := server.NewHandler(log, met, policy, profile)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(h, log, met),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("server starting", "addr", addr, "min_hook", policy.MinTotal, "max_hook", policy.MaxTotal)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
