package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/forPelevin/hookcut/internal/domain/hooks"
	"github.com/forPelevin/hookcut/internal/platform/config"
	"github.com/forPelevin/hookcut/internal/platform/logger"
	"github.com/forPelevin/hookcut/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func Main() {
	_ = config.Load() // best-effort: load .env if present

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "hookcut",
		Short:         "Stitch hook segments into captioned vertical clips",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("log-level", config.GetEnv("HOOKCUT_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", config.GetEnv("HOOKCUT_LOG_FORMAT", "text"), "Log format (text or json)")

	root.AddCommand(newRunCmd(), newPlanCmd(), newServeCmd())
	return root
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logger.New(level, format, cmd.ErrOrStderr())
}

// addPolicyFlags registers the hook duration policy flags shared by every
// command. Defaults come from the environment, then DefaultPolicy.
func addPolicyFlags(fs *pflag.FlagSet) {
	def := hooks.DefaultPolicy()
	fs.Float64("min", config.GetEnvFloat("HOOKCUT_MIN_HOOK_SECONDS", def.MinTotal.Seconds()), "Min total hook duration in seconds")
	fs.Float64("max", config.GetEnvFloat("HOOKCUT_MAX_HOOK_SECONDS", def.MaxTotal.Seconds()), "Max total hook duration in seconds (0 = unbounded)")
	fs.String("mode", config.GetEnv("HOOKCUT_DURATION_MODE", string(def.Mode)), "What to do with over-long hooks: reject or clamp")
}

func policyFromFlags(fs *pflag.FlagSet) hooks.Policy {
	minSec, _ := fs.GetFloat64("min")
	maxSec, _ := fs.GetFloat64("max")
	mode, _ := fs.GetString("mode")
	return hooks.Policy{
		MinTotal: types.Dur(minSec),
		MaxTotal: types.Dur(maxSec),
		Mode:     hooks.DurationMode(mode),
	}
}
