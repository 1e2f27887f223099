package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"yessir/internal/bootstrap"
	"yessir/internal/config"
)

// globalOptions override values resolved from the environment.
type globalOptions struct {
	backendURL  string
	token       string
	transcriber string
	rulesFile   string
	timezone    string
	logLevel    string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "yessirctl",
		Short: "yessir - voice commands for todos, notes and directions",
		Long: `yessirctl records or accepts a spoken command, sends it to the command
backend and prints the outcome. It shares configuration with the desktop
app: YESSIR_* environment variables and ~/.config/yessir/.env.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backendURL, "backend-url", "", "command backend URL (overrides YESSIR_BACKEND_URL)")
	flags.StringVar(&opts.token, "token", "", "backend auth token (overrides YESSIR_AUTH_TOKEN)")
	flags.StringVar(&opts.transcriber, "transcriber", "", "transcriber: backend or deepgram")
	flags.StringVar(&opts.rulesFile, "rules", "", "transcript rules file")
	flags.StringVar(&opts.timezone, "timezone", "", "IANA timezone sent with commands")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "backend request timeout")

	rootCmd.AddCommand(sayCmd(opts))
	rootCmd.AddCommand(recordCmd(opts))
	rootCmd.AddCommand(itemsCmd(opts))
	rootCmd.AddCommand(deleteCmd(opts))
	rootCmd.AddCommand(keywordsCmd(opts))
	rootCmd.AddCommand(resolveCmd(opts))
	rootCmd.AddCommand(fakeBackendCmd(opts))

	return rootCmd
}

func (o *globalOptions) config() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	if o.backendURL != "" {
		cfg.Backend.URL = o.backendURL
	}
	if o.token != "" {
		cfg.Backend.AuthToken = o.token
	}
	if o.transcriber != "" {
		provider := strings.ToLower(o.transcriber)
		if provider != config.TranscriberBackend && provider != config.TranscriberDeepgram {
			return config.Config{}, fmt.Errorf("unknown transcriber %q", o.transcriber)
		}
		cfg.Transcriber.Provider = provider
	}
	if o.rulesFile != "" {
		cfg.Rules.Path = o.rulesFile
	}
	if o.timezone != "" {
		cfg.Command.Timezone = o.timezone
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.timeout > 0 {
		cfg.Backend.Timeout = o.timeout
	}
	return cfg, nil
}

// services resolves configuration and wires the runtime. Callers must Close
// the result.
func (o *globalOptions) services() (bootstrap.Services, error) {
	cfg, err := o.config()
	if err != nil {
		return bootstrap.Services{}, err
	}
	return bootstrap.BuildWith(cfg, nil)
}
