package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	server            string
	name              string
	qrFile            string
	reconnectInterval time.Duration
	reconnectAttempts int
	verbose           bool
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.server, "http://") && !strings.HasPrefix(c.server, "https://") {
		return errors.New("--server must be an http(s) URL")
	}
	if c.reconnectInterval <= 0 {
		return fmt.Errorf("invalid --reconnect-interval: %s", c.reconnectInterval)
	}
	return nil
}

func (c *Config) logger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if c.verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newRootCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIABLUFF")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "triviabluff",
		Short:         "Terminal client for the trivia bluffing party game.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8000", "base URL of the game server (env: TRIVIABLUFF_SERVER)")
	fs.StringVarP(&cfg.name, "name", "n", "", "display name to play under (env: TRIVIABLUFF_NAME)")
	fs.StringVar(&cfg.qrFile, "qr", "", "write a QR code PNG of the join link to this path (env: TRIVIABLUFF_QR)")
	fs.DurationVar(&cfg.reconnectInterval, "reconnect-interval", 3*time.Second, "delay between reconnection attempts (env: TRIVIABLUFF_RECONNECT_INTERVAL)")
	fs.IntVar(&cfg.reconnectAttempts, "reconnect-attempts", 0, "max reconnection attempts, 0 for unlimited (env: TRIVIABLUFF_RECONNECT_ATTEMPTS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIABLUFF_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newHostCmd(cfg), newJoinCmd(cfg), newDemoCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviabluff v{{.Version}}\n")

	return cmd
}
