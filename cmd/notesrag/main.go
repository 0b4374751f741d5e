package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/notesrag/internal/profile"
)

const version = "0.3.0"

var (
	rootCmd = &cobra.Command{
		Use:   "notesrag",
		Short: "A personal notes service that answers questions from your own notes.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := loadProfile()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, err := newApp(ctx, p, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.server.Start(ctx)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				app.server.Shutdown(context.WithoutCancel(ctx))
				return nil
			}
		},
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Embed every note that has no vector for the configured model, then exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, logger, err := loadProfile()
			if err != nil {
				return err
			}
			if err := checkReindexable(p); err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), p, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			total := 0
			for {
				n := app.runner.RunOnce(cmd.Context())
				total += n
				if n == 0 {
					break
				}
			}
			logger.Info("reindex finished", "indexed", total)
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8000)
	viper.SetDefault("log-level", "info")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8000, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver, sqlite or postgres")
	flags.String("dsn", "", "database source name")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "", `log format, "text" or "json" (default json in prod)`)

	for _, key := range []string{"mode", "addr", "port", "data", "driver", "dsn", "log-level", "log-format"} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("notesrag")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(reindexCmd, versionCmd)
}

// loadProfile resolves flags and environment into a validated profile and installs the logger.
func loadProfile() (*profile.Profile, *slog.Logger, error) {
	p := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,
	}
	p.FromEnv()

	logger := newLogger(os.Stderr, p.Mode, viper.GetString("log-level"), viper.GetString("log-format"))
	slog.SetDefault(logger)

	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}

// checkReindexable rejects backends whose vectors do not outlive the process.
func checkReindexable(p *profile.Profile) error {
	if p.VectorBackend == profile.VectorBackendMemory {
		return errors.Errorf("reindex has no effect with the %q vector backend: it is rebuilt by the server at startup", p.VectorBackend)
	}
	return nil
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
