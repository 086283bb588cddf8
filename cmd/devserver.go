package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/fakeapi"
)

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run an in-memory citizen card backend for local development",
	Long: `Run an in-memory citizen card backend for local development.
The API is served under /api, fault injection under /_admin.
Sign in as demo@citizen.example / Demo1234! with the default seed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Dev.Addr, _ = flags.GetString("addr")
		}
		if flags.Changed("seed") {
			cfg.Dev.Seed, _ = flags.GetString("seed")
		}
		if flags.Changed("envelope") {
			cfg.Dev.Envelope, _ = flags.GetBool("envelope")
		}

		logger, closeLog, err := app.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer closeLog()

		seed := fakeapi.DefaultSeed()
		if cfg.Dev.Seed != "" {
			if seed, err = fakeapi.LoadSeed(cfg.Dev.Seed); err != nil {
				return err
			}
		}
		backend := fakeapi.New(seed, fakeapi.Config{
			Secret:   cfg.Dev.Secret,
			TokenTTL: cfg.Dev.TokenTTL,
			Envelope: cfg.Dev.Envelope,
			Logger:   logger.WithField("component", "fakeapi"),
		})
		return serve(cmd.Context(), cfg.Dev.Addr, backend.Handler(), logger)
	},
}

func init() {
	devServerCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	devServerCmd.Flags().String("seed", "", "YAML seed file, the built-in demo data by default")
	devServerCmd.Flags().Bool("envelope", false, "wrap every response in {code, data, message}")
	rootCmd.AddCommand(devServerCmd)
}

func serve(ctx context.Context, addr string, h http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.WithField("addr", "http://"+addr+fakeapi.APIPrefix).Info("dev server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
