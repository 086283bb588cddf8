// Package cmd is the command line surface of the citizen card client.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/config"
	"citizen-card-cli/router"
)

// Version is set at build time with -ldflags "-X citizen-card-cli/cmd.Version=...".
var Version = "dev"

var errLoginRequired = errors.New("you are not logged in, run \"citizen login\" first")

var (
	configPath string
	logLevel   string
	baseURL    string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of the citizen card CLI",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "citizen card CLI %s\n", Version)
	},
}

var rootCmd = &cobra.Command{
	Use:   "citizen",
	Short: "Citizen card CLI",
	Long: `Book movie seats, manage your e-wallet and discounts with your citizen card,
all from the terminal :)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), `
Citizen card CLI
Book seats, top up your wallet and use your discounts from the terminal :)
use "help" to get all options`)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/citizen-card/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&baseURL, "api", "", "API base URL, overrides api.base_url")
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !aborted(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	cfg.API.ClientVersion = Version
	return cfg, nil
}

// withApp builds and initializes the application, runs fn and closes it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()
	a.StartMetrics()
	if err := a.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// enter navigates to path and fails when the route guards send the member
// to the login page instead.
func enter(a *app.App, path string) error {
	if loc := a.Nav.Push(path); loc.Path == router.PathLogin && path != router.PathLogin {
		return errLoginRequired
	}
	return nil
}
