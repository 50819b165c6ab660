package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botlink/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	verbose bool

	// logLevel is shared by every handler so hot reload can change it.
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "botlink",
	Short: "Link Telegram bots to your owner account and manage their users",
	Long: "botlink links Telegram bots to the dashboard service, walks you through the\n" +
		"ownership check, and manages the users of verified bots.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(nil)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $BOTLINK_CONFIG or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(botsCmd())
	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(consoleCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("botlink %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	if v := os.Getenv("BOTLINK_CONFIG"); v != "" {
		return config.ExpandHome(v)
	}
	return config.ExpandHome(config.DefaultPath)
}

// setupLogging installs the default slog handler. cfg may be nil before the
// config is loaded.
func setupLogging(cfg *config.Config) {
	format := "text"
	level := "info"
	if cfg != nil {
		format, level = cfg.Log.Format, cfg.Log.Level
	}
	if verbose {
		level = "debug"
	}
	logLevel.Set(parseLevel(level))

	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
