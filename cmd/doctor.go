package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botlink/internal/config"
	"github.com/nextlevelbuilder/botlink/internal/remote"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, cache and service reachability",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("botlink doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	owner := cfg.Owner.UUID
	if owner == "" {
		owner = "(not set, run `botlink init`)"
	}
	fmt.Printf("  Owner:    %s\n", owner)
	fmt.Printf("  Locale:   %s\n", cfg.Owner.Locale)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println()
	fmt.Println("  Cache:")
	checkCache(ctx, cfg)

	fmt.Println()
	fmt.Println("  Service:")
	checkService(ctx, cfg)

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkCache(ctx context.Context, cfg *config.Config) {
	fmt.Printf("    %-12s %s\n", "Backend:", cfg.Cache.Backend)
	c, err := openCache(ctx, cfg)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", errorStyle.Render("FAILED: "+err.Error()))
		return
	}
	defer c.Close()
	sealed := "no"
	if cfg.Cache.Key != "" || cfg.Cache.UseKeyring {
		sealed = "yes"
	}
	fmt.Printf("    %-12s %s\n", "Sealed:", sealed)
	if cfg.Owner.UUID == "" {
		fmt.Printf("    %-12s %s\n", "Status:", "OK")
		return
	}
	got, err := c.Load(ctx, cfg.Owner.UUID)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", errorStyle.Render("FAILED: "+err.Error()))
		return
	}
	fmt.Printf("    %-12s OK (%d cached bot(s))\n", "Status:", len(got))
}

func checkService(ctx context.Context, cfg *config.Config) {
	fmt.Printf("    %-12s %s\n", "URL:", cfg.API.URL)
	if cfg.Owner.UUID == "" {
		fmt.Printf("    %-12s skipped (no owner)\n", "Status:")
		return
	}
	api, err := remote.New(remote.Config{BaseURL: cfg.API.URL, Timeout: cfg.APITimeout()})
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", errorStyle.Render("FAILED: "+err.Error()))
		return
	}
	start := time.Now()
	bots, err := api.OwnerBots(ctx, cfg.Owner.UUID)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Status:", errorStyle.Render("FAILED: "+remote.UserMessage(err)))
		return
	}
	fmt.Printf("    %-12s OK (%d linked bot(s), %s)\n", "Status:", len(bots), time.Since(start).Round(time.Millisecond))
}
