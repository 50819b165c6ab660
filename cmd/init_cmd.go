package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botlink/internal/config"
	"github.com/nextlevelbuilder/botlink/internal/store"
)

func initCmd() *cobra.Command {
	var (
		apiURL   string
		owner    string
		backend  string
		yes      bool
		keyring  bool
		forceNew bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file and an owner reference",
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath := resolveConfigPath()

			cfg := config.Default()
			if _, err := os.Stat(cfgPath); err == nil {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					fmt.Printf("Warning: could not load existing config: %v\n", err)
				} else {
					fmt.Printf("Found existing config at %s\n", cfgPath)
					cfg = loaded
				}
			}

			if owner != "" {
				cfg.Owner.UUID = owner
			} else if cfg.Owner.UUID == "" || forceNew {
				cfg.Owner.UUID = uuid.NewString()
			}
			if err := store.ValidateOwnerRef(cfg.Owner.UUID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			if apiURL != "" {
				cfg.API.URL = apiURL
			} else if !yes {
				v, err := promptAPIURL(cfg.API.URL)
				if err != nil {
					fmt.Println("Cancelled.")
					return
				}
				cfg.API.URL = v
			}

			if backend != "" {
				cfg.Cache.Backend = backend
			} else if !yes {
				v, err := promptBackend(cfg.Cache.Backend)
				if err != nil {
					fmt.Println("Cancelled.")
					return
				}
				cfg.Cache.Backend = v
				if v == store.BackendRedis && cfg.Cache.RedisURL == "" {
					url, err := promptRedisURL()
					if err != nil {
						fmt.Println("Cancelled.")
						return
					}
					cfg.Cache.RedisURL = url
				}
				if v == store.BackendPG && cfg.Cache.PostgresDSN == "" {
					dsn, err := promptPostgresDSN()
					if err != nil {
						fmt.Println("Cancelled.")
						return
					}
					cfg.Cache.PostgresDSN = dsn
				}
			}
			if keyring {
				cfg.Cache.UseKeyring = true
			}

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid config: %s\n", err)
				os.Exit(1)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Config written to %s\n", cfgPath)
			fmt.Printf("Owner reference: %s\n", cfg.Owner.UUID)
			fmt.Println("Next: botlink link")
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "dashboard API base URL")
	cmd.Flags().StringVar(&owner, "owner", "", "use this owner reference instead of generating one")
	cmd.Flags().StringVar(&backend, "cache", "", "cache backend: file, sqlite, redis, postgres, memory")
	cmd.Flags().BoolVar(&keyring, "keyring", false, "seal cached pass UUIDs with a key kept in the OS keyring")
	cmd.Flags().BoolVar(&forceNew, "new-owner", false, "generate a new owner reference even if one exists")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept defaults without prompting")
	return cmd
}
