package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"myz-go/internal/app"
	"myz-go/internal/config"
	"myz-go/internal/vault"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a VaultApp. The caller must defer
// app.Close().
func newApp() (*app.VaultApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewVaultApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// parseSeed parses a 64-bit master seed given as hex, with or without
// a 0x prefix.
func parseSeed(s string) (uint64, error) {
	seed, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid master seed %q: expected up to 16 hex digits", s)
	}
	return seed, nil
}

var rootCmd = &cobra.Command{
	Use:   "myz",
	Short: "Oracle-keyed file vault",
}

// encrypt command
var encryptCmd = &cobra.Command{
	Use:   "encrypt INPUT",
	Short: "Encrypt a file into a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		seedArg, _ := cmd.Flags().GetString("seed")

		var seed uint64
		if seedArg != "" {
			var err error
			seed, err = parseSeed(seedArg)
			if err != nil {
				return err
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var res *vault.EncryptResult
		if seedArg != "" {
			res, err = a.EncryptWithSeed(args[0], output, seed)
		} else {
			res, err = a.Encrypt(args[0], output)
		}
		if err != nil {
			return fmt.Errorf("encrypt failed: %w", err)
		}

		fmt.Printf("Encrypted %s (%d bytes, %d blocks)\n", res.OutputPath, res.Bytes, res.Blocks)
		fmt.Printf("Master seed: %016x\n", res.MasterSeed)
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt CONTAINER",
	Short: "Recover the file inside a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Decrypt(args[0], dir)
		if err != nil {
			if res != nil && errors.Is(err, vault.ErrIntegrity) {
				if res.Renamed {
					fmt.Fprintf(os.Stderr, "WARNING: integrity check failed, output renamed to %s\n", res.OutputPath)
				} else {
					fmt.Fprintf(os.Stderr, "WARNING: integrity check failed for %s\n", res.OutputPath)
				}
			}
			return fmt.Errorf("decrypt failed: %w", err)
		}

		fmt.Printf("Decrypted %s (%d bytes)\n", res.OutputPath, res.Bytes)
		return nil
	},
}

// inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect CONTAINER",
	Short: "Show container metadata without decrypting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		header, payloadSize, err := vault.Inspect(args[0])
		if err != nil {
			return err
		}

		blocks := (payloadSize + vault.ChunkSize - 1) / vault.ChunkSize
		fmt.Printf("Name:         %s\n", header.Name)
		fmt.Printf("Version:      %d\n", header.Version)
		fmt.Printf("Master seed:  %016x\n", header.MasterSeed)
		fmt.Printf("Payload:      %d bytes (%d blocks)\n", payloadSize, blocks)
		return nil
	},
}

// seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Derive a master seed from the oracle",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.DeriveSeed(timeout)
		if err != nil {
			return fmt.Errorf("deriving seed: %w", err)
		}

		if res.Fallback {
			fmt.Fprintln(os.Stderr, "note: oracle unavailable, seed drawn from the OS random source")
		}
		fmt.Printf("%016x\n", res.Seed)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View vault operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No vault operations recorded.")
			return nil
		}

		for _, e := range entries {
			started := ""
			if e.StartedAt.Valid {
				started = e.StartedAt.Time.Format("2006-01-02 15:04:05")
			}
			duration := ""
			if e.StartedAt.Valid && e.FinishedAt.Valid {
				d := e.FinishedAt.Time.Sub(e.StartedAt.Time)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-7s  %s  %-17s  %10d  %s\n",
				e.ID,
				e.Operation,
				started,
				e.Status,
				e.Bytes,
				duration,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Create config with defaults
		cfg := config.NewConfig(defaults["base_dir"])

		// Initialize config file
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Oracle:   %s\n", cfg.Oracle.Type)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Read config
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		// Display config
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Oracle:   %s (device %d)\n", cfg.Oracle.Type, cfg.Oracle.DeviceIndex)
		fmt.Printf("Journal:  %s\n", cfg.Journal.Path)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().StringP("output", "o", "", "Container path (default INPUT"+vault.DefaultExtension+")")
	encryptCmd.Flags().String("seed", "", "Encrypt under an explicit master seed (hex)")
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().StringP("dir", "d", "", "Output directory (default next to the container)")
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Duration("timeout", 0, "Oracle deadline before the OS random fallback")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
