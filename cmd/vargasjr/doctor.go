package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"vargasjr/internal/config"
	"vargasjr/internal/prompt"
	"vargasjr/internal/provider"
	"vargasjr/internal/store"

	"github.com/spf13/cobra"
)

// checks tallies doctor results.
type checks struct{ passed, warned, failed int }

func (c *checks) pass(check, detail string) {
	c.passed++
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func (c *checks) warn(check, detail string) {
	c.warned++
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}

func (c *checks) fail(check, detail string) {
	c.failed++
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your Vargas JR installation",
		Long: `Verifies that the configuration, database, classifier provider and
outbound channels are set up. Reports pass/warn/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Vargas JR Doctor v%s\n\n", version)
			var c checks

			if _, err := os.Stat(cfgPath); err != nil {
				c.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'vargasjr init' to create a default configuration.\n")
				return nil
			}
			c.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				c.fail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", c.passed, c.failed)
				return fmt.Errorf("config invalid")
			}
			c.pass("Config validation", "valid")

			if schema, err := checkDatabase(cfg.Database.Path); err != nil {
				c.fail("Database", err.Error())
			} else {
				c.pass("Database", fmt.Sprintf("%s (schema v%d)", cfg.Database.Path, schema))
			}

			if _, err := prompt.Load(cfg.Classifier.PromptsFile); err != nil {
				c.fail("Prompts", err.Error())
			} else {
				c.pass("Prompts", "templates parse")
			}

			pc := cfg.Providers[cfg.Classifier.Provider]
			switch {
			case !pc.Enabled:
				c.fail("Classifier", fmt.Sprintf("provider %s is disabled", cfg.Classifier.Provider))
			case pc.APIKey == "" && os.Getenv(provider.EnvKeyName(cfg.Classifier.Provider)) == "":
				c.warn("Classifier", fmt.Sprintf("%s has no API key (set %s if it needs one)", cfg.Classifier.Provider, provider.EnvKeyName(cfg.Classifier.Provider)))
			default:
				c.pass("Classifier", cfg.Classifier.Provider)
			}

			senders := []struct {
				name, detail string
				ok           bool
			}{
				{"Email (SMTP)", cfg.Email.Host, cfg.Email.Host != "" && cfg.Email.From != ""},
				{"SMS (Twilio)", cfg.SMS.AccountSID, cfg.SMS.AccountSID != "" && cfg.SMS.AuthToken != ""},
				{"Slack", "bot token set", cfg.Slack.BotToken != ""},
				{"Stripe", "secret key set", cfg.Stripe.SecretKey != ""},
			}
			for _, s := range senders {
				if s.ok {
					c.pass(s.name, s.detail)
				} else {
					c.warn(s.name, "not configured; actions using it will report a failure")
				}
			}

			if cfg.Admin.Enabled {
				if err := checkPort(cfg.Admin.Host, cfg.Admin.Port); err != nil {
					c.warn("Admin port", fmt.Sprintf("port %d may be in use: %v", cfg.Admin.Port, err))
				} else {
					c.pass("Admin port", fmt.Sprintf("%s:%d available", cfg.Admin.Host, cfg.Admin.Port))
				}
				if cfg.Admin.APIKey == "" {
					c.warn("Admin auth", "no apiKey; the admin API is unauthenticated")
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					c.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					c.pass("Log file", cfg.General.LogFile)
				}
			}

			fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", c.passed, c.warned, c.failed)
			if c.failed > 0 {
				return fmt.Errorf("%d check(s) failed", c.failed)
			}
			return nil
		},
	}
}

// checkDatabase opens the store, which applies migrations, and confirms a write.
func checkDatabase(dbPath string) (int, error) {
	s, err := store.Open(dbPath, logger)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		return 0, fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := s.DB().ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("not writable: %w", err)
	}
	s.DB().ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")
	return store.GetSchemaVersion(s.DB())
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
