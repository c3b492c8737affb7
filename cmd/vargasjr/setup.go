package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"vargasjr/internal/config"
	"vargasjr/internal/provider"

	"github.com/spf13/cobra"
)

// providerMeta describes an OpenAI-compatible classifier endpoint.
type providerMeta struct {
	Name         string
	NeedsKey     bool
	APIBase      string
	DefaultModel string
}

var knownProviders = []providerMeta{
	{Name: "openai", NeedsKey: true, APIBase: "https://api.openai.com/v1", DefaultModel: "gpt-4o-mini"},
	{Name: "ollama", NeedsKey: false, APIBase: "http://localhost:11434/v1", DefaultModel: "llama3.1:8b"},
	{Name: "groq", NeedsKey: true, APIBase: "https://api.groq.com/openai/v1", DefaultModel: "llama-3.3-70b-versatile"},
	{Name: "openrouter", NeedsKey: true, APIBase: "https://openrouter.ai/api/v1", DefaultModel: "openai/gpt-4o-mini"},
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup: agent name, classifier, channels, admin API",
		Long:  "Walks through the settings needed to run the agent and writes them to the path used by --config or the default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				cfg = config.Defaults()
			}
			if err := runSetup(cfg, os.Stdin, os.Stdout); err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			fmt.Printf("\nConfig saved to %s\n", cfgPath)
			fmt.Println("Next: 'vargasjr doctor', then 'vargasjr agent'.")
			return nil
		},
	}
}

// runSetup asks each question on out, reads answers from in and applies
// them to cfg. An empty answer keeps the value shown in brackets.
func runSetup(cfg *config.Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	ask := func(question, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", question, def)
		} else {
			fmt.Fprintf(out, "%s: ", question)
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if s := strings.TrimSpace(line); s != "" {
			return s, nil
		}
		return def, nil
	}

	fmt.Fprintln(out, "\n--- Step 1: Agent ---")
	name, err := ask("Agent name", cfg.General.AgentName)
	if err != nil {
		return err
	}
	cfg.General.AgentName = name

	fmt.Fprintln(out, "\n--- Step 2: Classifier ---")
	for i, p := range knownProviders {
		fmt.Fprintf(out, "  %d) %s\n", i+1, p.Name)
	}
	defNum := "1"
	for i, p := range knownProviders {
		if p.Name == cfg.Classifier.Provider {
			defNum = fmt.Sprint(i + 1)
		}
	}
	choice, err := ask(fmt.Sprintf("Choose provider (1-%d)", len(knownProviders)), defNum)
	if err != nil {
		return err
	}
	var idx int
	if n, _ := fmt.Sscanf(choice, "%d", &idx); n != 1 || idx < 1 || idx > len(knownProviders) {
		idx = 1
	}
	prov := knownProviders[idx-1]
	if cfg.Providers == nil {
		cfg.Providers = map[string]config.ProviderConfig{}
	}
	pc := cfg.Providers[prov.Name]
	pc.Enabled = true
	if pc.APIBase == "" {
		pc.APIBase = prov.APIBase
	}
	if pc.DefaultModel == "" {
		pc.DefaultModel = prov.DefaultModel
	}
	if prov.NeedsKey {
		envVar := provider.EnvKeyName(prov.Name)
		key, err := ask("API key (or an env reference)", "${"+envVar+"}")
		if err != nil {
			return err
		}
		pc.APIKey = key
	}
	cfg.Providers[prov.Name] = pc
	cfg.Classifier.Provider = prov.Name

	fmt.Fprintln(out, "\n--- Step 3: Channels (leave blank to skip) ---")
	fields := []struct {
		question string
		target   *string
	}{
		{"SMTP host", &cfg.Email.Host},
		{"SMTP from address", &cfg.Email.From},
		{"SMTP username", &cfg.Email.Username},
		{"SMTP password", &cfg.Email.Password},
		{"Twilio account SID", &cfg.SMS.AccountSID},
		{"Twilio auth token", &cfg.SMS.AuthToken},
		{"Slack bot token", &cfg.Slack.BotToken},
		{"Slack app token (Socket Mode)", &cfg.Slack.AppToken},
	}
	for _, f := range fields {
		v, err := ask(f.question, *f.target)
		if err != nil {
			return err
		}
		*f.target = v
	}

	fmt.Fprintln(out, "\n--- Step 4: Admin API ---")
	def := "n"
	if cfg.Admin.Enabled {
		def = "y"
	}
	enable, err := ask("Enable the admin API? (y/n)", def)
	if err != nil {
		return err
	}
	cfg.Admin.Enabled = strings.HasPrefix(strings.ToLower(enable), "y")
	if cfg.Admin.Enabled {
		key, err := ask("Admin API key", cfg.Admin.APIKey)
		if err != nil {
			return err
		}
		cfg.Admin.APIKey = key
	}
	return nil
}
