package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			PollIntervalSeconds:   5,
			HandlerTimeoutSeconds: 60,
			AgentName:             "Vargas JR",
		},
		Database: DatabaseConfig{
			Path: "~/.vargasjr/vargasjr.db",
		},
		Classifier: ClassifierConfig{
			Provider:      "openai",
			MaxRetries:    2,
			Temperature:   0,
			RatePerMinute: 30,
			Burst:         10,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIBase:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o-mini",
			},
			"ollama": {
				Enabled:      false,
				APIBase:      "http://localhost:11434/v1",
				DefaultModel: "llama3.1:8b",
			},
		},
		Email: EmailConfig{
			Port: 587,
		},
		SMS: SMSConfig{
			APIBase: "https://api.twilio.com",
		},
		Stripe: StripeConfig{
			APIBase: "https://api.stripe.com",
		},
		Lookup: LookupConfig{
			RenderWithBrowser: false,
			MaxBytes:          1 << 20,
		},
		Admin: AdminConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8420,
		},
		Events: EventsConfig{
			Enabled:  false,
			Exchange: "vargasjr.events",
		},
	}
}
