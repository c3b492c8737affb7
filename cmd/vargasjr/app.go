package main

import (
	"fmt"
	"net/http"
	"time"

	"vargasjr/internal/action"
	"vargasjr/internal/admin"
	"vargasjr/internal/agent"
	"vargasjr/internal/billing"
	"vargasjr/internal/channel"
	"vargasjr/internal/classifier"
	"vargasjr/internal/config"
	"vargasjr/internal/domain"
	"vargasjr/internal/events"
	"vargasjr/internal/fetch"
	"vargasjr/internal/prompt"
	"vargasjr/internal/provider"
	"vargasjr/internal/store"
)

// app holds everything a command needs to run the router.
type app struct {
	cfg    *config.Config
	store  *store.SQLiteStore
	router *agent.Router
	events domain.EventPublisher
	slack  *channel.Slack
}

// newApp wires the store, classifier, senders and event publisher from cfg.
// Senders whose credentials are missing stay nil; their handlers then
// report a configuration failure in the run summary.
func newApp(cfg *config.Config) (*app, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: s}

	prompts, err := prompt.Load(cfg.Classifier.PromptsFile)
	if err != nil {
		s.Close()
		return nil, err
	}

	prov, err := provider.NewFactory(cfg, logger).Classifier()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("classifier provider: %w", err)
	}
	cls := classifier.New(classifier.Config{
		Provider:    prov,
		Temperature: cfg.Classifier.Temperature,
		Logger:      logger,
	})

	deps := action.Deps{
		History:   s,
		Contacts:  s,
		Jobs:      s,
		Fetcher:   newFetcher(cfg),
		AgentName: cfg.General.AgentName,
		DemoURL:   cfg.Demo.URL,
		PriceID:   cfg.Stripe.PriceID,
		Timeout:   time.Duration(cfg.General.HandlerTimeoutSeconds) * time.Second,
		Logger:    logger,
	}
	if cfg.Email.Host != "" {
		deps.Email = channel.NewSMTP(channel.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Logger:   logger,
		})
	}
	if cfg.SMS.AccountSID != "" {
		deps.SMS = channel.NewTwilio(channel.TwilioConfig{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			APIBase:    cfg.SMS.APIBase,
			Logger:     logger,
		})
	}
	if cfg.Slack.BotToken != "" {
		a.slack = channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
			Logger:   logger,
		})
		deps.Chat = a.slack
	}
	if cfg.Stripe.SecretKey != "" {
		deps.Checkout = billing.NewStripe(billing.Config{
			SecretKey:  cfg.Stripe.SecretKey,
			APIBase:    cfg.Stripe.APIBase,
			SuccessURL: cfg.Stripe.SuccessURL,
			Logger:     logger,
		})
	}

	a.events = events.Nop{}
	if cfg.Events.Enabled {
		pub, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Warn("run events disabled, broker unreachable", "err", err)
		} else {
			a.events = pub
		}
	}

	a.router = agent.NewRouter(agent.RouterConfig{
		Store:      s,
		Outbox:     s,
		Classifier: cls,
		Dispatcher: action.NewDispatcher(deps),
		Prompts:    prompts,
		Events:     a.events,
		Limiter:    agent.NewRateLimiter(cfg.Classifier.Burst, cfg.Classifier.RatePerMinute),
		AgentName:  cfg.General.AgentName,
		MaxRetries: cfg.Classifier.MaxRetries,
		Logger:     logger,
	})
	return a, nil
}

func newFetcher(cfg *config.Config) action.Fetcher {
	plain := fetch.NewHTTP(fetch.HTTPConfig{MaxBytes: cfg.Lookup.MaxBytes, Logger: logger})
	if !cfg.Lookup.RenderWithBrowser {
		return plain
	}
	return fetch.Fallback{
		Primary:   fetch.NewBrowser(fetch.BrowserConfig{ProfileDir: cfg.Lookup.ChromeProfileDir, Logger: logger}),
		Secondary: plain,
		Logger:    logger,
	}
}

func (a *app) adminServer() *admin.Server {
	var twilio http.Handler
	if a.cfg.SMS.AccountSID != "" {
		twilio = channel.NewTwilioWebhook(a.cfg.SMS.AuthToken, a.cfg.SMS.WebhookURL, a.store, logger)
	}
	return admin.New(admin.Config{
		Host:          a.cfg.Admin.Host,
		Port:          a.cfg.Admin.Port,
		APIKey:        a.cfg.Admin.APIKey,
		Store:         a.store,
		Runner:        a.router,
		FormWebhook:   channel.NewFormWebhook(a.cfg.Admin.FormSecret, a.store, logger),
		TwilioWebhook: twilio,
		Logger:        logger,
	})
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		logger.Warn("close event publisher", "err", err)
	}
	a.store.Close()
}
