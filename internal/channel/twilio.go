package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioConfig configures the Twilio messages API. APIBase overrides the
// API host, for tests and regional proxies.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	APIBase    string
	Logger     *slog.Logger
}

// Twilio sends SMS through the Twilio REST API.
type Twilio struct {
	cfg    TwilioConfig
	client *twilio.RestClient
	logger *slog.Logger
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.APIBase != "" {
		if base, err := url.Parse(strings.TrimRight(cfg.APIBase, "/")); err == nil {
			httpClient.Transport = rebaseTransport{base: base, next: http.DefaultTransport}
		}
	}
	base := &twclient.Client{
		Credentials: twclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(cfg.AccountSID)
	return &Twilio{
		cfg: cfg,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   cfg.AccountSID,
			Password:   cfg.AuthToken,
			AccountSid: cfg.AccountSID,
			Client:     base,
		}),
		logger: cfg.Logger,
	}
}

// SendSMS implements domain.SMSSender.
func (t *Twilio) SendSMS(ctx context.Context, to, from, body string) error {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return fmt.Errorf("twilio credentials not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		var te *twclient.TwilioRestError
		if errors.As(err, &te) {
			return fmt.Errorf("twilio: %s (code %d, status %d)", te.Message, te.Code, te.Status)
		}
		return fmt.Errorf("twilio request: %w", err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.logger.Debug("sms sent", "to", to, "from", from, "sid", sid)
	return nil
}

// rebaseTransport sends every request to base instead of the Twilio host.
type rebaseTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (rt rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.base.Scheme
	req.URL.Host = rt.base.Host
	req.URL.Path = rt.base.Path + req.URL.Path
	req.Host = rt.base.Host
	return rt.next.RoundTrip(req)
}

// verifyTwilioSignature checks X-Twilio-Signature against the public URL
// Twilio posted to and the form parameters it sent.
func verifyTwilioSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	flat := make(map[string]string, len(params))
	for k := range params {
		flat[k] = params.Get(k)
	}
	validator := twclient.NewRequestValidator(authToken)
	return validator.Validate(fullURL, flat, signature)
}
