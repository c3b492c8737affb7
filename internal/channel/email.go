package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// SMTPConfig configures outbound mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Logger   *slog.Logger
}

// SMTP delivers email over an authenticated SMTP submission server.
type SMTP struct {
	cfg    SMTPConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SMTP{cfg: cfg, logger: cfg.Logger, now: time.Now}
}

// SendEmail implements domain.EmailSender. Bcc addresses receive the
// message but never appear in its headers.
func (s *SMTP) SendEmail(ctx context.Context, email domain.Email) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	msg, err := s.buildMessage(email)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(30 * time.Second),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("email sent", "to", email.To, "bcc", len(email.Bcc))
	return nil
}

func bccRecipients(email domain.Email) []string {
	var out []string
	for _, b := range email.Bcc {
		if b != "" && !strings.EqualFold(b, email.To) {
			out = append(out, b)
		}
	}
	return out
}

// buildMessage renders a plain text message threaded onto InReplyTo.
func (s *SMTP) buildMessage(email domain.Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp from %q: %w", s.cfg.From, err)
	}
	if err := m.To(email.To); err != nil {
		return nil, fmt.Errorf("smtp to %q: %w", email.To, err)
	}
	if bcc := bccRecipients(email); len(bcc) > 0 {
		if err := m.Bcc(bcc...); err != nil {
			return nil, fmt.Errorf("smtp bcc: %w", err)
		}
	}

	domainPart := "localhost"
	if at := strings.LastIndex(s.cfg.From, "@"); at >= 0 {
		domainPart = strings.Trim(s.cfg.From[at+1:], "<> ")
	}
	m.Subject(email.Subject)
	m.SetDateWithValue(s.now())
	m.SetMessageIDWithValue(uuid.NewString() + "@" + domainPart)
	if email.InReplyTo != "" {
		m.SetGenHeader(mail.HeaderInReplyTo, email.InReplyTo)
	}
	if email.References != "" {
		m.SetGenHeader(mail.HeaderReferences, email.References)
	}
	m.SetBodyString(mail.TypeTextPlain, email.Body)
	return m, nil
}
