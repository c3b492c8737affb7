package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"vargasjr/internal/domain"
)

const maxWebhookBody = 1 << 20

// FormPayload is the JSON body accepted by the form webhook.
type FormPayload struct {
	Form    string            `json:"form"` // inbox name; defaults to "form"
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Phone   string            `json:"phone"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// FormWebhook records web form submissions as FORM inbox messages.
type FormWebhook struct {
	secret string
	sink   domain.Ingestor
	logger *slog.Logger
}

// NewFormWebhook returns the handler. When secret is set, requests must
// carry X-Signature-256: sha256=<hex hmac of the body>.
func NewFormWebhook(secret string, sink domain.Ingestor, logger *slog.Logger) *FormWebhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormWebhook{secret: secret, sink: sink, logger: logger}
}

func (w *FormWebhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var p FormPayload
	if err := json.Unmarshal(body, &p); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		http.Error(rw, "message is required", http.StatusBadRequest)
		return
	}
	if p.Email == "" && p.Phone == "" {
		http.Error(rw, "email or phone is required", http.StatusBadRequest)
		return
	}
	if p.Form == "" {
		p.Form = "form"
	}

	msg, err := w.sink.Ingest(r.Context(), domain.Inbound{
		InboxName: p.Form,
		Kind:      domain.KindForm,
		Contact:   domain.Contact{Email: p.Email, PhoneNumber: p.Phone, FullName: p.Name},
		Body:      p.Message,
		Metadata:  p.Fields,
	})
	if err != nil {
		w.logger.Error("form ingest failed", "form", p.Form, "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.logger.Info("form submission received", "form", p.Form, "message_id", msg.ID)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusAccepted)
	json.NewEncoder(rw).Encode(map[string]string{"status": "accepted", "message_id": msg.ID})
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// TwilioWebhook records inbound SMS posted by Twilio. Messages land in the
// inbox named after the receiving number, e.g. "twilio-phone-+15559876543".
type TwilioWebhook struct {
	authToken string
	publicURL string
	sink      domain.Ingestor
	logger    *slog.Logger
}

// NewTwilioWebhook returns the handler. Signatures are checked only when
// both authToken and publicURL are set, since Twilio signs the public URL.
func NewTwilioWebhook(authToken, publicURL string, sink domain.Ingestor, logger *slog.Logger) *TwilioWebhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioWebhook{authToken: authToken, publicURL: publicURL, sink: sink, logger: logger}
}

func (w *TwilioWebhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(rw, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	if w.authToken != "" && w.publicURL != "" {
		if !verifyTwilioSignature(w.authToken, w.publicURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	from, to := r.PostForm.Get("From"), r.PostForm.Get("To")
	if from == "" || to == "" {
		http.Error(rw, "From and To are required", http.StatusBadRequest)
		return
	}
	msg, err := w.sink.Ingest(r.Context(), domain.Inbound{
		InboxName:  smsInboxName(to),
		Kind:       domain.KindSMS,
		Contact:    domain.Contact{PhoneNumber: from},
		Body:       r.PostForm.Get("Body"),
		ExternalID: r.PostForm.Get("MessageSid"),
	})
	if err != nil {
		w.logger.Error("sms ingest failed", "to", to, "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.logger.Info("sms received", "message_id", msg.ID, "to", to)

	// Empty TwiML: the reply, if any, is sent later by the agent.
	rw.Header().Set("Content-Type", "text/xml")
	io.WriteString(rw, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

func smsInboxName(number string) string { return "twilio-phone-" + number }
