package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vargasjr/internal/domain"
	"vargasjr/internal/metrics"
)

// ErrUnknownOperation is returned for manual operations other than
// UNREAD and ARCHIVED.
var ErrUnknownOperation = errors.New("unknown operation")

// ParseOperation accepts UNREAD or ARCHIVED in any case.
func ParseOperation(s string) (domain.OperationType, error) {
	switch op := domain.OperationType(strings.ToUpper(strings.TrimSpace(s))); op {
	case domain.OpUnread, domain.OpArchived:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// ManualResult is the outcome of a manual operation.
type ManualResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Manual applies operator corrections to a message's operation log.
type Manual struct {
	store  domain.MessageStore
	logger *slog.Logger
}

func NewManual(store domain.MessageStore, logger *slog.Logger) *Manual {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manual{store: store, logger: logger}
}

// Apply appends op for the message. Store failures come back as
// Success=false with the error text in Message.
func (m *Manual) Apply(ctx context.Context, messageID string, op domain.OperationType, executionID string) ManualResult {
	if op != domain.OpUnread && op != domain.OpArchived {
		return ManualResult{Message: fmt.Sprintf("Failed to mark message %s: %v %s", messageID, ErrUnknownOperation, op)}
	}
	if err := m.store.AppendOperation(ctx, messageID, op, executionID); err != nil {
		m.logger.Warn("manual operation failed", "message_id", messageID, "operation", op, "err", err)
		return ManualResult{Message: fmt.Sprintf("Failed to mark message %s as %s: %v", messageID, op, err)}
	}
	metrics.ManualOperations(string(op)).Inc()
	m.logger.Info("manual operation applied", "message_id", messageID, "operation", op, "execution_id", executionID)
	return ManualResult{Success: true, Message: fmt.Sprintf("Message %s marked as %s.", messageID, op)}
}
