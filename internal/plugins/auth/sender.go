package auth

import (
	"context"
	"log/slog"
)

// logSender is the development CodeSender: it logs the code instead of
// dispatching it to an SMS gateway.
type logSender struct{}

// NewLogSender creates a CodeSender that only logs. Used in development and
// in deployments where codes are read from the expose flag instead of SMS.
func NewLogSender() CodeSender {
	return logSender{}
}

func (logSender) SendCode(ctx context.Context, phone, code string) error {
	slog.Info("verification code (dev sender)",
		slog.String("phone", phone),
		slog.String("code", code),
	)
	return nil
}
