package auth

import (
	"errors"
	"log/slog"
	"strings"
)

// SecurityEvent is a structured record of a refused request. The token is
// redacted when the event is logged.
type SecurityEvent struct {
	Transport string
	RequestID string
	Target    string
	Reason    string
	Token     string
}

func (e SecurityEvent) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("transport", e.Transport),
		slog.String("request_id", e.RequestID),
		slog.String("target", e.Target),
		slog.String("reason", e.Reason),
	}
	if e.Token != "" {
		attrs = append(attrs, slog.String("token", Redact(e.Token)))
	}
	return slog.GroupValue(attrs...)
}

// RejectReason turns a gate error into a short label for logs and metrics.
func RejectReason(err error) string {
	var te *TokenError
	switch {
	case errors.Is(err, ErrMissingBearer):
		return "missing_bearer"
	case errors.As(err, &te):
		return strings.ToLower(string(te.Code))
	default:
		return "unknown"
	}
}
