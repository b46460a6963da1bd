package transport

import (
	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/types"
)

// Transport delivers outbound messages to contacts and attendants. The
// engine never talks to the messaging provider directly; everything
// goes through this interface so tests and local runs can swap in a
// logging implementation.
type Transport interface {
	// SendText delivers a plain text message to the recipient.
	SendText(to, text string) error

	// SendContent delivers text or media to the recipient.
	SendContent(to string, content types.Content) error
}

// LogTransport writes every outbound message to the log instead of
// delivering it. Used when no webhook URL is configured.
type LogTransport struct {
	logger zerolog.Logger
}

// NewLogTransport creates a transport that only logs
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) SendText(to, text string) error {
	t.logger.Info().
		Str("to", to).
		Str("text", text).
		Msg("outbound message (log only)")
	return nil
}

func (t *LogTransport) SendContent(to string, content types.Content) error {
	if !content.IsMedia() {
		return t.SendText(to, content.Text)
	}
	t.logger.Info().
		Str("to", to).
		Str("media_kind", string(content.Media.Kind)).
		Str("media_ref", content.Media.Ref).
		Str("caption", content.Media.Caption).
		Msg("outbound media (log only)")
	return nil
}
