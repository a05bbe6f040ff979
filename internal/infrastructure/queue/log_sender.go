package queue

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/tlobni/session-core/internal/core/ports"
)

// LogSender "delivers" reset notices by logging the reset link. It stands in
// for a mail provider in development.
type LogSender struct {
	linkBase string
	log      zerolog.Logger
}

var _ ports.ResetNoticeSender = (*LogSender)(nil)

// NewLogSender builds links as linkBase?token=<token>.
func NewLogSender(linkBase string, log zerolog.Logger) *LogSender {
	return &LogSender{linkBase: linkBase, log: log}
}

func (s *LogSender) Send(_ context.Context, notice ports.ResetNotice) error {
	link, err := url.Parse(s.linkBase)
	if err != nil {
		return err
	}
	q := link.Query()
	q.Set("token", notice.Token)
	link.RawQuery = q.Encode()

	s.log.Info().
		Str("email", notice.Email).
		Str("name", notice.Name).
		Str("link", link.String()).
		Msg("password reset link issued")
	return nil
}
