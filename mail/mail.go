// Package mail sends plain text notification mails over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/awaketai/crawlrt/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrNoRecipients = errors.New("mail: no recipients")

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	options
	limiter *rate.Limiter
	send    sendFunc
}

func NewSender(opts ...Option) *Sender {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	limit := rate.Inf
	if options.rate > 0 {
		limit = rate.Limit(options.rate)
	}
	return &Sender{
		options: options,
		limiter: rate.NewLimiter(limit, 1),
		send:    sendMail,
	}
}

// FromSettings builds a sender from the MAIL_* settings.
func FromSettings(s *config.Settings, logger *zap.Logger) *Sender {
	return NewSender(
		WithLogger(logger),
		WithServer(s.String("MAIL_HOST"), s.Int("MAIL_PORT")),
		WithFrom(s.String("MAIL_FROM")),
		WithAuth(s.String("MAIL_USER"), s.String("MAIL_PASS")),
		WithDebug(s.Bool("MAIL_DEBUG")),
		WithRate(s.Float("MAIL_RATE")),
	)
}

// Send mails body to every address in to. Sends are throttled; Send
// returns once the mail is delivered or ctx is done, whichever is first.
func (s *Sender) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	msg := s.compose(to, subject, body)
	if s.debug {
		s.logger.Debug("mail not sent, debug mode",
			zap.Strings("to", to),
			zap.String("subject", subject),
			zap.Int("bytes", len(msg)),
		)
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	if err := s.deliver(ctx, addr, auth, to, msg); err != nil {
		s.logger.Error("send mail failed",
			zap.String("server", addr),
			zap.Strings("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send mail to %s: %w", strings.Join(to, ","), err)
	}
	s.logger.Info("mail sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

func (s *Sender) deliver(ctx context.Context, addr string, auth smtp.Auth, to []string, msg []byte) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.send(ctx, addr, auth, s.from, to, msg)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sender) compose(to []string, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Date: %s\r\n", s.clock.Now().Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}
