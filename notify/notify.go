// Package notify delivers rendered signals to operator channels.
package notify

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scanner/dispatch"
)

// Channel sends one text message. Delivery failure is reported as false.
type Channel interface {
	Name() string
	Send(ctx context.Context, text string) bool
}

// Notifier renders payloads and hands them to a channel. It satisfies
// dispatch.Sender.
type Notifier struct {
	Channel Channel
	Log     zerolog.Logger
}

func NewNotifier(ch Channel, log zerolog.Logger) *Notifier {
	return &Notifier{Channel: ch, Log: log}
}

func (n *Notifier) Deliver(ctx context.Context, p dispatch.Payload) bool {
	ok := n.Channel.Send(ctx, Render(p))
	if !ok {
		n.Log.Warn().Str("channel", n.Channel.Name()).Str("symbol", p.Symbol).Msg("delivery failed")
	}
	return ok
}

// Status sends a free-form notice such as a regime summary. The text is
// plain; Markdown entity characters are escaped.
func (n *Notifier) Status(ctx context.Context, text string) bool {
	return n.Channel.Send(ctx, Escape(text))
}

// Multi fans a message out to several channels. It reports success only
// when every channel accepted the message.
type Multi []Channel

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, text string) bool {
	ok := len(m) > 0
	for _, ch := range m {
		if !ch.Send(ctx, text) {
			ok = false
		}
	}
	return ok
}

// Close closes every member that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, ch := range m {
		if c, ok := ch.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Log writes messages to the logger instead of an external service.
type Log struct {
	L zerolog.Logger
}

func (l Log) Name() string { return "log" }

func (l Log) Send(_ context.Context, text string) bool {
	l.L.Info().Str("channel", "log").Msg(text)
	return true
}
