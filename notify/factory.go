package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrMissingCredentials is returned at startup when a configured channel
// lacks what it needs to authenticate.
var ErrMissingCredentials = errors.New("missing notification credentials")

type Options struct {
	Channels []string

	TelegramToken   string
	TelegramChatID  string
	TelegramBaseURL string

	FCMCredentialsPath string
	FCMTopic           string

	KafkaBrokers []string
	KafkaTopic   string

	// DryRun replaces every channel with the log channel.
	DryRun bool
}

// Validate checks credentials of every configured channel.
func (o Options) Validate() error {
	if o.DryRun {
		return nil
	}
	if len(o.Channels) == 0 {
		return fmt.Errorf("%w: no channels configured", ErrMissingCredentials)
	}
	for _, name := range o.Channels {
		switch strings.ToLower(name) {
		case "telegram":
			if o.TelegramToken == "" || o.TelegramChatID == "" {
				return fmt.Errorf("%w: telegram token and chat id are required", ErrMissingCredentials)
			}
		case "fcm":
			if o.FCMCredentialsPath == "" || o.FCMTopic == "" {
				return fmt.Errorf("%w: fcm credentials path and topic are required", ErrMissingCredentials)
			}
		case "kafka":
			if len(o.KafkaBrokers) == 0 || o.KafkaTopic == "" {
				return fmt.Errorf("%w: kafka brokers and topic are required", ErrMissingCredentials)
			}
		case "log":
		default:
			return fmt.Errorf("unknown notification channel %q", name)
		}
	}
	return nil
}

// New validates the options and builds the channel set.
func New(ctx context.Context, o Options, log zerolog.Logger) (Channel, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.DryRun {
		return Log{L: log}, nil
	}

	var out Multi
	for _, name := range o.Channels {
		switch strings.ToLower(name) {
		case "telegram":
			tg := NewTelegram(o.TelegramToken, o.TelegramChatID, log)
			if o.TelegramBaseURL != "" {
				tg.BaseURL = o.TelegramBaseURL
			}
			out = append(out, tg)
		case "fcm":
			f, err := NewFCM(ctx, o.FCMCredentialsPath, o.FCMTopic, log)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		case "kafka":
			out = append(out, NewKafka(o.KafkaBrokers, o.KafkaTopic, log))
		case "log":
			out = append(out, Log{L: log})
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}
