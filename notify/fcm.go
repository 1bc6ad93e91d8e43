package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

type messenger interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

// FCM pushes messages to a Firebase Cloud Messaging topic.
type FCM struct {
	client messenger
	Topic  string
	Title  string
	Log    zerolog.Logger
}

// NewFCM initializes the Firebase app from a service account file.
func NewFCM(ctx context.Context, credentialsPath, topic string, log zerolog.Logger) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	return &FCM{client: client, Topic: topic, Title: "Scanner signal", Log: log}, nil
}

func (f *FCM) Name() string { return "fcm" }

func (f *FCM) Send(ctx context.Context, text string) bool {
	msg := &messaging.Message{
		Topic: f.Topic,
		Notification: &messaging.Notification{
			Title: f.Title,
			Body:  text,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	id, err := f.client.Send(ctx, msg)
	if err != nil {
		f.Log.Debug().Err(err).Str("topic", f.Topic).Msg("fcm send failed")
		return false
	}
	f.Log.Debug().Str("message_id", id).Msg("fcm sent")
	return true
}
