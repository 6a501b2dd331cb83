package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes reset notifications as JSON, keyed by account
// ref, for a downstream mailer to render and send.
type KafkaNotifier struct {
	writer       messageWriter
	subject      string
	writeTimeout time.Duration
}

// kafkaPayload is the wire format consumed by the mailer. The rendered
// bodies are included so consumers need no template of their own.
type kafkaPayload struct {
	Contact     string    `json:"contact"`
	AccountRef  string    `json:"account_ref"`
	TenantID    string    `json:"tenant_id"`
	ChallengeID int       `json:"challenge_id"`
	CaptchaURL  string    `json:"captcha_url"`
	ResetURL    string    `json:"reset_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Subject     string    `json:"subject"`
	Text        string    `json:"text"`
	HTML        string    `json:"html"`
}

func NewKafkaNotifier(brokers []string, topic, subject string) (*KafkaNotifier, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka brokers and topic required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaNotifier{writer: writer, subject: subject, writeTimeout: 5 * time.Second}, nil
}

func (k *KafkaNotifier) Send(ctx context.Context, n goReset.Notification) error {
	msg, err := Render(n, k.subject)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(kafkaPayload{
		Contact:     n.Contact,
		AccountRef:  n.AccountRef,
		TenantID:    n.TenantID,
		ChallengeID: n.ChallengeID,
		CaptchaURL:  n.DisplayRef,
		ResetURL:    n.ResetURL,
		ExpiresAt:   n.ExpiresAt.UTC(),
		Subject:     msg.Subject,
		Text:        msg.Text,
		HTML:        msg.HTML,
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, k.writeTimeout)
	defer cancel()
	return k.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(n.AccountRef),
		Value: payload,
	})
}

// Close flushes and closes the writer. Safe to call more than once.
func (k *KafkaNotifier) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
