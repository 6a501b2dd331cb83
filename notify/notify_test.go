package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/segmentio/kafka-go"
)

func testNotification() goReset.Notification {
	return goReset.Notification{
		Contact:     "alice@example.com",
		AccountRef:  "u1",
		TenantID:    "0",
		TokenID:     "00112233445566778899aabbccddeeff",
		ChallengeID: 7,
		DisplayRef:  "https://cdn.example.com/captchas/7.png",
		ResetURL:    "https://example.com/reset-password?key=00112233445566778899aabbccddeeff",
		ExpiresAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRenderMessage(t *testing.T) {
	msg, err := Render(testNotification(), "")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if msg.Subject != "Password reset" || msg.To != "alice@example.com" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	want := "Please enter the following captcha https://cdn.example.com/captchas/7.png on https://example.com/reset-password?key=00112233445566778899aabbccddeeff"
	if !strings.HasPrefix(msg.Text, want) {
		t.Fatalf("unexpected text body:\n%s", msg.Text)
	}
	if !strings.Contains(msg.HTML, `<img src="https://cdn.example.com/captchas/7.png"`) {
		t.Fatalf("html body missing captcha image:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "key=00112233445566778899aabbccddeeff") {
		t.Fatalf("html body missing reset link:\n%s", msg.HTML)
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	n := testNotification()
	n.ResetURL = `https://example.com/reset?key=a"><script>x</script>`
	msg, err := Render(n, "Reset")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatalf("html body not escaped:\n%s", msg.HTML)
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifierPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w, writeTimeout: time.Second}

	if err := k.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "u1" {
		t.Fatalf("unexpected key %q", w.msgs[0].Key)
	}

	var payload kafkaPayload
	if err := json.Unmarshal(w.msgs[0].Value, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.Contact != "alice@example.com" || payload.ChallengeID != 7 || payload.Subject != "Password reset" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !strings.Contains(payload.Text, payload.ResetURL) {
		t.Fatal("rendered text missing link")
	}

	if err := k.Close(); err != nil || !w.closed {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestKafkaNotifierWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	k := &KafkaNotifier{writer: &fakeWriter{err: boom}, writeTimeout: time.Second}
	if err := k.Send(context.Background(), testNotification()); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestNewKafkaNotifierRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaNotifier(nil, "resets", ""); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaNotifier([]string{"localhost:9092"}, "", ""); err == nil {
		t.Fatal("expected error without topic")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls int
	var mu sync.Mutex
	ok := goReset.NotifierFunc(func(context.Context, goReset.Notification) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	boom := errors.New("boom")
	bad := goReset.NotifierFunc(func(context.Context, goReset.Notification) error { return boom })

	if err := (Multi{ok, ok}).Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := (Multi{ok, bad}).Send(context.Background(), testNotification()); !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

// fakeSMTP accepts one message without STARTTLS or AUTH and hands back
// the DATA payload.
func fakeSMTP(t *testing.T) (port int, data <-chan []byte) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)

		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO":
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case "MAIL", "RCPT":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				out <- body
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()

	_, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return port, out
}

func TestSMTPNotifierSendsMultipart(t *testing.T) {
	port, data := fakeSMTP(t)

	n, err := NewSMTPNotifier(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		From:     "noreply@example.com",
		FromName: "Example",
	})
	if err != nil {
		t.Fatalf("NewSMTPNotifier failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Send(ctx, testNotification()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var raw []byte
	select {
	case raw = <-data:
	case <-time.After(5 * time.Second):
		t.Fatal("no DATA received")
	}

	m, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("message does not parse: %v", err)
	}
	if m.Header.Get("To") != "<alice@example.com>" {
		t.Fatalf("unexpected To header %q", m.Header.Get("To"))
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if err != nil || subject != "Password reset" {
		t.Fatalf("unexpected subject %q (%v)", subject, err)
	}

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/alternative" {
		t.Fatalf("unexpected content type %q", m.Header.Get("Content-Type"))
	}
	mr := multipart.NewReader(m.Body, params["boundary"])
	var types []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		body, _ := io.ReadAll(part)
		types = append(types, part.Header.Get("Content-Type"))
		if !strings.Contains(string(body), "key=00112233445566778899aabbccddeeff") {
			t.Fatalf("part %s missing link:\n%s", part.Header.Get("Content-Type"), body)
		}
	}
	if len(types) != 2 {
		t.Fatalf("expected text and html parts, got %v", types)
	}
}

func TestNewSMTPNotifierValidates(t *testing.T) {
	if _, err := NewSMTPNotifier(SMTPConfig{From: "a@example.com"}); err == nil {
		t.Fatal("expected host error")
	}
	if _, err := NewSMTPNotifier(SMTPConfig{Host: "localhost", From: "not an address"}); err == nil {
		t.Fatal("expected from error")
	}
}
