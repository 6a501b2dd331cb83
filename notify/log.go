package notify

import (
	"context"
	"log"

	goReset "github.com/MrEthical07/goReset"
)

// LogNotifier prints the reset link instead of sending it. Never use it in
// production: the log then holds redeemable tokens.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Send(_ context.Context, n goReset.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify: reset for %s: captcha %s, link %s", n.Contact, n.DisplayRef, n.ResetURL)
	return nil
}
