// Package notify provides goReset.Notifier implementations.
//
// SMTPNotifier mails the reset link and captcha image directly. KafkaNotifier
// publishes the notification as JSON for an external mailer. LogNotifier is
// for local development. Multi fans a notification out to several notifiers.
//
// All notifiers render the same message through Render, so the wording of
// the reset mail lives in one place.
package notify
