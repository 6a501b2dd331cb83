package notify

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
	"time"

	goReset "github.com/MrEthical07/goReset"
)

const defaultSubject = "Password reset"

var textBody = template.Must(template.New("text").Parse(
	`Please enter the following captcha {{.CaptchaURL}} on {{.ResetURL}}
The link expires at {{.ExpiresAt}}.
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<!doctype html>
<html>
<body>
<p>Please enter the following captcha</p>
<p><img src="{{.CaptchaURL}}" alt="captcha"></p>
<p>on <a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
<p>The link expires at {{.ExpiresAt}}.</p>
</body>
</html>
`))

// Message is a rendered reset notification.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type messageData struct {
	CaptchaURL string
	ResetURL   string
	ExpiresAt  string
}

// Render builds the reset message for n. An empty subject uses
// "Password reset".
func Render(n goReset.Notification, subject string) (Message, error) {
	if subject == "" {
		subject = defaultSubject
	}
	data := messageData{
		CaptchaURL: n.DisplayRef,
		ResetURL:   n.ResetURL,
		ExpiresAt:  n.ExpiresAt.UTC().Format(time.RFC1123),
	}

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := htmlBody.Execute(&html, data); err != nil {
		return Message{}, err
	}

	return Message{
		To:      n.Contact,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
