// Package notify delivers best-effort messages to users. State transitions
// produce an Intent; delivery happens after the fact and its failures are
// logged, never surfaced.
package notify

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/labstack/gommon/log"
)

type Kind string

const (
	KindFriendRequest   Kind = "friend-request"
	KindFriendAccepted  Kind = "friend-accepted"
	KindWelcome         Kind = "welcome"
	KindPasswordReset   Kind = "password-reset"
	KindPasswordChanged Kind = "password-changed"
	KindContact         Kind = "contact"
)

// Intent describes a notification owed to somebody. A zero Intent means the
// triggering operation had nothing to announce.
type Intent struct {
	Recipient string
	Kind      Kind
	Context   map[string]string
}

func (i Intent) IsZero() bool {
	return i.Recipient == "" && i.Kind == ""
}

type Notifier interface {
	Send(intent Intent) error
}

// Dispatch fires the intent without waiting for delivery. The caller's
// response never depends on the outcome.
func Dispatch(notifier Notifier, intent Intent) {
	if intent.IsZero() {
		return
	}
	go func() {
		if err := notifier.Send(intent); err != nil {
			log.Errorf("sending %s notification: %+v", intent.Kind, err)
		}
	}()
}

type message struct {
	Subject string
	Body    string
}

var messages = map[Kind]message{
	KindFriendRequest: {
		Subject: "Friend request",
		Body: "{{.handle}} would like to become your friend.\n" +
			"Sign in to answer the request: {{.baseURL}}/login\n",
	},
	KindFriendAccepted: {
		Subject: "Friend request accepted",
		Body:    "{{.handle}} accepted your friend request.\n",
	},
	KindWelcome: {
		Subject: "Welcome!",
		Body: "Your account has been created.\n" +
			"You can now fill in your profile and browse members looking for friends: {{.baseURL}}\n",
	},
	KindPasswordReset: {
		Subject: "Password reset",
		Body: "You are receiving this email because you (or someone else) requested a password change.\n\n" +
			"Follow this link to choose a new password:\n\n" +
			"{{.baseURL}}/reset/{{.token}}\n\n" +
			"If you did not make this request, ignore this message and your password will remain unchanged.\n",
	},
	KindPasswordChanged: {
		Subject: "Your password has been changed",
		Body:    "This confirms the password for your account was just changed.\n",
	},
	KindContact: {
		Subject: "Contact form",
		Body:    "From: {{.name}} <{{.email}}>\n\n{{.message}}\n",
	},
}

type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewMailer(host, port, username, password, from string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (m *Mailer) Send(intent Intent) error {
	msg, ok := messages[intent.Kind]
	if !ok {
		return fmt.Errorf("unknown notification kind: %s", intent.Kind)
	}

	t, err := template.New(string(intent.Kind)).Parse(msg.Body)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, intent.Context); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}

	// No host configured: log the message instead of sending it.
	if m.host == "" {
		log.Infof("mail to %s [%s]: %s", intent.Recipient, msg.Subject, body.String())
		return nil
	}

	payload := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, intent.Recipient, msg.Subject, body.String())

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{intent.Recipient}, []byte(payload)); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
