package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/logger"
)

// Subject is the subject line of every summary.
const Subject = "Updated Software Packages"

var errMissingSettings = errors.New("missing mail settings")

//nolint:gochecknoglobals // Parsed once, the template never changes.
var bodyTemplate = template.Must(template.New("summary").Parse(`Dear {{ .RequesterName }}<br><br>
You have new updates to the following software packages.<br><br>
<table border="0" cellpadding="5" cellspacing="0" style="border-collapse: collapse; text-align: left;">
{{- range .Packages }}
	<tr><td style="padding-left:0px"><b>{{ . }}</b></td></tr>
{{- end }}
</table><br>
If you have any issues or concerns, please get in contact with us on the e-mail address below.<br>
Yours sincerely<br>
<b>{{ .SenderName }}</b><br>
The {{ .Department }} Team<br>
`))

// SendFunc delivers a prepared message. It has the shape of smtp.SendMail plus a context.
type SendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Dispatcher sends the summary through an SMTP relay, upgrading to TLS
// when the relay offers STARTTLS.
type Dispatcher struct {
	cfg  config.Notification
	send SendFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSendFunc replaces the SMTP delivery.
func WithSendFunc(send SendFunc) Option {
	return func(d *Dispatcher) {
		d.send = send
	}
}

type summary struct {
	RequesterName string
	Packages      []string
	SenderName    string
	Department    string
}

// New creates a Dispatcher.
func New(cfg config.Notification, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg: cfg,
	}

	d.send = d.deliver

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Send e-mails one message listing names. The caller decides whether there is anything to send.
func (d *Dispatcher) Send(ctx context.Context, names []string) error {
	if missing := d.missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", errMissingSettings, strings.Join(missing, ", "))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	message, err := d.compose(names)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(d.cfg.SMTPServer, strconv.Itoa(d.cfg.SMTPPort))
	auth := smtp.PlainAuth("", d.cfg.SMTPUser, d.cfg.SMTPPassword, d.cfg.SMTPServer)

	if err = d.send(ctx, addr, auth, d.cfg.SenderEmail, []string{d.cfg.RequesterEmail}, message); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}

	logger.InfoKV(ctx, "Summary sent", "recipient", d.cfg.RequesterEmail, "packages", len(names))

	return nil
}

func (d *Dispatcher) compose(names []string) ([]byte, error) {
	var body bytes.Buffer

	err := bodyTemplate.Execute(&body, summary{
		RequesterName: d.cfg.RequesterName,
		Packages:      names,
		SenderName:    d.cfg.SenderName,
		Department:    d.cfg.SenderDepartment,
	})
	if err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}

	from := mail.Address{Name: d.cfg.SenderName, Address: d.cfg.SenderEmail}
	to := mail.Address{Name: d.cfg.RequesterName, Address: d.cfg.RequesterEmail}

	var message bytes.Buffer

	fmt.Fprintf(&message, "From: %s\r\n", from.String())
	fmt.Fprintf(&message, "To: %s\r\n", to.String())
	fmt.Fprintf(&message, "Subject: %s\r\n", Subject)
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	message.Write(body.Bytes())

	return message.Bytes(), nil
}

func (d *Dispatcher) missing() []string {
	var missing []string

	fields := []struct {
		name  string
		empty bool
	}{
		{"SMTP_SERVER", d.cfg.SMTPServer == ""},
		{"SMTP_PORT", d.cfg.SMTPPort <= 0},
		{"SMTP_PASSWORD", d.cfg.SMTPPassword == ""},
		{"SMTP_EMAIL", d.cfg.SMTPUser == ""},
		{"SENDER_EMAIL", d.cfg.SenderEmail == ""},
		{"REQUESTER_EMAIL", d.cfg.RequesterEmail == ""},
	}

	for _, field := range fields {
		if field.empty {
			missing = append(missing, field.name)
		}
	}

	return missing
}
