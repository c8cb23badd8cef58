package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// defaultSessionTimeout applies when the settings carry no timeout.
const defaultSessionTimeout = 30 * time.Second

// deliver runs one SMTP session like smtp.SendMail, but the dial and every
// later exchange end at the session deadline or when ctx is done.
func (d *Dispatcher) deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}

	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	if err = conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	client, err := smtp.NewClient(conn, d.cfg.SMTPServer)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("greeting: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: d.cfg.SMTPServer, MinVersion: tls.VersionTLS12}
		if err = client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok && auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}

	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("rcpt to %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	if _, err = writer.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}
