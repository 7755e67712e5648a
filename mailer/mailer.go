// Package mailer delivers the engine's security email over SMTP with
// implicit TLS (port 465 style), templated as minimal HTML.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"

	"go.uber.org/zap"
)

// Config holds SMTP connection settings and the frontend base URL embedded
// in password-reset links.
type Config struct {
	Host            string
	Port            string
	Username        string
	Password        string
	From            string
	FrontendBaseURL string
}

// Mailer implements the engine's Notifier interface.
type Mailer struct {
	config Config
	log    *zap.Logger
}

// New returns a Mailer. A nil logger falls back to a no-op logger.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{config: cfg, log: logger}
}

var otpTpl = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
  <p>Hello,</p>
  <p>Your signin verification code is:</p>
  <p style="font-size: 24px; letter-spacing: 4px;"><strong>{{.Code}}</strong></p>
  <p>The code expires in five minutes. If you did not try to sign in, change your password.</p>
</body></html>`))

var deviceTpl = template.Must(template.New("device").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
  <p>Hello,</p>
  <p>Your account was just used to sign in from a device we have not seen before:</p>
  <p><strong>{{.DeviceID}}</strong></p>
  <p>If this was you, no action is needed. Otherwise, reset your password immediately.</p>
</body></html>`))

var resetTpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
  <p>Hello,</p>
  <p>We received a request to reset your password. The link below is valid for one hour and works once:</p>
  <p><a href="{{.Link}}">Reset your password</a></p>
  <p>If you did not request this, you can ignore this message.</p>
</body></html>`))

func (m *Mailer) SendLoginOTP(ctx context.Context, email, code string) error {
	body, err := render(otpTpl, struct{ Code string }{code})
	if err != nil {
		return err
	}
	return m.send(ctx, email, "Your signin verification code", body)
}

func (m *Mailer) SendNewDeviceAlert(ctx context.Context, email, deviceID string) error {
	body, err := render(deviceTpl, struct{ DeviceID string }{deviceID})
	if err != nil {
		return err
	}
	return m.send(ctx, email, "New device signin on your account", body)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/password-reset?token=%s",
		m.config.FrontendBaseURL, url.QueryEscape(token))
	body, err := render(resetTpl, struct{ Link string }{link})
	if err != nil {
		return err
	}
	return m.send(ctx, email, "Password reset request", body)
}

func render(tpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte(
		fmt.Sprintf("From: %s\r\n", m.config.From) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	addr := m.config.Host + ":" + m.config.Port

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.config.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(m.config.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	m.log.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
