// Package email delivers transactional mail (second-factor codes,
// password-reset links) through Postmark.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set. When it is not, the
// auth flow surfaces the second-factor code on screen instead.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendTwoFactorCode emails the one-time code for an admin login.
func (c *Client) SendTwoFactorCode(toEmail, code string) error {
	text := fmt.Sprintf("Tu código de verificación CIIPA es: %s\n\nCaduca en 10 minutos.", code)
	html := fmt.Sprintf(
		`<p>Tu código de verificación CIIPA es:</p><p style="font-size:24px"><strong>%s</strong></p><p>Caduca en 10 minutos.</p>`,
		code,
	)
	return c.send(toEmail, "Código de verificación CIIPA", html, text)
}

// SendPasswordReset emails a password-reset link.
func (c *Client) SendPasswordReset(toEmail, link string) error {
	text := fmt.Sprintf("Para restablecer tu contraseña visita:\n\n%s\n\nEl enlace caduca en 30 minutos.", link)
	html := fmt.Sprintf(
		`<p>Para restablecer tu contraseña haz clic aquí:</p><p><a href="%s">Restablecer contraseña</a></p><p>El enlace caduca en 30 minutos.</p>`,
		link,
	)
	return c.send(toEmail, "Restablecer contraseña CIIPA", html, text)
}

func (c *Client) send(to, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
