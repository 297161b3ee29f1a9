// Package flash carries user-facing notices across redirects in a cookie.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const cookieName = "ciipa_flash"

// Notice severities, matching the alert styles rendered by the templates.
const (
	SeveritySuccess = "success"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityDanger  = "danger"
)

type Notice struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// Add queues a notice for the next rendered page.
func Add(w http.ResponseWriter, r *http.Request, severity, text string) {
	notices := peek(r)
	notices = append(notices, Notice{Severity: severity, Text: text})
	write(w, notices)
}

// Take drains the queued notices and clears the cookie.
func Take(w http.ResponseWriter, r *http.Request) []Notice {
	notices := peek(r)
	if len(notices) > 0 {
		expire(w)
	}
	return notices
}

// TakeNonDanger drains the queue like Take but discards danger notices,
// preserving other severities. The second-factor prompt uses it to avoid
// re-showing stale credential errors.
func TakeNonDanger(w http.ResponseWriter, r *http.Request) []Notice {
	notices := Take(w, r)
	kept := notices[:0]
	for _, n := range notices {
		if n.Severity != SeverityDanger {
			kept = append(kept, n)
		}
	}
	return kept
}

func peek(r *http.Request) []Notice {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var notices []Notice
	if err := json.Unmarshal(raw, &notices); err != nil {
		return nil
	}
	return notices
}

func write(w http.ResponseWriter, notices []Notice) {
	raw, err := json.Marshal(notices)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
