// Package middleware holds request-scoped preference and flash helpers shared
// by the HTML handlers.
package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/i18n"
)

type ctxKey string

const (
	ctxLang ctxKey = "pref_lang"

	langCookie  = "lang"
	flashCookie = "flash"
)

// Prefs resolves the UI language (query > cookie > session profile >
// Accept-Language > fallback) and stores it in context. A language given in
// the query is persisted in a cookie for ~30 days.
func Prefs(fallback string) func(http.Handler) http.Handler {
	if !i18n.Supported(fallback) {
		fallback = i18n.DefaultLang
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ""
			if ql := r.URL.Query().Get("lang"); i18n.Supported(ql) {
				lang = ql
				http.SetCookie(w, &http.Cookie{Name: langCookie, Value: lang, Path: "/", MaxAge: 86400 * 30, HttpOnly: true, SameSite: http.SameSiteLaxMode})
			}
			if lang == "" {
				if c, err := r.Cookie(langCookie); err == nil && i18n.Supported(c.Value) {
					lang = c.Value
				}
			}
			if lang == "" {
				if claims, ok := auth.ClaimsFromContext(r.Context()); ok && i18n.Supported(claims.Language) {
					lang = claims.Language
				}
			}
			if lang == "" && r.Header.Get("Accept-Language") != "" {
				lang = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
			}
			if lang == "" {
				lang = fallback
			}
			next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
		})
	}
}

func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxLang, lang)
}

// LangFrom returns language preference from context or fallback.
func LangFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxLang).(string); ok && v != "" {
		return v
	}
	return i18n.DefaultLang
}

// Flash sets a translated flash message cookie using translation code (or literal if missing).
func Flash(w http.ResponseWriter, r *http.Request, code string) {
	msg := i18n.T(LangFrom(r), code)
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: url.QueryEscape(msg), Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// PopFlash returns the pending flash message, if any, and clears it.
func PopFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}
