package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLoginUsesLanguage(t *testing.T) {
	ResetForTests()
	SetLangResolver(func(r *http.Request) string { return r.URL.Query().Get("lang") })
	defer SetLangResolver(func(*http.Request) string { return "en" })

	for lang, want := range map[string]string{"en": "Sign in", "fr": "Connexion"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/login?lang="+lang, nil)
		require.NoError(t, Render(rr, req, "login.html", map[string]any{"Next": "/dashboard", "Email": ""}))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), want)
		assert.Contains(t, rr.Body.String(), `value="/dashboard"`)
	}
}

func TestRenderStatusAndSession(t *testing.T) {
	ResetForTests()
	c := &auth.Claims{Role: "admin"}
	c.Subject = "u1"
	c.Email = "a@example.com"
	c.Name = "Alice"
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), c))

	rr := httptest.NewRecorder()
	require.NoError(t, RenderStatus(rr, req, http.StatusTeapot, "dashboard.html", map[string]any{"Welcome": "Hi Alice"}))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "a@example.com")
	assert.Contains(t, body, "/settings", "logged-in layout shows navigation")
}

func TestRenderAdminUsers(t *testing.T) {
	ResetForTests()
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rr := httptest.NewRecorder()
	users := []models.PublicUser{{ID: "1", Name: "Bob <script>", Email: "b@example.com", Role: models.RoleUser, Active: true}}
	require.NoError(t, Render(rr, req, "admin_users.html", map[string]any{"Users": users}))
	body := rr.Body.String()
	assert.Contains(t, body, "Bob &lt;script&gt;")
	assert.Contains(t, body, "Never")
	assert.False(t, strings.Contains(body, "<script>"))
}

func TestRenderUnknownTemplate(t *testing.T) {
	rr := httptest.NewRecorder()
	err := Render(rr, httptest.NewRequest(http.MethodGet, "/", nil), "nope.html", nil)
	assert.Error(t, err)
}
