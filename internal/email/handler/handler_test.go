package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"capdev_portal/internal/email"
	"capdev_portal/internal/email/templates"
	"capdev_portal/platform/validator"

	"github.com/gin-gonic/gin"
)

type stubMailer struct {
	gotEvent string
	gotRcpt  email.Recipient
	cleared  int
	err      error
}

func (s *stubMailer) Preview(_ context.Context, event string, rcpt email.Recipient, vars map[string]any) (email.Preview, error) {
	s.gotEvent, s.gotRcpt = event, rcpt
	if s.err != nil {
		return email.Preview{}, s.err
	}
	return email.Preview{Event: event, TemplateName: "capdev-" + event, Variables: vars, HTML: "<p>ok</p>"}, nil
}

func (s *stubMailer) ClearTemplateCache(context.Context) error {
	s.cleared++
	return nil
}

type stubHealth struct {
	report email.HealthReport
}

func (s stubHealth) Check(context.Context) email.HealthReport { return s.report }

func newRouter(m Mailer, h HealthReporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(m, h, validator.New()).RegisterRoutes(r.Group("/admin/email"))
	return r
}

func TestHealthStatusCodes(t *testing.T) {
	cases := []struct {
		status string
		want   int
	}{
		{email.HealthHealthy, http.StatusOK},
		{email.HealthDegraded, http.StatusOK},
		{email.HealthCritical, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		r := newRouter(&stubMailer{}, stubHealth{report: email.HealthReport{Status: tc.status}})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/email/health", nil))

		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.status, tc.want, w.Code)
		}
		var body email.HealthReport
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Status != tc.status {
			t.Fatalf("%s: unexpected body %s", tc.status, w.Body.String())
		}
	}
}

func TestPreviewRendersEvent(t *testing.T) {
	mailer := &stubMailer{}
	r := newRouter(mailer, stubHealth{})

	body := `{"recipient":{"email":"admin@example.org","name":"Admin"},"variables":{"partner_name":"Blue"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/email/preview/offer_made", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mailer.gotEvent != "offer_made" || mailer.gotRcpt.Email != "admin@example.org" {
		t.Fatalf("unexpected call event=%q rcpt=%+v", mailer.gotEvent, mailer.gotRcpt)
	}
	var got email.Preview
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TemplateName != "capdev-offer_made" || got.HTML != "<p>ok</p>" {
		t.Fatalf("unexpected preview %+v", got)
	}
}

func TestPreviewRejectsInvalidRecipient(t *testing.T) {
	mailer := &stubMailer{}
	r := newRouter(mailer, stubHealth{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/email/preview/offer_made", strings.NewReader(`{"recipient":{"email":"nope"}}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if mailer.gotEvent != "" {
		t.Fatalf("mailer should not be called")
	}
}

func TestPreviewMapsTemplateErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown event", &templates.NotFoundError{Event: "nope"}, http.StatusNotFound},
		{"missing variables", &templates.MissingVariablesError{Event: "offer_made", Missing: []string{"partner_name"}}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		r := newRouter(&stubMailer{err: tc.err}, stubHealth{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/email/preview/x", strings.NewReader(`{"recipient":{"email":"a@example.org"}}`)))

		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestClearCache(t *testing.T) {
	mailer := &stubMailer{}
	r := newRouter(mailer, stubHealth{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/email/templates/cache", nil))

	if w.Code != http.StatusOK || mailer.cleared != 1 {
		t.Fatalf("expected cache cleared, code=%d cleared=%d", w.Code, mailer.cleared)
	}
}
