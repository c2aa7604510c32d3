// Package smtp delivers template email over plain SMTP, rendering the
// catalog's local HTML bodies. It backs development and self-hosted setups
// where the hosted provider is not available.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"net"
	"regexp"
	"time"

	"capdev_portal/internal/email"
	"capdev_portal/platform/config"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// BodySource supplies the HTML body configured for a template.
type BodySource interface {
	Body(templateName string) (string, bool)
}

type Provider struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	bodies    BodySource
}

var _ email.Provider = (*Provider)(nil)

func NewProvider(cfg config.SMTPConfig, bodies BodySource) *Provider {
	return &Provider{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		bodies:    bodies,
	}
}

// SendTemplate renders and sends msg. SMTP has no per-recipient verdict, so
// an accepted message is reported as sent with a locally generated id.
func (p *Provider) SendTemplate(ctx context.Context, msg email.ProviderMessage) (email.ProviderResponse, error) {
	body, err := p.Render(ctx, msg.TemplateName, msg.Variables)
	if err != nil {
		return email.ProviderResponse{}, err
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(p.fromName, p.fromEmail); err != nil {
		return email.ProviderResponse{}, &Error{Op: "from", Err: err}
	}
	if err := m.AddToFormat(msg.ToName, msg.ToEmail); err != nil {
		return email.ProviderResponse{}, &Error{Op: "to", Err: err}
	}
	m.Subject(ExpandSubject(msg.Subject, msg.Variables))
	m.SetBodyString(gomail.TypeTextHTML, body)

	id := uuid.NewString()
	m.SetMessageIDWithValue(id)
	if len(msg.Tags) > 0 {
		m.SetGenHeader("X-Tags", msg.Tags...)
	}

	client, err := p.client()
	if err != nil {
		return email.ProviderResponse{}, &Error{Op: "client", Err: err}
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return email.ProviderResponse{}, &Error{Op: "send", Err: err, Transient: true}
	}

	return email.ProviderResponse{ID: id, Status: "sent"}, nil
}

// Render executes the local body for templateName. Variables are expected to
// have passed the template validator, which already escaped or filtered them.
func (p *Provider) Render(_ context.Context, templateName string, vars map[string]any) (string, error) {
	src, ok := p.bodies.Body(templateName)
	if !ok {
		return "", &Error{Op: "render", Err: fmt.Errorf("no local body for template %q", templateName)}
	}

	tpl, err := template.New(templateName).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", &Error{Op: "render", Err: err}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, trusted(vars)); err != nil {
		return "", &Error{Op: "render", Err: err}
	}
	return buf.String(), nil
}

// Ping opens and closes an SMTP session.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.client()
	if err != nil {
		return &Error{Op: "client", Err: err}
	}
	if err := client.DialWithContext(ctx); err != nil {
		return &Error{Op: "dial", Err: err, Transient: true}
	}
	return client.Close()
}

func (p *Provider) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(p.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if p.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(p.username),
			gomail.WithPassword(p.password),
		)
	}
	return gomail.NewClient(p.host, opts...)
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// ExpandSubject substitutes {{name}} placeholders the way the hosted
// provider's handlebars merge does. Unknown names expand to nothing.
// Variables arrive HTML-escaped for the body; the header is plain text, so
// entities are decoded here.
func ExpandSubject(subject string, vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(subject, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok || v == nil {
			return ""
		}
		return html.UnescapeString(fmt.Sprint(v))
	})
}

// trusted marks sanitized strings as safe HTML so they are not escaped twice.
func trusted(v any) any {
	switch val := v.(type) {
	case string:
		return template.HTML(val)
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = template.HTML(s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = trusted(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = trusted(item).(map[string]any)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = trusted(item)
		}
		return out
	default:
		return v
	}
}
