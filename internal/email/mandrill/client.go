// Package mandrill delivers template email through the Mandrill HTTP API.
package mandrill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"capdev_portal/internal/email"
	"capdev_portal/platform/circuitbreaker"
	"capdev_portal/platform/config"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	sendTemplatePath = "/messages/send-template.json"
	renderPath       = "/templates/render.json"
	userInfoPath     = "/users/info.json"
)

type Client struct {
	apiKey    string
	baseURL   string
	fromName  string
	fromEmail string
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
}

var _ email.Provider = (*Client)(nil)

func NewClient(cfg config.MandrillConfig) *Client {
	limit := rate.Inf
	burst := 1
	if rps := cfg.GetMandrillRequestsPerSecond(); rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}

	return &Client{
		apiKey:    cfg.GetMandrillAPIKey(),
		baseURL:   strings.TrimRight(cfg.GetMandrillBaseURL(), "/"),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		http:      &http.Client{Timeout: 10 * time.Second},
		cb: circuitbreaker.New("mandrill", func(err error) bool {
			// Requests the provider refused on their merits do not mean it is down.
			return err == nil || !email.IsRecoverable(err)
		}),
		limiter: rate.NewLimiter(limit, burst),
	}
}

type mergeVar struct {
	Name    string `json:"name"`
	Content any    `json:"content"`
}

type recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Type  string `json:"type"`
}

type message struct {
	Subject         string            `json:"subject,omitempty"`
	FromEmail       string            `json:"from_email,omitempty"`
	FromName        string            `json:"from_name,omitempty"`
	To              []recipient       `json:"to"`
	MergeLanguage   string            `json:"merge_language"`
	GlobalMergeVars []mergeVar        `json:"global_merge_vars"`
	Tags            []string          `json:"tags,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type sendTemplateRequest struct {
	Key             string     `json:"key"`
	TemplateName    string     `json:"template_name"`
	TemplateContent []mergeVar `json:"template_content"`
	Message         message    `json:"message"`
	Async           bool       `json:"async"`
}

type sendResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	ID           string `json:"_id"`
	RejectReason string `json:"reject_reason"`
}

type renderRequest struct {
	Key             string     `json:"key"`
	TemplateName    string     `json:"template_name"`
	TemplateContent []mergeVar `json:"template_content"`
	MergeVars       []mergeVar `json:"merge_vars"`
}

type errorBody struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// SendTemplate sends one template message and returns the provider verdict
// for its single recipient.
func (c *Client) SendTemplate(ctx context.Context, msg email.ProviderMessage) (email.ProviderResponse, error) {
	payload := sendTemplateRequest{
		Key:             c.apiKey,
		TemplateName:    msg.TemplateName,
		TemplateContent: []mergeVar{},
		Message: message{
			Subject:         msg.Subject,
			FromEmail:       c.fromEmail,
			FromName:        c.fromName,
			To:              []recipient{{Email: msg.ToEmail, Name: msg.ToName, Type: "to"}},
			MergeLanguage:   "handlebars",
			GlobalMergeVars: toMergeVars(msg.Variables),
			Tags:            msg.Tags,
			Metadata:        msg.Metadata,
		},
		Async: true,
	}

	var results []sendResult
	if err := c.call(ctx, sendTemplatePath, payload, &results); err != nil {
		return email.ProviderResponse{}, err
	}
	if len(results) == 0 {
		return email.ProviderResponse{}, &APIError{Status: http.StatusOK, Message: "empty send result", Recoverable: true}
	}

	r := results[0]
	return email.ProviderResponse{ID: r.ID, Status: r.Status, RejectReason: r.RejectReason}, nil
}

// Render returns the provider-rendered HTML without sending anything.
func (c *Client) Render(ctx context.Context, templateName string, vars map[string]any) (string, error) {
	payload := renderRequest{
		Key:             c.apiKey,
		TemplateName:    templateName,
		TemplateContent: []mergeVar{},
		MergeVars:       toMergeVars(vars),
	}

	var out struct {
		HTML string `json:"html"`
	}
	if err := c.call(ctx, renderPath, payload, &out); err != nil {
		return "", err
	}
	return out.HTML, nil
}

// Ping verifies the API key with a lightweight account lookup.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Username string `json:"username"`
	}
	return c.call(ctx, userInfoPath, map[string]string{"key": c.apiKey}, &out)
}

func (c *Client) call(ctx context.Context, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(err)
	}

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, payload, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &APIError{Name: "CircuitOpen", Message: err.Error(), Status: http.StatusServiceUnavailable, Recoverable: true, Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &APIError{Message: err.Error(), Err: err}
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Message
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return &APIError{
			Status:      resp.StatusCode,
			Name:        eb.Name,
			Message:     msg,
			Recoverable: classify(resp.StatusCode, eb.Name),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err), Recoverable: true, Err: err}
	}
	return nil
}

// toMergeVars flattens variables in name order so payloads are stable.
func toMergeVars(vars map[string]any) []mergeVar {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mergeVar, 0, len(names))
	for _, name := range names {
		out = append(out, mergeVar{Name: name, Content: vars[name]})
	}
	return out
}
