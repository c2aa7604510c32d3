package email

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"capdev_portal/internal/email/emaillog"
	"capdev_portal/internal/email/templates"
	"capdev_portal/platform/apperr"
	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"
)

const (
	StatusSent     = "sent"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// TemplateResolver maps an event to its template definition.
type TemplateResolver interface {
	Resolve(ctx context.Context, event string) (templates.Template, error)
	ClearCache(ctx context.Context) error
}

// VariableValidator checks and sanitizes template variables.
type VariableValidator interface {
	Validate(event string, vars map[string]any, rules map[string]string) (map[string]any, error)
}

// RateLimiter guards outbound volume.
type RateLimiter interface {
	CheckLimit(ctx context.Context, recipient, event string) error
	IncrementCounters(ctx context.Context, recipient, event string)
}

// Service sends event emails: rate limit, resolve, validate, log, dispatch.
type Service struct {
	resolver  TemplateResolver
	validator VariableValidator
	limiter   RateLimiter
	provider  Provider
	logs      emaillog.Store
	portal    config.PortalConfig
	log       *logger.Logger
	now       func() time.Time
}

type Deps struct {
	Resolver  TemplateResolver
	Validator VariableValidator
	Limiter   RateLimiter
	Provider  Provider
	Logs      emaillog.Store
	Portal    config.PortalConfig
	Logger    *logger.Logger
}

func NewService(d Deps) *Service {
	logs := d.Logs
	if logs == nil {
		logs = emaillog.NullStore{}
	}
	return &Service{
		resolver:  d.Resolver,
		validator: d.Validator,
		limiter:   d.Limiter,
		provider:  d.Provider,
		logs:      logs,
		portal:    d.Portal,
		log:       d.Logger,
		now:       time.Now,
	}
}

// Send delivers one event email. Recoverable provider failures and provider
// rejections come back as an unsuccessful Result with a nil error; template,
// variable, rate-limit and non-recoverable provider failures are returned.
func (s *Service) Send(ctx context.Context, req SendRequest) (Result, error) {
	to := strings.TrimSpace(req.Recipient.Email)
	if to == "" {
		return Result{}, apperr.Validation("recipient email is required").WithOp("email.send")
	}
	req.Recipient.Email = to
	log := s.log.WithContext(ctx).With("event", req.Event, "recipient", to)

	if err := s.limiter.CheckLimit(ctx, to, req.Event); err != nil {
		return Result{}, err
	}

	tpl, err := s.resolver.Resolve(ctx, req.Event)
	if err != nil {
		return Result{}, err
	}

	vars, err := s.validator.Validate(req.Event, s.mergeDefaults(req.Recipient, req.Variables), tpl.Variables)
	if err != nil {
		return Result{}, err
	}

	logID := s.logQueued(ctx, req, tpl)

	msg := ProviderMessage{
		TemplateName: tpl.TemplateName,
		Subject:      tpl.Subject,
		ToEmail:      to,
		ToName:       req.Recipient.Name,
		Variables:    vars,
		Tags:         mergeTags(tpl.Tags, req.Options.Tags),
		Metadata:     s.metadata(tpl, req, logID),
	}

	resp, err := s.provider.SendTemplate(ctx, msg)
	if err != nil {
		s.markFailed(ctx, logID, err)
		s.log.EmailEvent(req.Event, to, StatusFailed, logID)

		if IsRecoverable(err) {
			log.Warn("email send failed, will be retried by caller", "log_id", logID, "error", err)
			return Result{
				Recipient:   to,
				Status:      StatusFailed,
				LogID:       logID,
				Error:       err.Error(),
				Recoverable: true,
			}, nil
		}
		if !ProviderError(err) {
			log.Error("unexpected email send failure", "log_id", logID, "template", tpl.TemplateName, "error", err)
		}
		return Result{}, err
	}

	s.limiter.IncrementCounters(ctx, to, req.Event)

	if resp.Status == providerStatusRejected || resp.Status == providerStatusInvalid {
		if lerr := s.logs.MarkRejected(ctx, logID, resp.RejectReason); lerr != nil {
			log.Warn("email log update failed", "log_id", logID, "error", lerr)
		}
		s.log.EmailEvent(req.Event, to, StatusRejected, logID)
		return Result{
			Recipient:    to,
			Status:       StatusRejected,
			LogID:        logID,
			ProviderID:   resp.ID,
			RejectReason: resp.RejectReason,
		}, nil
	}

	if lerr := s.logs.MarkSent(ctx, logID, resp.ID); lerr != nil {
		log.Warn("email log update failed", "log_id", logID, "error", lerr)
	}
	s.log.EmailEvent(req.Event, to, StatusSent, logID)

	return Result{
		Recipient:  to,
		Success:    true,
		Status:     StatusSent,
		LogID:      logID,
		ProviderID: resp.ID,
	}, nil
}

// SendBatch sends the same event to every recipient. A failure for one
// recipient becomes its Result entry and does not stop the others. Only an
// event without a template fails the whole batch.
func (s *Service) SendBatch(ctx context.Context, req BatchRequest) ([]Result, error) {
	if _, err := s.resolver.Resolve(ctx, req.Event); err != nil {
		var nf *templates.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
	}

	results := make([]Result, 0, len(req.Recipients))
	for _, rcpt := range req.Recipients {
		res, err := s.Send(ctx, SendRequest{
			Event:     req.Event,
			Recipient: rcpt,
			Variables: req.Variables,
			Options:   req.Options,
		})
		if err != nil {
			s.log.WithContext(ctx).Warn("batch email recipient failed",
				"event", req.Event, "recipient", rcpt.Email, "error", err)
			res = Result{
				Recipient:   rcpt.Email,
				Status:      StatusFailed,
				Error:       err.Error(),
				Recoverable: IsRecoverable(err),
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Preview is a rendered email that was not sent.
type Preview struct {
	Event        string         `json:"event"`
	TemplateName string         `json:"templateName"`
	Subject      string         `json:"subject"`
	Variables    map[string]any `json:"variables"`
	HTML         string         `json:"html"`
}

// Preview validates vars for event and renders the template without sending,
// logging or touching rate-limit counters.
func (s *Service) Preview(ctx context.Context, event string, rcpt Recipient, vars map[string]any) (Preview, error) {
	tpl, err := s.resolver.Resolve(ctx, event)
	if err != nil {
		return Preview{}, err
	}

	clean, err := s.validator.Validate(event, s.mergeDefaults(rcpt, vars), tpl.Variables)
	if err != nil {
		return Preview{}, err
	}

	html, err := s.provider.Render(ctx, tpl.TemplateName, clean)
	if err != nil {
		return Preview{}, err
	}

	return Preview{
		Event:        event,
		TemplateName: tpl.TemplateName,
		Subject:      tpl.Subject,
		Variables:    clean,
		HTML:         html,
	}, nil
}

// ClearTemplateCache drops cached templates so edits to the catalog apply.
func (s *Service) ClearTemplateCache(ctx context.Context) error {
	return s.resolver.ClearCache(ctx)
}

// mergeDefaults layers caller variables over the portal-wide defaults.
func (s *Service) mergeDefaults(rcpt Recipient, vars map[string]any) map[string]any {
	name := strings.TrimSpace(rcpt.Name)
	if name == "" {
		name = rcpt.Email
		if at := strings.IndexByte(name, '@'); at > 0 {
			name = name[:at]
		}
	}

	out := map[string]any{
		"user_name":    name,
		"user_email":   rcpt.Email,
		"current_year": s.now().Year(),
	}
	if s.portal != nil {
		out["portal_url"] = s.portal.GetAppBaseURL()
		out["support_email"] = s.portal.GetSupportEmail()
	}
	maps.Copy(out, vars)
	return out
}

func (s *Service) metadata(tpl templates.Template, req SendRequest, logID int64) map[string]string {
	meta := make(map[string]string, len(tpl.Metadata)+len(req.Options.Metadata)+3)
	maps.Copy(meta, tpl.Metadata)
	maps.Copy(meta, req.Options.Metadata)
	meta["event"] = req.Event
	meta["log_id"] = fmt.Sprint(logID)
	if req.Recipient.UserID != nil {
		meta["user_id"] = req.Recipient.UserID.String()
	}
	return meta
}

// logQueued writes the queued entry. Failures are logged and reported as
// emaillog.NoLogID so sending continues.
func (s *Service) logQueued(ctx context.Context, req SendRequest, tpl templates.Template) int64 {
	meta := map[string]any{"tags": mergeTags(tpl.Tags, req.Options.Tags)}
	for k, v := range req.Options.Metadata {
		meta[k] = v
	}

	id, err := s.logs.Queued(ctx, emaillog.Entry{
		UserID:       req.Recipient.UserID,
		Recipient:    req.Recipient.Email,
		EventName:    req.Event,
		TemplateName: tpl.TemplateName,
		Metadata:     meta,
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("email log write failed", "event", req.Event, "error", err)
		return emaillog.NoLogID
	}
	s.log.EmailEvent(req.Event, req.Recipient.Email, string(emaillog.StatusQueued), id)
	return id
}

func (s *Service) markFailed(ctx context.Context, logID int64, cause error) {
	if err := s.logs.MarkFailed(ctx, logID, cause.Error()); err != nil {
		s.log.WithContext(ctx).Warn("email log update failed", "log_id", logID, "error", err)
	}
}

// mergeTags concatenates tag lists, dropping blanks and duplicates.
func mergeTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
