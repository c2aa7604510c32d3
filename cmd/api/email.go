package main

import (
	"capdev_portal/internal/email"
	"capdev_portal/internal/email/emaillog"
	"capdev_portal/internal/email/mandrill"
	"capdev_portal/internal/email/ratelimit"
	"capdev_portal/internal/email/smtp"
	"capdev_portal/internal/email/templates"
	"capdev_portal/platform/cache"
	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"
	"capdev_portal/platform/validator"
)

// buildEmailService assembles the templated email pipeline. The provider is
// returned separately for the health check.
func buildEmailService(cfg *config.Config, store cache.Store, logs emaillog.Store, val *validator.Validator, log *logger.Logger) (*email.Service, email.Provider, error) {
	catalog, err := templates.LoadCatalog(cfg.GetEmailTemplatesPath())
	if err != nil {
		return nil, nil, err
	}
	resolver := templates.NewResolver(catalog, store, cfg.GetTemplateCacheTTL(), log)

	var provider email.Provider
	if cfg.UsesSMTP() {
		provider = smtp.NewProvider(cfg, resolver)
		log.Info("email provider configured", "provider", "smtp", "host", cfg.GetSMTPHost())
	} else {
		provider = mandrill.NewClient(cfg)
		log.Info("email provider configured", "provider", "mandrill")
	}

	svc := email.NewService(email.Deps{
		Resolver:  resolver,
		Validator: templates.NewValidator(val),
		Limiter:   ratelimit.New(store, ratelimit.LimitsFromConfig(cfg), log),
		Provider:  provider,
		Logs:      logs,
		Portal:    cfg,
		Logger:    log,
	})
	return svc, provider, nil
}
