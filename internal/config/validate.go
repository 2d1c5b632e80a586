package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if err := validateProviderConfig(cfg.Provider); err != nil {
		return err
	}

	if cfg.Events.WebhookURL != "" {
		if err := validateHTTPURL("events.webhook_url", cfg.Events.WebhookURL); err != nil {
			return err
		}
	}
	if cfg.Events.WebhookTimeoutSeconds < 0 {
		return errors.New("events.webhook_timeout_seconds must not be negative")
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateProviderConfig(p ProviderConfig) error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return errors.New("provider.base_url must be set")
	}
	if err := validateHTTPURL("provider.base_url", p.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(p.Model) == "" {
		return errors.New("provider.model must be set")
	}
	if p.MaxTokens < 0 {
		return errors.New("provider.max_tokens must not be negative")
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("provider.temperature %v outside [0, 2]", *p.Temperature)
	}
	if p.TimeoutSeconds < 0 {
		return errors.New("provider.timeout_seconds must not be negative")
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry.endpoint must be set when telemetry is enabled")
	}
	switch t.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", field, raw)
	}
	return nil
}
