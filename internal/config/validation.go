package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is complete and internally
// consistent. It fails fast on the first problem so startup errors point at
// exactly one field.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateEndpoint(); err != nil {
		return err
	}
	if err := c.validateCredential(); err != nil {
		return err
	}
	if err := c.validateModelDeployment(); err != nil {
		return err
	}
	if err := c.validateToolServer(); err != nil {
		return err
	}
	if err := c.validateApprovalMode(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateEndpoint() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: set endpoint in config.yaml or DOCENT_ENDPOINT", ErrMissingEndpoint)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingEndpoint, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: endpoint must be an http(s) URL, got %q", ErrMissingEndpoint, c.Endpoint)
	}
	return nil
}

func (c *Config) validateCredential() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: set the AGENTS_API_KEY environment variable", ErrMissingAPIKey)
	}
	return nil
}

func (c *Config) validateModelDeployment() error {
	if strings.TrimSpace(c.ModelDeployment) == "" {
		return fmt.Errorf("%w: model deployment name is empty", ErrInvalidModelDeployment)
	}
	return nil
}

func (c *Config) validateToolServer() error {
	u, err := url.Parse(c.ToolServer.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolServerURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: tool server URL must be an http(s) URL, got %q", ErrInvalidToolServerURL, c.ToolServer.URL)
	}
	if strings.TrimSpace(c.ToolServer.Label) == "" {
		return fmt.Errorf("%w: tool server label is empty", ErrInvalidToolServerLabel)
	}
	// The label travels inside JSON payloads and tool names; keep it simple.
	for _, r := range c.ToolServer.Label {
		if !isLabelRune(r) {
			return fmt.Errorf("%w: label %q may only contain letters, digits, '-' and '_'", ErrInvalidToolServerLabel, c.ToolServer.Label)
		}
	}
	return nil
}

func isLabelRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}

func (c *Config) validateApprovalMode() error {
	switch c.ApprovalMode {
	case ApprovalNever, ApprovalAlways:
		return nil
	}
	// Anything else must be a raw JSON document the service understands,
	// e.g. {"never":{"tool_names":["microsoft_docs_search"]}}.
	if json.Valid([]byte(c.ApprovalMode)) && strings.HasPrefix(strings.TrimSpace(c.ApprovalMode), "{") {
		return nil
	}
	return fmt.Errorf("%w: %q (want %q, %q, or a JSON object)", ErrInvalidApprovalMode, c.ApprovalMode, ApprovalNever, ApprovalAlways)
}

func (c *Config) validateRun() error {
	if c.Run.PollInterval < MinPollInterval {
		return fmt.Errorf("%w: %s is below the %s minimum", ErrInvalidPollInterval, c.Run.PollInterval, MinPollInterval)
	}
	if c.Run.Timeout <= 0 || c.Run.Timeout > MaxRunTimeout {
		return fmt.Errorf("%w: %s (want 0 < timeout <= %s)", ErrInvalidRunTimeout, c.Run.Timeout, MaxRunTimeout)
	}
	if c.Run.Timeout < c.Run.PollInterval {
		return fmt.Errorf("%w: timeout %s is shorter than poll interval %s", ErrInvalidRunTimeout, c.Run.Timeout, c.Run.PollInterval)
	}
	return nil
}
