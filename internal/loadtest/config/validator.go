package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the configuration after defaults were applied.
//
// Returns nil if valid, or a *ValidationErrors holding every problem found.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateHost(c.Host, errs)

	if c.Users < 1 {
		errs.Add("users", "must be at least 1")
	}
	if c.SpawnRate < 0 {
		errs.Add("spawnRate", "cannot be negative")
	}
	if c.Duration < 0 {
		errs.Add("duration", "cannot be negative")
	}
	if c.WaitTime.Min < 0 {
		errs.Add("waitTime.min", "cannot be negative")
	}
	if c.WaitTime.Max < c.WaitTime.Min {
		errs.Add("waitTime.max", fmt.Sprintf("must be at least waitTime.min (%s)", c.WaitTime.Min))
	}
	if c.Timeout <= 0 {
		errs.Add("timeout", "must be positive")
	}
	if c.Window.Size < 1 {
		errs.Add("window.size", "must be at least 1")
	}
	if c.Live.Interval <= 0 {
		errs.Add("live.interval", "must be positive")
	}
	if c.Report.Dir == "" {
		errs.Add("report.dir", "is required")
	}

	if len(c.Tasks) == 0 {
		errs.Add("tasks", "at least one task is required")
	}
	for i, t := range c.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if !strings.HasPrefix(t.Path, "/") {
			errs.Add(prefix+".path", fmt.Sprintf("must start with '/': %q", t.Path))
		}
		if t.Weight < 1 {
			errs.Add(prefix+".weight", "must be at least 1")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateHost(host string, errs *ValidationErrors) {
	if host == "" {
		errs.Add("host", "is required")
		return
	}

	u, err := url.Parse(host)
	if err != nil {
		errs.Add("host", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("host", "scheme must be http or https")
		return
	}
	if u.Host == "" {
		errs.Add("host", "must include a host name")
	}
}
