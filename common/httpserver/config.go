// common/httpserver/config.go

package httpserver

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string        // listen address, e.g. ":8095"
	ReadTimeout     time.Duration // max time to read a request
	WriteTimeout    time.Duration // max time to write a response
	IdleTimeout     time.Duration // max keep-alive idle time
	ShutdownTimeout time.Duration // graceful shutdown timeout
	MetricsPath     string        // /metrics
	HealthzPath     string        // /healthz
	ReadyzPath      string        // /readyz
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.HealthzPath == "" {
		c.HealthzPath = "/healthz"
	}
	if c.ReadyzPath == "" {
		c.ReadyzPath = "/readyz"
	}
}

func (c Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("httpserver: Addr is required")
	}
	for _, p := range []string{c.MetricsPath, c.HealthzPath, c.ReadyzPath} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("httpserver: path %q must start with '/'", p)
		}
	}
	return nil
}
