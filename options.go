// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client configuration options using the functional options pattern

// WithLogger configures a custom logger for the client
//
// By default, the client uses NoOpLogger which discards all log messages.
// Use NewLogger to build a logger for one of the standard sinks.
//
// Request bodies logged at Debug level are redacted (passwords, tokens).
//
// Example:
//
//	logger, _ := cvprac.NewLogger(cvprac.SinkStdout(), "INFO")
//	client := cvprac.NewClient(cvprac.WithLogger(logger))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrettyPrintLogs enables/disables JSON pretty printing in debug logs
func WithPrettyPrintLogs(enabled bool) func(*Client) {
	return func(c *Client) {
		c.prettyPrintLogs = enabled
	}
}

// WithTransport replaces the HTTP transport used for every session
//
// The transport is shared by all sessions the client creates, so connection
// pooling and TLS settings are those of rt. ConnectTimeout and the TLS
// connect options are not applied to a custom transport.
func WithTransport(rt http.RoundTripper) func(*Client) {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithRateLimit paces HTTP calls (including logins) to rps per second with
// the given burst. Waiting honours the caller's context.
//
// Example:
//
//	client := cvprac.NewClient(cvprac.WithRateLimit(5, 10))
func WithRateLimit(rps float64, burst int) func(*Client) {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// RetriesPerNode sets the per-node budget for Timeout and SessionLoggedOut
// recovery (default: 3)
func RetriesPerNode(retries int) func(*Client) {
	return func(c *Client) {
		c.MaxRetriesPerNode = retries
	}
}

// BackoffMinDelay sets the minimum delay before retrying a timed-out call on the same node (default: 500ms)
func BackoffMinDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMinDelay = duration
	}
}

// BackoffMaxDelay sets the maximum retry delay (default: 5s)
func BackoffMaxDelay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.BackoffMaxDelay = duration
	}
}

// BackoffDelayFactor sets the backoff multiplication factor (default: 2.0)
func BackoffDelayFactor(factor float64) func(*Client) {
	return func(c *Client) {
		c.BackoffDelayFactor = factor
	}
}

// Connection options, passed to Connect

// ConnectParams holds the per-connection settings
type ConnectParams struct {
	// Protocol is http or https (default: https)
	Protocol string

	// Port of every node; 0 derives it from Protocol (80/443)
	Port int

	// ConnectTimeout bounds TCP connect and TLS handshake (default: 10s)
	ConnectTimeout time.Duration

	// RequestTimeout is the default read timeout per call (default: 30s)
	RequestTimeout time.Duration

	// VerifyCertificate enables TLS certificate verification (default: false)
	VerifyCertificate bool

	// CertificatePath is an optional PEM CA bundle used when verifying
	CertificatePath string

	// SaaS routes login through the token path
	SaaS bool

	// APIToken selects token authentication and skips password login
	APIToken string
}

// Protocol sets http or https (default: https)
func Protocol(protocol string) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.Protocol = protocol
	}
}

// Port sets the controller port (default: derived from the protocol)
func Port(port int) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.Port = port
	}
}

// ConnectTimeout sets the connect timeout (default: 10s)
func ConnectTimeout(duration time.Duration) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.ConnectTimeout = duration
	}
}

// RequestTimeout sets the default read timeout per call (default: 30s)
func RequestTimeout(duration time.Duration) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.RequestTimeout = duration
	}
}

// VerifyCertificate enables or disables TLS certificate verification (default: false)
//
// WARNING: With verification disabled the connection is open to
// Man-in-the-Middle attacks.
func VerifyCertificate(verify bool) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.VerifyCertificate = verify
	}
}

// CertificatePath sets a PEM CA bundle used to verify the controller certificate
// and enables verification
func CertificatePath(path string) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.CertificatePath = path
		if path != "" {
			p.VerifyCertificate = true
		}
	}
}

// SaaS marks the controller as a SaaS deployment; an APIToken is required
func SaaS(enabled bool) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.SaaS = enabled
	}
}

// APIToken selects token authentication; username and password are ignored
func APIToken(token string) func(*ConnectParams) {
	return func(p *ConnectParams) {
		p.APIToken = token
	}
}
