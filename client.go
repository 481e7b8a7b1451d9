// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default client configuration values
const (
	DefaultMaxRetriesPerNode  = 3
	DefaultBackoffMinDelay    = 500 * time.Millisecond
	DefaultBackoffMaxDelay    = 5 * time.Second
	DefaultBackoffDelayFactor = 2
	DefaultConnectTimeout     = 10 * time.Second
	DefaultRequestTimeout     = 30 * time.Second
	DefaultProtocol           = ProtocolHTTPS
	DefaultPrettyPrintLogs    = false
)

// Security limits for JSON processing and logging
const (
	MaxJSONSizeForLogging = 1 * 1024 * 1024 // 1MB limit to prevent ReDoS attacks
	MaxSensitiveFields    = 1000            // Max redaction operations to prevent DoS
	MaxBodyLogLength      = 2048            // Request bodies are truncated to this in debug logs
)

// Logging message constants
const (
	JSONTooLargeMessage     = "[JSON TOO LARGE FOR LOGGING]"
	JSONTooManySensitiveMsg = "[JSON CONTAINS TOO MANY SENSITIVE FIELDS]"
)

// defaultRedactionPatterns contains regex patterns for redacting sensitive data in logs
var defaultRedactionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"password"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"secret"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"token"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"sessionId"\s*:\s*"[^"]*"`),
	regexp.MustCompile(`"auth"\s*:\s*"[^"]*"`),
}

// credentials captured at connect and retained for re-login
type credentials struct {
	username string
	password string
	apiToken string
}

// Client is a connection to a cluster of controller nodes
//
// A Client authenticates once against one node of the cluster and fails over
// to the other nodes transparently. All operations share one session and are
// serialised by a single mutex, so a Client may be shared between goroutines
// but requests never run in parallel.
type Client struct {
	// mu covers the complete request state machine: session, node cursor, version
	mu sync.Mutex

	pool    *nodePool
	creds   credentials
	params  ConnectParams
	session *session

	// Version lookup cache, set at most once
	version    string
	apiVersion float64

	// Retry configuration
	MaxRetriesPerNode  int
	BackoffMinDelay    time.Duration
	BackoffMaxDelay    time.Duration
	BackoffDelayFactor float64

	transport http.RoundTripper
	limiter   *rate.Limiter

	// Logging configuration
	logger            Logger
	prettyPrintLogs   bool
	redactionPatterns []*regexp.Regexp
}

// NewClient creates a new controller client with the specified options
//
// The client holds no session until Connect succeeds.
//
// Example:
//
//	logger, _ := cvprac.NewLogger(cvprac.SinkStdout(), "INFO")
//	client := cvprac.NewClient(cvprac.WithLogger(logger))
//	defer client.Close()
//
//	err := client.Connect(ctx, []string{"cvp1", "cvp2", "cvp3"}, "admin", "secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info, err := client.GetCvpInfo(ctx)
func NewClient(opts ...func(*Client)) *Client {
	client := &Client{
		MaxRetriesPerNode:  DefaultMaxRetriesPerNode,
		BackoffMinDelay:    DefaultBackoffMinDelay,
		BackoffMaxDelay:    DefaultBackoffMaxDelay,
		BackoffDelayFactor: DefaultBackoffDelayFactor,
		logger:             &NoOpLogger{},
		prettyPrintLogs:    DefaultPrettyPrintLogs,
		redactionPatterns:  defaultRedactionPatterns,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Connect authenticates against the first node of nodes that accepts the
// credentials and binds the session to it
//
// With the APIToken option username and password are ignored. On failure the
// returned LoginError lists the reason for every node tried, and the client
// holds no session.
//
// Example:
//
//	err := client.Connect(ctx, []string{"cvp1", "cvp2"}, "admin", "secret",
//	    cvprac.Protocol("https"),
//	    cvprac.ConnectTimeout(5*time.Second),
//	    cvprac.RequestTimeout(60*time.Second))
func (c *Client) Connect(ctx context.Context, nodes []string, username, password string, opts ...func(*ConnectParams)) error {
	params := ConnectParams{
		Protocol:       DefaultProtocol,
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&params)
	}

	if err := c.validateConnect(ctx, &params); err != nil {
		return err
	}

	port, err := resolvePort(params.Protocol, params.Port)
	if err != nil {
		return err
	}
	params.Port = port

	pool, err := newNodePool(nodes, params.Protocol, port)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropSession()
	c.pool = pool
	c.params = params
	c.creds = credentials{username: username, password: password, apiToken: params.APIToken}

	if err := c.createSession(ctx, true); err != nil {
		c.logger.Error(ctx, "connect failed",
			"nodes", len(nodes),
			"error", err.Error())
		return err
	}

	node, _ := c.pool.boundNode()
	c.logger.Info(ctx, "connected",
		"node", node.String(),
		"nodes", len(nodes),
		"auth", c.authMode())
	return nil
}

// Logout ends the session on the controller (best effort) and drops it
//
// The client must be reconnected before further calls.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	var err error
	if c.creds.apiToken == "" {
		_, err = c.send(ctx, c.session, http.MethodPost, logoutPath, nil, &Req{}, "")
		if err != nil {
			c.logger.Warn(ctx, "logout request failed",
				"node", c.session.node.String(),
				"error", err.Error())
		}
	}

	c.logger.Info(ctx, "logged out", "node", c.session.node.String())
	c.dropSession()
	return err
}

// Close drops the session and releases idle connections without contacting
// the controller. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropSession()
	return nil
}

// Connected reports whether the client holds a session
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// CurrentNode returns the node backing the session
func (c *Client) CurrentNode() (NodeEndpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.pool == nil {
		return NodeEndpoint{}, false
	}
	return c.pool.boundNode()
}

// Nodes returns the configured nodes in failover order
func (c *Client) Nodes() []NodeEndpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
		return nil
	}
	return c.pool.all()
}

func (c *Client) authMode() string {
	if c.creds.apiToken != "" {
		return "token"
	}
	return "password"
}

// Backoff calculates the delay before retry attempt using exponential backoff with jitter
//
// The formula is: delay = min(minDelay * (factor ^ attempt) + jitter, maxDelay)
// where jitter is a cryptographically secure random value in [0, delay * 0.1].
func (c *Client) Backoff(attempt int) time.Duration {
	delay := float64(c.BackoffMinDelay) * math.Pow(c.BackoffDelayFactor, float64(attempt))

	if math.IsInf(delay, 1) || delay > float64(c.BackoffMaxDelay) {
		delay = float64(c.BackoffMaxDelay)
	}

	jitterMax := int64(delay * 0.1)
	if jitterMax > 0 {
		var jitterBytes [8]byte
		if _, err := rand.Read(jitterBytes[:]); err == nil {
			//nolint:gosec // G115: masked to a positive int64
			jitterVal := int64(binary.BigEndian.Uint64(jitterBytes[:]) & 0x7FFFFFFFFFFFFFFF)
			delay += float64(jitterVal % jitterMax)
		} else {
			timestamp := time.Now().UnixNano()
			delay += float64((timestamp%jitterMax + jitterMax) % jitterMax)
		}
	}

	return time.Duration(delay)
}

// validateConnect validates connection parameters
//
// Validates:
//   - Protocol is http or https, or an explicit port is given
//   - Positive timeouts
//   - SaaS requires an API token
//   - CA bundle exists (if provided)
//   - Retry and backoff parameters
func (c *Client) validateConnect(ctx context.Context, p *ConnectParams) error {
	p.Protocol = strings.ToLower(strings.TrimSpace(p.Protocol))
	if p.Protocol == "" {
		return fmt.Errorf("protocol cannot be empty")
	}
	if p.Protocol != ProtocolHTTP && p.Protocol != ProtocolHTTPS && p.Port == 0 {
		return fmt.Errorf("no default port for protocol %q: port must be set explicitly", p.Protocol)
	}

	if p.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got: %v", p.ConnectTimeout)
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got: %v", p.RequestTimeout)
	}

	if p.SaaS && p.APIToken == "" {
		return fmt.Errorf("SaaS deployments require an API token")
	}

	if c.MaxRetriesPerNode < 1 {
		return fmt.Errorf("retries per node must be at least 1, got: %d", c.MaxRetriesPerNode)
	}
	if c.BackoffMinDelay < 0 {
		return fmt.Errorf("backoff min delay must be non-negative, got: %v", c.BackoffMinDelay)
	}
	if c.BackoffMaxDelay < c.BackoffMinDelay {
		return fmt.Errorf("backoff max delay (%v) must not be less than min delay (%v)",
			c.BackoffMaxDelay, c.BackoffMinDelay)
	}
	if c.BackoffDelayFactor < 1.0 {
		return fmt.Errorf("backoff delay factor must be >= 1.0, got: %f", c.BackoffDelayFactor)
	}

	if p.CertificatePath != "" {
		if _, err := os.Stat(p.CertificatePath); err != nil {
			c.logger.Debug(ctx, "CA bundle validation failed",
				"path", p.CertificatePath,
				"error", err.Error())
			// only the file name, to avoid disclosing paths
			return fmt.Errorf("CA bundle file not found: %s", filepath.Base(p.CertificatePath))
		}
	}

	if p.Protocol == ProtocolHTTPS && !p.VerifyCertificate {
		c.logger.Warn(ctx, "TLS certificate verification disabled",
			"security_risk", "Man-in-the-Middle attacks possible")
	}
	if p.Protocol == ProtocolHTTP {
		c.logger.Warn(ctx, "TLS disabled - connection is not encrypted",
			"security_risk", "Credentials and data transmitted in clear text")
	}

	return nil
}

// prepareJSONForLogging redacts sensitive data and formats JSON for logging
//
// Bodies over 1MB or with more than MaxSensitiveFields sensitive keys are
// replaced by a marker; the result is truncated to MaxBodyLogLength.
func (c *Client) prepareJSONForLogging(ctx context.Context, jsonStr string) string {
	if len(jsonStr) > MaxJSONSizeForLogging {
		return JSONTooLargeMessage
	}

	sensitiveCount := strings.Count(jsonStr, `"password"`) +
		strings.Count(jsonStr, `"secret"`) +
		strings.Count(jsonStr, `"token"`) +
		strings.Count(jsonStr, `"sessionId"`) +
		strings.Count(jsonStr, `"auth"`)

	if sensitiveCount > MaxSensitiveFields {
		c.logger.Warn(ctx, "Too many sensitive fields detected",
			"count", sensitiveCount,
			"max", MaxSensitiveFields)
		return JSONTooManySensitiveMsg
	}

	redacted := c.redactSensitiveData(jsonStr)

	if c.prettyPrintLogs {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(redacted), "", "  "); err == nil {
			redacted = buf.String()
		}
	}

	return truncateBody(redacted, MaxBodyLogLength)
}

// redactSensitiveData replaces sensitive values in JSON with [REDACTED]
func (c *Client) redactSensitiveData(json string) string {
	replacements := []string{
		`"password":"[REDACTED]"`,
		`"secret":"[REDACTED]"`,
		`"token":"[REDACTED]"`,
		`"sessionId":"[REDACTED]"`,
		`"auth":"[REDACTED]"`,
	}

	result := json
	for i, pattern := range c.redactionPatterns {
		if i >= len(replacements) {
			break
		}
		result = pattern.ReplaceAllString(result, replacements[i])
	}

	return result
}
