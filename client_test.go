// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestConnectValidation tests connection configuration validation
func TestConnectValidation(t *testing.T) {
	tests := []struct {
		name        string
		nodes       []string
		clientOpts  []func(*Client)
		opts        []func(*ConnectParams)
		wantErrMsg  string
		description string
	}{
		{
			name:        "empty nodes",
			nodes:       nil,
			wantErrMsg:  "nodes cannot be empty",
			description: "Empty node list should fail validation",
		},
		{
			name:        "whitespace node",
			nodes:       []string{"cvp1", "  "},
			wantErrMsg:  "node cannot be empty (at index 1)",
			description: "Whitespace-only node should fail validation",
		},
		{
			name:        "empty protocol",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){Protocol(" ")},
			wantErrMsg:  "protocol cannot be empty",
			description: "Empty protocol should fail validation",
		},
		{
			name:        "unknown protocol without port",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){Protocol("ftp")},
			wantErrMsg:  `no default port for protocol "ftp"`,
			description: "Only http and https derive a port",
		},
		{
			name:        "invalid port high",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){Port(65536)},
			wantErrMsg:  "invalid port: 65536 (must be 1-65535)",
			description: "Port > 65535 should fail validation",
		},
		{
			name:        "invalid port negative",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){Port(-1)},
			wantErrMsg:  "invalid port: -1 (must be 1-65535)",
			description: "Negative port should fail validation",
		},
		{
			name:        "zero connect timeout",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){ConnectTimeout(0)},
			wantErrMsg:  "connect timeout must be positive",
			description: "Zero connect timeout should fail validation",
		},
		{
			name:        "negative request timeout",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){RequestTimeout(-1 * time.Second)},
			wantErrMsg:  "request timeout must be positive",
			description: "Negative request timeout should fail validation",
		},
		{
			name:        "saas without token",
			nodes:       []string{"www.arista.io"},
			opts:        []func(*ConnectParams){SaaS(true)},
			wantErrMsg:  "SaaS deployments require an API token",
			description: "SaaS needs token authentication",
		},
		{
			name:        "zero retries",
			nodes:       []string{"cvp1"},
			clientOpts:  []func(*Client){RetriesPerNode(0)},
			wantErrMsg:  "retries per node must be at least 1",
			description: "At least one attempt per node is required",
		},
		{
			name:        "negative backoff min delay",
			nodes:       []string{"cvp1"},
			clientOpts:  []func(*Client){BackoffMinDelay(-1 * time.Second)},
			wantErrMsg:  "backoff min delay must be non-negative",
			description: "Negative backoff min delay should fail validation",
		},
		{
			name:        "max delay less than min delay",
			nodes:       []string{"cvp1"},
			clientOpts:  []func(*Client){BackoffMinDelay(10 * time.Second), BackoffMaxDelay(5 * time.Second)},
			wantErrMsg:  "backoff max delay (5s) must not be less than min delay (10s)",
			description: "Max delay below min delay should fail validation",
		},
		{
			name:        "delay factor below one",
			nodes:       []string{"cvp1"},
			clientOpts:  []func(*Client){BackoffDelayFactor(0.5)},
			wantErrMsg:  "backoff delay factor must be >= 1.0",
			description: "Shrinking backoff should fail validation",
		},
		{
			name:        "missing CA bundle",
			nodes:       []string{"cvp1"},
			opts:        []func(*ConnectParams){CertificatePath("/nonexistent/dir/ca.pem")},
			wantErrMsg:  "CA bundle file not found: ca.pem",
			description: "Missing CA bundle is reported by file name only",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStubTransport()
			c := NewClient(append([]func(*Client){WithTransport(stub)}, tt.clientOpts...)...)

			err := c.Connect(context.Background(), tt.nodes, "admin", "secret", tt.opts...)
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tt.description)
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("%s: error = %q, want containing %q", tt.description, err.Error(), tt.wantErrMsg)
			}
			if strings.Contains(err.Error(), "/nonexistent/dir") {
				t.Errorf("error discloses the CA bundle directory: %q", err.Error())
			}
			if stub.total() != 0 {
				t.Errorf("validation failure must not reach the network, got %d calls", stub.total())
			}
			if c.Connected() {
				t.Error("client should hold no session")
			}
		})
	}
}

// TestConnect_Defaults tests derived connection parameters
func TestConnect_Defaults(t *testing.T) {
	stub := newStubTransport().login("cvp1", "s1")
	c := newTestClient(stub)
	mustConnect(t, c, []string{"cvp1", "cvp2"})

	if c.params.Protocol != ProtocolHTTPS || c.params.Port != DefaultHTTPSPort {
		t.Errorf("protocol/port = %s/%d, want https/443", c.params.Protocol, c.params.Port)
	}
	if c.params.ConnectTimeout != DefaultConnectTimeout || c.params.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("timeouts = %v/%v", c.params.ConnectTimeout, c.params.RequestTimeout)
	}

	nodes := c.Nodes()
	if len(nodes) != 2 || nodes[1].String() != "cvp2:443" {
		t.Errorf("Nodes() = %v", nodes)
	}
	wantBound(t, c, "cvp1")

	logins := stub.callsTo("cvp1", "/web"+loginPath)
	if len(logins) != 1 {
		t.Fatalf("expected 1 login call, got %d", len(logins))
	}
	if logins[0].method != http.MethodPost || logins[0].url != "https://cvp1:443/web/login/authenticate.do" {
		t.Errorf("login = %s %s", logins[0].method, logins[0].url)
	}
	if logins[0].body != `{"userId":"admin","password":"secret"}` {
		t.Errorf("login body = %s", logins[0].body)
	}
}

// TestConnect_HTTPPort tests the http default port
func TestConnect_HTTPPort(t *testing.T) {
	stub := newStubTransport().login("cvp1", "s1")
	c := newTestClient(stub)
	mustConnect(t, c, []string{"cvp1"}, Protocol("HTTP"))

	logins := stub.callsTo("cvp1", "/web"+loginPath)
	if len(logins) != 1 || logins[0].url != "http://cvp1:80/web/login/authenticate.do" {
		t.Errorf("unexpected login calls: %+v", logins)
	}
}

// TestConnect_SkipsFailingNodes tests that connect walks the pool in order
func TestConnect_SkipsFailingNodes(t *testing.T) {
	stub := newStubTransport().
		on("a", "/web"+loginPath, replyErr(errRefused)).
		on("b", "/web"+loginPath, replyStatus(http.StatusOK, `{"errorCode":"112498","errorMessage":"Invalid username or password"}`)).
		login("c", "sc")
	c := newTestClient(stub)
	mustConnect(t, c, []string{"a", "b", "c"})
	wantBound(t, c, "c")
}

// TestConnect_LoginErrorAggregates tests that every node's reason is reported
func TestConnect_LoginErrorAggregates(t *testing.T) {
	stub := newStubTransport().
		on("a", "/web"+loginPath, replyErr(errRefused)).
		on("b", "/web"+loginPath, reply(`{"errorCode":"112498","errorMessage":"Invalid username or password"}`))
	c := newTestClient(stub)

	err := c.Connect(context.Background(), []string{"a", "b"}, "admin", "wrong")
	cvpErr := wantKind(t, err, KindLogin)
	if !errors.Is(err, ErrLogin) {
		t.Error("errors.Is(err, ErrLogin) = false")
	}
	if !strings.Contains(cvpErr.Message, "a:443: ") {
		t.Errorf("message should name node a: %q", cvpErr.Message)
	}
	if !strings.Contains(cvpErr.Message, "b:443: Invalid username or password") {
		t.Errorf("message should carry b's reason: %q", cvpErr.Message)
	}
	if c.Connected() {
		t.Error("client should hold no session")
	}
	if _, err := c.Get(context.Background(), "/x"); KindOf(err) != KindNoSession {
		t.Errorf("expected NoSession after failed connect, got %v", err)
	}
}

// TestConnect_MissingSessionID tests a login reply without session id
func TestConnect_MissingSessionID(t *testing.T) {
	stub := newStubTransport().on("a", "/web"+loginPath, reply(`{"username":"admin"}`))
	c := newTestClient(stub)

	err := c.Connect(context.Background(), []string{"a"}, "admin", "secret")
	cvpErr := wantKind(t, err, KindLogin)
	if !strings.Contains(cvpErr.Message, "no sessionId") {
		t.Errorf("message = %q", cvpErr.Message)
	}
}

// TestConnect_TokenRejected tests a token refused by every node
func TestConnect_TokenRejected(t *testing.T) {
	stub := newStubTransport().
		on("a", "/web"+cvpInfoPath, replyStatus(http.StatusUnauthorized, `{"errorCode":"401","errorMessage":"Unauthorized"}`))
	c := newTestClient(stub)

	err := c.Connect(context.Background(), []string{"a"}, "", "", APIToken("bad"))
	cvpErr := wantKind(t, err, KindLogin)
	if !strings.Contains(cvpErr.Message, "Unauthorized") {
		t.Errorf("message = %q", cvpErr.Message)
	}
	if n := len(stub.callsTo("a", "/web"+loginPath)); n != 0 {
		t.Errorf("token mode must skip password login, got %d calls", n)
	}
}

// TestConnect_SaaSCachesVersion tests that SaaS token login reads the version
func TestConnect_SaaSCachesVersion(t *testing.T) {
	stub := newStubTransport().
		on("www.arista.io", "/web"+cvpInfoPath, reply(`{"version":"cvaas"}`))
	c := newTestClient(stub)
	mustConnect(t, c, []string{"www.arista.io"}, APIToken("tok"), SaaS(true))

	if c.Version() != SaaSVersion {
		t.Errorf("Version() = %q, want cvaas", c.Version())
	}
	if c.APIVersion() != apiVersionTable[0].apiVersion {
		t.Errorf("APIVersion() = %.1f, want newest bucket", c.APIVersion())
	}
}

// TestConnect_Reconnect tests that a new Connect replaces the session
func TestConnect_Reconnect(t *testing.T) {
	stub := newStubTransport().login("a", "s1").login("b", "s2")
	c := newTestClient(stub)
	mustConnect(t, c, []string{"a"})
	mustConnect(t, c, []string{"b"})
	wantBound(t, c, "b")
	if nodes := c.Nodes(); len(nodes) != 1 || nodes[0].Host != "b" {
		t.Errorf("Nodes() = %v", nodes)
	}
}

// TestLogout tests logout in password mode
func TestLogout(t *testing.T) {
	stub := newStubTransport().
		login("a", "s1").
		on("a", "/web"+logoutPath, reply(`{"data":"success"}`))
	c := newTestClient(stub)
	mustConnect(t, c, []string{"a"})

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}
	calls := stub.callsTo("a", "/web"+logoutPath)
	if len(calls) != 1 || calls[0].method != http.MethodPost {
		t.Fatalf("expected one POST to the logout path, got %+v", calls)
	}
	if calls[0].header.Get(SessionHeader) != "s1" {
		t.Errorf("logout should carry the session id")
	}
	if c.Connected() {
		t.Error("client should hold no session after logout")
	}
	if _, ok := c.CurrentNode(); ok {
		t.Error("CurrentNode() should report no node after logout")
	}

	// second logout is a no-op
	if err := c.Logout(context.Background()); err != nil {
		t.Errorf("second Logout() failed: %v", err)
	}
	if n := len(stub.callsTo("a", "/web"+logoutPath)); n != 1 {
		t.Errorf("second logout should not reach the network, got %d calls", n)
	}
}

// TestLogout_Token tests that token sessions are dropped locally
func TestLogout_Token(t *testing.T) {
	stub := newStubTransport().on("a", "/web"+cvpInfoPath, reply(`{"version":"2022.1.0"}`))
	c := newTestClient(stub)
	mustConnect(t, c, []string{"a"}, APIToken("tok"))
	stub.reset()

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}
	if stub.total() != 0 {
		t.Errorf("token logout should not reach the network, got %d calls", stub.total())
	}
	if c.Connected() {
		t.Error("client should hold no session")
	}
}

// TestLogout_Failure tests that a failed logout still drops the session
func TestLogout_Failure(t *testing.T) {
	stub := newStubTransport().
		login("a", "s1").
		on("a", "/web"+logoutPath, replyErr(errRefused))
	c := newTestClient(stub)
	mustConnect(t, c, []string{"a"})

	err := c.Logout(context.Background())
	wantKind(t, err, KindConnection)
	if c.Connected() {
		t.Error("client should hold no session")
	}
}

// TestCloseMultipleTimes tests that Close() can be called multiple times
func TestCloseMultipleTimes(t *testing.T) {
	stub := newStubTransport().login("a", "s1")
	c := newTestClient(stub)

	if err := c.Close(); err != nil {
		t.Errorf("Close() before Connect should not error, got: %v", err)
	}

	mustConnect(t, c, []string{"a"})
	stub.reset()

	for i := 0; i < 2; i++ {
		if err := c.Close(); err != nil {
			t.Errorf("Close() #%d should not error, got: %v", i+1, err)
		}
	}
	if c.Connected() {
		t.Error("client should hold no session after Close")
	}
	if stub.total() != 0 {
		t.Errorf("Close() should not reach the network, got %d calls", stub.total())
	}
}

// TestBackoff tests exponential backoff calculation
func TestBackoff(t *testing.T) {
	client := &Client{
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2.0,
		logger:             &NoOpLogger{},
	}

	tests := []struct {
		name    string
		attempt int
		wantMin time.Duration
		wantMax time.Duration
	}{
		{"attempt 0", 0, 1 * time.Second, 1*time.Second + 100*time.Millisecond},
		{"attempt 1", 1, 2 * time.Second, 2*time.Second + 200*time.Millisecond},
		{"attempt 2", 2, 4 * time.Second, 4*time.Second + 400*time.Millisecond},
		{"attempt 10", 10, 60 * time.Second, 60*time.Second + 6*time.Second},
		{"attempt 1000", 1000, 60 * time.Second, 60*time.Second + 6*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay := client.Backoff(tt.attempt)
			if delay < tt.wantMin || delay > tt.wantMax {
				t.Errorf("Backoff(%d) = %v, want between %v and %v",
					tt.attempt, delay, tt.wantMin, tt.wantMax)
			}
		})
	}
}

// TestBackoffJitter tests that backoff includes random jitter
func TestBackoffJitter(t *testing.T) {
	client := &Client{
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2.0,
		logger:             &NoOpLogger{},
	}

	attempts := 100
	delays := make(map[time.Duration]bool)
	for i := 0; i < attempts; i++ {
		delays[client.Backoff(0)] = true
	}

	// statistical, but very reliable with a 100ms jitter window
	if len(delays) < 10 {
		t.Errorf("Backoff() should include jitter: got %d unique values out of %d attempts",
			len(delays), attempts)
	}
}

// TestBackoffZeroMinDelay tests that a zero min delay disables waiting
func TestBackoffZeroMinDelay(t *testing.T) {
	client := &Client{BackoffDelayFactor: 2.0, logger: &NoOpLogger{}}
	if d := client.Backoff(3); d != 0 {
		t.Errorf("Backoff() = %v, want 0", d)
	}
}

// BenchmarkBackoffCryptoRand benchmarks the backoff calculation with crypto/rand
func BenchmarkBackoffCryptoRand(b *testing.B) {
	client := &Client{
		BackoffMinDelay:    1 * time.Second,
		BackoffMaxDelay:    60 * time.Second,
		BackoffDelayFactor: 2.0,
		logger:             &NoOpLogger{},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = client.Backoff(5)
	}
}

// mockLogger is a mock logger for testing that captures log messages
type mockLogger struct {
	mu         sync.Mutex
	debugCalls []map[string]any
	infoCalls  []map[string]any
	warnCalls  []map[string]any
	errorCalls []map[string]any
}

func logCall(msg string, keysAndValues []any) map[string]any {
	call := map[string]any{"msg": msg}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		call[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return call
}

func (m *mockLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugCalls = append(m.debugCalls, logCall(msg, keysAndValues))
}

func (m *mockLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls = append(m.infoCalls, logCall(msg, keysAndValues))
}

func (m *mockLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnCalls = append(m.warnCalls, logCall(msg, keysAndValues))
}

func (m *mockLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, logCall(msg, keysAndValues))
}

func findLog(calls []map[string]any, msg string) map[string]any {
	for _, call := range calls {
		if call["msg"] == msg {
			return call
		}
	}
	return nil
}

// TestLogging_Lifecycle tests the level of lifecycle, retry and fatal messages
func TestLogging_Lifecycle(t *testing.T) {
	mock := &mockLogger{}
	stub := newStubTransport().
		login("a", "s1").
		login("b", "s2").
		on("a", "/web/x", replyErr(timeoutError{})).
		on("b", "/web/x", reply(`{"errorCode":"1","errorMessage":"bad"}`))
	c := newTestClient(stub, WithLogger(mock))
	mustConnect(t, c, []string{"a", "b"})

	_, err := c.Get(context.Background(), "/x")
	wantKind(t, err, KindAPI)

	if call := findLog(mock.infoCalls, "connected"); call == nil || call["node"] != "a:443" {
		t.Errorf("expected INFO connected on a:443, got %v", mock.infoCalls)
	}
	if findLog(mock.infoCalls, "session rebound") == nil {
		t.Errorf("expected INFO on rebind, got %v", mock.infoCalls)
	}
	if call := findLog(mock.warnCalls, "request timed out, retrying on same node"); call == nil || call["node"] != "a:443" {
		t.Errorf("expected WARN on timeout retry, got %v", mock.warnCalls)
	}
	if findLog(mock.warnCalls, "TLS certificate verification disabled") == nil {
		t.Error("expected WARN about disabled certificate verification")
	}
	call := findLog(mock.errorCalls, "request failed")
	if call == nil {
		t.Fatalf("expected ERROR on fatal failure, got %v", mock.errorCalls)
	}
	if call["kind"] != "ApiError" || call["error"] != "bad" {
		t.Errorf("unexpected fatal log fields: %v", call)
	}
}

// TestLogging_RedactsLoginBody tests that credentials never reach the debug log
func TestLogging_RedactsLoginBody(t *testing.T) {
	mock := &mockLogger{}
	stub := newStubTransport().login("a", "s1")
	c := newTestClient(stub, WithLogger(mock))
	if err := c.Connect(context.Background(), []string{"a"}, "admin", "hunter2"); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	call := findLog(mock.debugCalls, "HTTP request body")
	if call == nil {
		t.Fatal("expected debug log of the login body")
	}
	body, _ := call["body"].(string)
	if strings.Contains(body, "hunter2") {
		t.Errorf("password leaked into debug log: %s", body)
	}
	if !strings.Contains(body, "[REDACTED]") {
		t.Errorf("expected redaction marker: %s", body)
	}
	if findLog(mock.debugCalls, "HTTP request") == nil {
		t.Error("expected debug log of the request URL")
	}
}

// TestSecurity_CredentialProtection tests that errors never carry the password
func TestSecurity_CredentialProtection(t *testing.T) {
	stub := newStubTransport().
		on("a", "/web"+loginPath, reply(`{"errorCode":"112498","errorMessage":"Invalid username or password"}`))
	c := newTestClient(stub)

	err := c.Connect(context.Background(), []string{"a"}, "admin", "SuperSecret123!")
	if err == nil {
		t.Fatal("expected login failure")
	}
	if strings.Contains(err.Error(), "SuperSecret123!") {
		t.Errorf("error message leaks the password: %v", err)
	}
}
