// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cvprac

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol constants for controller connections
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// Default ports per protocol
const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
)

// urlPrefixPath is the base path of the controller's management API
const urlPrefixPath = "/web"

// NodeEndpoint is one controller node reachable at host:port
type NodeEndpoint struct {
	Host   string
	Scheme string
	Port   int
}

// URLPrefix returns the base URL for API paths on this node,
// e.g. https://cvp1:443/web
func (n NodeEndpoint) URLPrefix() string {
	return fmt.Sprintf("%s://%s%s", n.Scheme, n.hostPort(), urlPrefixPath)
}

// String returns host:port
func (n NodeEndpoint) String() string {
	return n.hostPort()
}

func (n NodeEndpoint) hostPort() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// resolvePort derives the port from the protocol when port is 0 (auto)
func resolvePort(protocol string, port int) (int, error) {
	if port != 0 {
		if port < 1 || port > 65535 {
			return 0, fmt.Errorf("invalid port: %d (must be 1-65535)", port)
		}
		return port, nil
	}
	switch protocol {
	case ProtocolHTTPS:
		return DefaultHTTPSPort, nil
	case ProtocolHTTP:
		return DefaultHTTPPort, nil
	default:
		return 0, fmt.Errorf("no default port for protocol %q: port must be set explicitly", protocol)
	}
}

// nodePool is the ordered, cyclic list of controller nodes
//
// The cursor always indexes a real endpoint. bound is the endpoint backing
// the current session, or -1 when none is bound.
type nodePool struct {
	nodes  []NodeEndpoint
	cursor int
	bound  int
}

// newNodePool builds endpoints for hosts using a common scheme and port
func newNodePool(hosts []string, scheme string, port int) (*nodePool, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("nodes cannot be empty")
	}
	nodes := make([]NodeEndpoint, 0, len(hosts))
	for i, host := range hosts {
		host = strings.TrimSpace(host)
		if host == "" {
			return nil, fmt.Errorf("node cannot be empty (at index %d)", i)
		}
		nodes = append(nodes, NodeEndpoint{Host: host, Scheme: scheme, Port: port})
	}
	// cursor starts on the last node so the first next() yields nodes[0]
	return &nodePool{nodes: nodes, cursor: len(nodes) - 1, bound: -1}, nil
}

// count returns the number of nodes
func (p *nodePool) count() int {
	return len(p.nodes)
}

// next advances the cursor and returns the endpoint it lands on
func (p *nodePool) next() NodeEndpoint {
	p.cursor = (p.cursor + 1) % len(p.nodes)
	return p.nodes[p.cursor]
}

// current returns the endpoint under the cursor
func (p *nodePool) current() NodeEndpoint {
	return p.nodes[p.cursor]
}

// bind records that the endpoint under the cursor backs the session
func (p *nodePool) bind() {
	p.bound = p.cursor
}

// unbind clears the bound endpoint
func (p *nodePool) unbind() {
	p.bound = -1
}

// boundNode returns the endpoint backing the session
func (p *nodePool) boundNode() (NodeEndpoint, bool) {
	if p.bound < 0 {
		return NodeEndpoint{}, false
	}
	return p.nodes[p.bound], true
}

// all returns a copy of the endpoints
func (p *nodePool) all() []NodeEndpoint {
	out := make([]NodeEndpoint, len(p.nodes))
	copy(out, p.nodes)
	return out
}
