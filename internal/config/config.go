// Package config holds the resolved runtime configuration for one peerdrop
// endpoint. Unlike the teacher's XML-backed, hot-reloadable multi-device
// config (internal/config in syncthing proper), this spec names a single
// peer and a fixed set of startup flags, so Options is a plain value type
// built once by cmd/peerdropd from kong-parsed CLI flags — no wrapper, no
// on-disk persistence, no live replace.
package config

import (
	"fmt"
	"time"
)

// Options is the fully resolved configuration for one endpoint, per
// SPEC_FULL.md's CLI flag list (§"AMBIENT STACK" / config).
type Options struct {
	// PeerIP is the remote endpoint's address. Required: this protocol is
	// two fixed peers, not a discovered swarm.
	PeerIP string
	// Port is the TCP port both the listener and the outbound dialer use.
	Port int
	// Share is the local directory being synchronized.
	Share string
	// SockNum is the number of parallel sender/receiver worker connections
	// negotiated by CONT.
	SockNum int
	// ScanInterval is how often the Scanner re-walks Share.
	ScanInterval time.Duration
	// Trace is a comma-separated list of debug facilities to enable, or
	// "" to disable debug logging. See internal/logger.
	Trace string
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint, or "" to disable it.
	MetricsAddr string
}

// PeerAddr is the dial address for the remote endpoint.
func (o Options) PeerAddr() string {
	return fmt.Sprintf("%s:%d", o.PeerIP, o.Port)
}

// ListenAddr is the bind address for this endpoint's own listener.
func (o Options) ListenAddr() string {
	return fmt.Sprintf(":%d", o.Port)
}
