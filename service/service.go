package service

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"port-scanner/config/constant"
	"port-scanner/logging"
)

var logger = logging.GetSugar()

// PortState is the classification of one connect attempt.
type PortState string

const (
	StateOpen     PortState = "open"
	StateClosed   PortState = "closed"
	StateFiltered PortState = "filtered"
)

func (s PortState) String() string {
	return string(s)
}

// ScanTarget is a single (host, port) pair handed to a worker.
type ScanTarget struct {
	Host string
	Port int
}

// Address returns host:port, bracketing IPv6 literals.
func (t ScanTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// PortResult is the outcome for one port.
// Service, ServiceNames and Banner are only meaningful for open ports.
type PortResult struct {
	Port         int
	State        PortState
	Service      string
	ServiceNames []string
	Banner       string
	RespTime     time.Duration
}

// HasBanner reports whether a real banner was captured.
func (r PortResult) HasBanner() bool {
	return r.Banner != "" && r.Banner != constant.NoBanner
}

// HostResult holds the finished scan of one host, Results sorted by port.
type HostResult struct {
	ScanID         string
	Host           string
	Address        string
	Results        []PortResult
	Duration       time.Duration
	ScanDurationMs int64
}

// OpenPorts returns only the open entries, keeping port order.
func (h *HostResult) OpenPorts() []PortResult {
	open := make([]PortResult, 0, len(h.Results))
	for _, r := range h.Results {
		if r.State == StateOpen {
			open = append(open, r)
		}
	}
	return open
}

// ScanConfig holds the per-host scan parameters.
type ScanConfig struct {
	StartPort      int
	EndPort        int
	Concurrency    int
	ConnectTimeout time.Duration
	// BannerTimeout bounds the banner read; zero means DefaultBannerTimeout.
	BannerTimeout time.Duration
	// RecordClosed keeps closed and filtered ports in HostResult.Results.
	RecordClosed bool
	// Rate caps connect attempts per second, zero disables the limiter.
	Rate float64
}

// Validate re-checks the bounds the CLI already enforced.
func (c ScanConfig) Validate() error {
	if c.StartPort < constant.MinPort || c.StartPort > constant.MaxPort {
		return &ConfigError{Field: "start_port", Reason: fmt.Sprintf("must be between %d and %d, got %d", constant.MinPort, constant.MaxPort, c.StartPort)}
	}
	if c.EndPort < constant.MinPort || c.EndPort > constant.MaxPort {
		return &ConfigError{Field: "end_port", Reason: fmt.Sprintf("must be between %d and %d, got %d", constant.MinPort, constant.MaxPort, c.EndPort)}
	}
	if c.StartPort > c.EndPort {
		return &ConfigError{Field: "start_port", Reason: fmt.Sprintf("%d is greater than end port %d", c.StartPort, c.EndPort)}
	}
	if c.Concurrency < constant.MinConcurrency || c.Concurrency > constant.MaxConcurrency {
		return &ConfigError{Field: "concurrency", Reason: fmt.Sprintf("must be between %d and %d, got %d", constant.MinConcurrency, constant.MaxConcurrency, c.Concurrency)}
	}
	if c.ConnectTimeout <= 0 {
		return &ConfigError{Field: "connect_timeout", Reason: "must be positive"}
	}
	if c.BannerTimeout < 0 {
		return &ConfigError{Field: "banner_timeout", Reason: "must not be negative"}
	}
	if c.Rate < 0 {
		return &ConfigError{Field: "rate", Reason: "must not be negative"}
	}
	return nil
}

func (c ScanConfig) bannerTimeout() time.Duration {
	if c.BannerTimeout <= 0 {
		return constant.DefaultBannerTimeout
	}
	return c.BannerTimeout
}

// PortCount is the number of ports the config covers.
func (c ScanConfig) PortCount() int {
	return c.EndPort - c.StartPort + 1
}
