package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// ProbeOutcome is the tri-state result of one connect attempt. Conn is set
// only for StateOpen and then belongs to the caller, who must close it.
type ProbeOutcome struct {
	Target   ScanTarget
	State    PortState
	Conn     net.Conn
	RespTime time.Duration
	// Err is the raw dial error for closed/filtered ports, or a
	// *ResolutionError / ErrResourceExhausted that must stop the host.
	Err error
}

// Fatal reports whether the outcome must abort the whole host scan.
func (o ProbeOutcome) Fatal() bool {
	return errors.Is(o.Err, ErrResolution) || errors.Is(o.Err, ErrResourceExhausted)
}

// ConnectProbe performs full-handshake connect attempts.
type ConnectProbe struct {
	dialer Dialer
}

func NewConnectProbe(dialer Dialer) *ConnectProbe {
	return &ConnectProbe{dialer: dialer}
}

// Probe dials host:port once, bounded by timeout.
func (p *ConnectProbe) Probe(ctx context.Context, host string, port int, timeout time.Duration) ProbeOutcome {
	target := ScanTarget{Host: host, Port: port}
	outcome := ProbeOutcome{Target: target, State: StateFiltered}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", target.Address())
	outcome.RespTime = time.Since(start)

	if err == nil {
		outcome.State = StateOpen
		outcome.Conn = conn
		return outcome
	}

	// parent cancelled: not a port property, report it as-is
	if ctx.Err() != nil {
		outcome.Err = ctx.Err()
		return outcome
	}

	outcome.State, outcome.Err = classifyDialError(host, err)
	return outcome
}

// classifyDialError turns a dial failure into a port state. Refusals are
// closed, everything transient is filtered. Name resolution and local
// resource exhaustion are not port properties and come back as errors the
// engine acts on.
func classifyDialError(host string, err error) (PortState, error) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StateFiltered, &ResolutionError{Host: host, Err: err}
	}

	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ENOBUFS) {
		return StateFiltered, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return StateClosed, err
	}
	// proxies and some platforms only give us text
	if strings.Contains(strings.ToLower(err.Error()), "refused") {
		return StateClosed, err
	}

	return StateFiltered, err
}
