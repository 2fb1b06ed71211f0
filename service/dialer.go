package service

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

//go:generate mockgen -destination=mock_dialer.go -package=service port-scanner/service Dialer

// Dialer opens outbound connections for the probe.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DirectDialer dials straight from this host.
type DirectDialer struct {
	Timeout time.Duration
}

func NewDirectDialer(timeout time.Duration) *DirectDialer {
	return &DirectDialer{Timeout: timeout}
}

func (d *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, network, address)
}

// ProxyDialer tunnels every connect through a SOCKS5 proxy.
// Only socks5:// is supported; raw TCP over an HTTP proxy needs CONNECT.
type ProxyDialer struct {
	ProxyURL *url.URL
	forward  proxy.Dialer
}

func NewProxyDialer(proxyAddr string, timeout time.Duration) (*ProxyDialer, error) {
	u, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address %q: %w", proxyAddr, err)
	}
	if u.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme %q, only socks5 is supported", u.Scheme)
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	forward, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}

	return &ProxyDialer{ProxyURL: u, forward: forward}, nil
}

// socksHostUnreachable is how x/net reports SOCKS5 reply 0x04.
const socksHostUnreachable = "host unreachable"

// DialContext dials through the proxy. A host-unreachable reply for a name
// target means the proxy could not resolve it and comes back as a
// *net.DNSError, the same as a failed local lookup.
func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.dial(ctx, network, address)
	if err == nil {
		return conn, nil
	}

	host, _, splitErr := net.SplitHostPort(address)
	if splitErr == nil && net.ParseIP(host) == nil && strings.Contains(err.Error(), socksHostUnreachable) {
		return nil, &net.DNSError{
			Err:        fmt.Sprintf("proxy %s could not resolve host", d.ProxyURL.Host),
			Name:       host,
			Server:     d.ProxyURL.Host,
			IsNotFound: true,
		}
	}
	return nil, err
}

func (d *ProxyDialer) dial(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := d.forward.Dial(network, address)
		ch <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		// the late connection still has to be released
		go func() {
			if res := <-ch; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		return res.conn, res.err
	}
}
