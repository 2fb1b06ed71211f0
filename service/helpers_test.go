package service

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startListener serves every accepted connection with handle until the
// test ends and returns the bound port.
func startListener(t *testing.T, handle func(net.Conn)) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	t.Cleanup(func() {
		_ = l.Close()
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	return l.Addr().(*net.TCPAddr).Port
}

// closedPort returns a loopback port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	return port
}

func refusedError() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

// fakeDialer answers from an in-memory port table using net.Pipe, and
// records how many dials were in flight at once.
type fakeDialer struct {
	open    map[int]string // port -> banner the server sends, "" for none
	delay   time.Duration
	dialErr error // returned for every non-open port when set

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	dials       atomic.Int32
	liveConns   atomic.Int32
}

func (d *fakeDialer) DialContext(ctx context.Context, _, address string) (net.Conn, error) {
	d.dials.Add(1)
	cur := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		prev := d.maxInFlight.Load()
		if cur <= prev || d.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	banner, ok := d.open[port]
	if !ok {
		if d.dialErr != nil {
			return nil, d.dialErr
		}
		return nil, refusedError()
	}

	client, server := net.Pipe()
	d.liveConns.Add(1)
	go func() {
		defer server.Close()
		// swallow prompts so hinted ports do not block on the pipe
		go func() { _, _ = io.Copy(io.Discard, server) }()
		if banner != "" {
			_ = server.SetDeadline(time.Now().Add(time.Second))
			_, _ = server.Write([]byte(banner))
		}
	}()

	return &trackedConn{Conn: client, onClose: func() { d.liveConns.Add(-1) }}, nil
}

type trackedConn struct {
	net.Conn
	once    sync.Once
	onClose func()
}

func (c *trackedConn) Close() error {
	c.once.Do(c.onClose)
	return c.Conn.Close()
}

// fakeResolver fails for the listed names and maps everything else to loopback.
type fakeResolver struct {
	bad map[string]bool
}

var errNoSuchHost = errors.New("no such host")

func (r *fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if r.bad[host] {
		return nil, &net.DNSError{Err: errNoSuchHost.Error(), Name: host, IsNotFound: true}
	}
	return []net.IPAddr{{IP: net.ParseIP("::1")}, {IP: net.ParseIP("127.0.0.1")}}, nil
}
