package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"net"
	"port-scanner/config/constant"
	"sort"
	"sync"
	"time"
)

var errNoAddresses = errors.New("no addresses returned")

// Resolver is the subset of *net.Resolver the engine needs.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ScanEngine scans one host at a time with a fixed-size worker pool.
type ScanEngine struct {
	// 引擎状态
	Status constant.EngineStatus

	cfg      ScanConfig
	probe    *ConnectProbe
	banner   *BannerReader
	services *ServiceTable
	resolver Resolver
	limiter  *rate.Limiter

	hostsScanned int
	hostsFailed  int
}

type EngineOption func(*ScanEngine)

// WithDialer replaces the direct dialer, e.g. with a ProxyDialer or a mock.
func WithDialer(d Dialer) EngineOption {
	return func(e *ScanEngine) {
		e.probe = NewConnectProbe(d)
	}
}

// WithResolver sets the resolver used once per host. A nil resolver skips
// local resolution and lets the dialer resolve names itself.
func WithResolver(r Resolver) EngineOption {
	return func(e *ScanEngine) {
		e.resolver = r
	}
}

func WithBannerReader(b *BannerReader) EngineOption {
	return func(e *ScanEngine) {
		e.banner = b
	}
}

func WithServiceTable(t *ServiceTable) EngineOption {
	return func(e *ScanEngine) {
		e.services = t
	}
}

// NewScanEngine validates cfg and wires the default collaborators.
func NewScanEngine(cfg ScanConfig, opts ...EngineOption) (*ScanEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &ScanEngine{
		Status:   constant.EngineInit,
		cfg:      cfg,
		probe:    NewConnectProbe(NewDirectDialer(cfg.ConnectTimeout)),
		banner:   NewBannerReader(cfg.bannerTimeout()),
		services: NewServiceTable(),
		resolver: net.DefaultResolver,
	}
	if cfg.Rate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Config returns a copy of the engine's scan parameters.
func (e *ScanEngine) Config() ScanConfig {
	return e.cfg
}

// Stats returns how many hosts finished and how many failed. Only read it
// after Run has returned.
func (e *ScanEngine) Stats() (scanned, failed int) {
	return e.hostsScanned, e.hostsFailed
}

// Run consumes hosts one by one until hostJobChan closes or ctx is done,
// and forwards every finished HostResult to saverJobChan.
func (e *ScanEngine) Run(ctx context.Context, mainWaitGroup *sync.WaitGroup, hostJobChan <-chan string, saverJobChan chan<- *HostResult) {
	defer func() {
		close(saverJobChan)
		e.Status = constant.EngineStop
		// last, so Status is settled for whoever returns from Wait
		mainWaitGroup.Done()
	}()

	e.Status = constant.EngineRunning
	tag := "[ScanEngine]"
	logger.Debugf("%s worker start.", tag)

	for {
		var host string
		var opened bool
		select {
		case <-ctx.Done():
			logger.Debugf("%s cancelled.", tag)
			return
		case host, opened = <-hostJobChan:
		}
		if !opened {
			break
		}

		result, err := e.ScanHost(ctx, host)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debugf("%s scan of %s interrupted, partial result dropped.", tag, host)
				return
			}
			e.hostsFailed++
			var resErr *ResolutionError
			if errors.As(err, &resErr) {
				logger.Errorf("Hostname %s could not be resolved", host)
			} else {
				logger.Errorf("Error scanning host %s: %v", host, err)
			}
			continue
		}
		e.hostsScanned++

		select {
		case saverJobChan <- result:
		case <-ctx.Done():
			return
		}
	}

	logger.Debugf("%s worker stop.", tag)
}

// ScanHost probes StartPort..EndPort on host and returns the sorted result.
// A resolution failure or local resource exhaustion aborts the host; so does
// ctx, in which case the partial result is discarded.
func (e *ScanEngine) ScanHost(ctx context.Context, host string) (*HostResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Infof("Scanning host: %s", host)

	address, err := e.resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	hostCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		abortOnce sync.Once
		abortErr  error
	)
	abort := func(err error) {
		abortOnce.Do(func() {
			abortErr = err
			cancel()
		})
	}

	targetChan := make(chan ScanTarget, e.cfg.Concurrency)
	resultChan := make(chan PortResult, e.cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go e.worker(hostCtx, &wg, host, targetChan, resultChan, abort)
	}
	go e.feedTargets(hostCtx, address, targetChan)
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// this goroutine is the only owner of results
	results := make([]PortResult, 0)
	for r := range resultChan {
		results = append(results, r)
	}

	if abortErr != nil {
		return nil, abortErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	return &HostResult{
		ScanID:         uuid.NewString(),
		Host:           host,
		Address:        address,
		Results:        sortAndDedup(results),
		Duration:       elapsed,
		ScanDurationMs: elapsed.Milliseconds(),
	}, nil
}

func (e *ScanEngine) feedTargets(ctx context.Context, address string, targetChan chan<- ScanTarget) {
	defer close(targetChan)

	for port := e.cfg.StartPort; port <= e.cfg.EndPort; port++ {
		select {
		case targetChan <- ScanTarget{Host: address, Port: port}:
		case <-ctx.Done():
			return
		}
	}
}

func (e *ScanEngine) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	host string,
	targetChan <-chan ScanTarget,
	resultChan chan<- PortResult,
	abort func(error)) {
	defer wg.Done()

	for {
		var target ScanTarget
		var opened bool
		select {
		case <-ctx.Done():
			return
		case target, opened = <-targetChan:
		}
		if !opened {
			return
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return
			}
		}

		result, err := e.scanTarget(ctx, host, target)
		if err != nil {
			abort(err)
			return
		}
		if result == nil {
			continue
		}

		select {
		case resultChan <- *result:
		case <-ctx.Done():
			return
		}
	}
}

// scanTarget runs one probe and, when the port is open, the banner grab on
// the same connection. The connection is closed before returning.
func (e *ScanEngine) scanTarget(ctx context.Context, host string, target ScanTarget) (*PortResult, error) {
	outcome := e.probe.Probe(ctx, target.Host, target.Port, e.cfg.ConnectTimeout)
	if outcome.Fatal() {
		return nil, outcome.Err
	}
	port := outcome.Target.Port

	if outcome.State != StateOpen {
		if ctx.Err() != nil || !e.cfg.RecordClosed {
			return nil, nil
		}
		return &PortResult{
			Port:     port,
			State:    outcome.State,
			RespTime: outcome.RespTime,
		}, nil
	}

	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			logger.Debugf("Error closing connection to %s: %v", outcome.Target.Address(), err)
		}
	}(outcome.Conn)

	// an interrupt cuts the banner read short instead of waiting out the deadline
	stop := context.AfterFunc(ctx, func() {
		_ = outcome.Conn.SetDeadline(time.Now())
	})
	defer stop()

	result := &PortResult{
		Port:         port,
		State:        StateOpen,
		Service:      e.services.Lookup(port),
		ServiceNames: e.services.Names(port),
		Banner:       e.banner.Grab(outcome.Conn, port, host),
		RespTime:     outcome.RespTime,
	}
	logger.Infof("OPEN: %s:%d - %s - %s", host, port, result.Service, e.services.Detect(port))

	return result, nil
}

// resolve maps host to the address every port is dialed on, so a bad name
// is reported once per host instead of once per port.
func (e *ScanEngine) resolve(ctx context.Context, host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidTarget)
	}
	if ip := net.ParseIP(host); ip != nil || e.resolver == nil {
		return host, nil
	}

	addrs, err := e.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ResolutionError{Host: host, Err: err}
	}
	if len(addrs) == 0 {
		return "", &ResolutionError{Host: host, Err: errNoAddresses}
	}

	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

func sortAndDedup(results []PortResult) []PortResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Port < results[j].Port
	})

	out := make([]PortResult, 0, len(results))
	for _, r := range results {
		if len(out) > 0 && out[len(out)-1].Port == r.Port {
			continue
		}
		out = append(out, r)
	}
	return out
}
