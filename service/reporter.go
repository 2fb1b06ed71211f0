package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Reporter consumes finished host results.
type Reporter interface {
	Report(ctx context.Context, result *HostResult) error
}

// MultiReporter reports to several reporters, e.g. log + file.
type MultiReporter struct {
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

// Report calls every reporter and joins their errors.
func (m *MultiReporter) Report(ctx context.Context, result *HostResult) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogReporter prints a human readable summary per host through zap.
type LogReporter struct {
	log *zap.SugaredLogger
}

func NewLogReporter(log *zap.SugaredLogger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(_ context.Context, result *HostResult) error {
	open := result.OpenPorts()
	if len(open) == 0 {
		r.log.Infof("No open ports found on %s", result.Host)
		return nil
	}

	r.log.Infof("=== SCAN RESULTS FOR %s ===", result.Host)
	r.log.Infof("Found %d open ports:", len(open))
	for _, p := range open {
		r.log.Infof("Port %d: %s", p.Port, strings.Join(p.ServiceNames, "/"))
		if p.HasBanner() {
			r.log.Infof("  Banner: %s", p.Banner)
		}
	}

	if closed := len(result.Results) - len(open); closed > 0 {
		r.log.Debugf("%d closed or filtered ports recorded on %s", closed, result.Host)
	}
	r.log.Debugf("Host %s (scan %s) took %dms", result.Host, result.ScanID, result.ScanDurationMs)
	return nil
}

// FileReporter writes one line per recorded port:
//
//	host, tcp, port, state, service, banner
type FileReporter struct {
	path   string
	mu     sync.Mutex
	fp     *os.File
	writer *bufio.Writer
}

// NewFileReporter truncates or creates path.
func NewFileReporter(path string) (*FileReporter, error) {
	fp, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("cannot open output file %s: %w", path, err)
	}
	return &FileReporter{path: path, fp: fp, writer: bufio.NewWriter(fp)}, nil
}

func (r *FileReporter) Path() string {
	return r.path
}

func (r *FileReporter) Report(_ context.Context, result *HostResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range result.Results {
		service := strings.Join(p.ServiceNames, "/")
		banner := p.Banner
		if p.State != StateOpen {
			service, banner = "", ""
		}
		line := fmt.Sprintf("%s, %s, %d, %s, %s, %s\n", result.Host, "tcp", p.Port, p.State, service, banner)
		if _, err := r.writer.WriteString(line); err != nil {
			return fmt.Errorf("write %s: %w", r.path, err)
		}
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", r.path, err)
	}
	return nil
}

func (r *FileReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Flush(); err != nil {
		_ = r.fp.Close()
		return err
	}
	return r.fp.Close()
}
