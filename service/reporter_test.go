package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"port-scanner/config/constant"
)

func sampleHostResult() *HostResult {
	return &HostResult{
		ScanID:  "scan-1",
		Host:    "192.168.1.10",
		Address: "192.168.1.10",
		Results: []PortResult{
			{Port: 22, State: StateOpen, Service: "SSH", ServiceNames: []string{"ssh"}, Banner: "SSH-2.0-OpenSSH_9.6"},
			{Port: 23, State: StateClosed},
			{Port: 53, State: StateOpen, Service: "DNS", ServiceNames: []string{"domain", "DNS"}, Banner: "No banner"},
		},
	}
}

func TestLogReporter_Report(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reporter := NewLogReporter(zap.New(core).Sugar())

	require.NoError(t, reporter.Report(context.Background(), sampleHostResult()))

	var lines []string
	for _, entry := range logs.All() {
		lines = append(lines, entry.Message)
	}
	assert.Equal(t, []string{
		"=== SCAN RESULTS FOR 192.168.1.10 ===",
		"Found 2 open ports:",
		"Port 22: ssh",
		"  Banner: SSH-2.0-OpenSSH_9.6",
		"Port 53: domain/DNS",
	}, lines)
}

func TestLogReporter_NoOpenPorts(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	reporter := NewLogReporter(zap.New(core).Sugar())

	result := &HostResult{Host: "10.0.0.1", Results: []PortResult{{Port: 1, State: StateFiltered}}}
	require.NoError(t, reporter.Report(context.Background(), result))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "No open ports found on 10.0.0.1", logs.All()[0].Message)
}

func TestFileReporter_Report(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	reporter, err := NewFileReporter(path)
	require.NoError(t, err)
	assert.Equal(t, path, reporter.Path())

	require.NoError(t, reporter.Report(context.Background(), sampleHostResult()))
	require.NoError(t, reporter.Report(context.Background(), &HostResult{Host: "10.0.0.1"}))
	require.NoError(t, reporter.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"192.168.1.10, tcp, 22, open, ssh, SSH-2.0-OpenSSH_9.6\n"+
			"192.168.1.10, tcp, 23, closed, , \n"+
			"192.168.1.10, tcp, 53, open, domain/DNS, No banner\n",
		string(data))
}

func TestFileReporter_TruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0o644))

	reporter, err := NewFileReporter(path)
	require.NoError(t, err)
	require.NoError(t, reporter.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestNewFileReporter_BadPath(t *testing.T) {
	_, err := NewFileReporter(filepath.Join(t.TempDir(), "missing", "out.txt"))
	assert.ErrorContains(t, err, "cannot open output file")
}

type recordingReporter struct {
	mu    sync.Mutex
	hosts []string
	err   error
}

func (r *recordingReporter) Report(_ context.Context, result *HostResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts = append(r.hosts, result.Host)
	return r.err
}

func TestMultiReporter_JoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	first := &recordingReporter{err: errA}
	second := &recordingReporter{}

	err := NewMultiReporter(first, second).Report(context.Background(), &HostResult{Host: "h"})
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, []string{"h"}, first.hosts)
	assert.Equal(t, []string{"h"}, second.hosts, "a failing reporter does not stop the others")
}

func TestSaverEngine_Run(t *testing.T) {
	saverJobChan := make(chan *HostResult, 3)
	reporter := &recordingReporter{}

	var wg sync.WaitGroup
	saver := NewSaverEngine(&wg, saverJobChan, reporter)

	saverJobChan <- sampleHostResult()
	saverJobChan <- &HostResult{Host: "10.0.0.1"}
	close(saverJobChan)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, constant.EngineInit, saver.Status)

	wg.Add(1)
	go saver.Run(ctx)
	wg.Wait()

	assert.Equal(t, constant.EngineStop, saver.Status)
	assert.Equal(t, []string{"192.168.1.10", "10.0.0.1"}, reporter.hosts, "queued results survive an interrupt")
	hosts, open := saver.Totals()
	assert.Equal(t, 2, hosts)
	assert.Equal(t, 2, open)
}

func TestSaverEngine_ReporterErrorIsLogged(t *testing.T) {
	saverJobChan := make(chan *HostResult, 1)
	reporter := &recordingReporter{err: errors.New("disk full")}

	var wg sync.WaitGroup
	saver := NewSaverEngine(&wg, saverJobChan, reporter)
	saverJobChan <- &HostResult{Host: "h"}
	close(saverJobChan)

	wg.Add(1)
	saver.Run(context.Background())

	hosts, _ := saver.Totals()
	assert.Equal(t, 1, hosts)
}
