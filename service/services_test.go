package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleServices = `# /etc/services sample
ftp		21/tcp
ssh		22/tcp				# SSH Remote Login Protocol
domain		53/tcp
domain		53/udp
http		80/tcp		www		# WorldWideWeb HTTP
http-alt	8080/tcp	webcache
sunrpc		111/udp		portmapper
broken		notaport/tcp
`

func writeServices(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "services")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestServiceTable_Lookup(t *testing.T) {
	table := NewServiceTable()

	tests := []struct {
		port int
		want string
	}{
		{21, "FTP"}, {22, "SSH"}, {23, "Telnet"}, {25, "SMTP"}, {53, "DNS"},
		{80, "HTTP"}, {110, "POP3"}, {135, "RPC"}, {139, "NetBIOS"}, {143, "IMAP"},
		{443, "HTTPS"}, {993, "IMAPS"}, {995, "POP3S"}, {1433, "MSSQL"}, {3306, "MySQL"},
		{3389, "RDP"}, {5432, "PostgreSQL"}, {6379, "Redis"}, {27017, "MongoDB"},
		{1, "Unknown"}, {31337, "Unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Lookup(tt.port), "port %d", tt.port)
	}
}

func TestParseServices(t *testing.T) {
	got := parseServices(strings.NewReader(sampleServices))

	assert.Equal(t, map[int]string{
		21:   "ftp",
		22:   "ssh",
		53:   "domain",
		80:   "http",
		8080: "http-alt",
	}, got)
}

func TestServiceTable_ResolveAndNames(t *testing.T) {
	table := &ServiceTable{ServicesFile: writeServices(t, sampleServices)}

	name, ok := table.Resolve(22)
	require.True(t, ok)
	assert.Equal(t, "ssh", name)

	_, ok = table.Resolve(6379)
	assert.False(t, ok)

	tests := []struct {
		name       string
		port       int
		wantNames  []string
		wantDetect string
	}{
		{name: "same name in both", port: 22, wantNames: []string{"ssh"}, wantDetect: "ssh"},
		{name: "different names", port: 53, wantNames: []string{"domain", "DNS"}, wantDetect: "domain"},
		{name: "only system", port: 8080, wantNames: []string{"http-alt"}, wantDetect: "http-alt"},
		{name: "only well-known", port: 6379, wantNames: []string{"Redis"}, wantDetect: "Redis"},
		{name: "neither", port: 40000, wantNames: []string{"Unknown"}, wantDetect: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantNames, table.Names(tt.port))
			assert.Equal(t, tt.wantDetect, table.Detect(tt.port))
		})
	}
}

func TestServiceTable_MissingDatabaseFallsBack(t *testing.T) {
	table := &ServiceTable{ServicesFile: filepath.Join(t.TempDir(), "does-not-exist")}

	_, ok := table.Resolve(80)
	assert.False(t, ok)
	assert.Equal(t, "HTTP", table.Detect(80))
	assert.Equal(t, []string{"HTTP"}, table.Names(80))
}
