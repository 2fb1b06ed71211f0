package service

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"port-scanner/config/constant"
)

const systemServicesFile = "/etc/services"

// wellKnownPorts is the static classification shown next to every open port.
var wellKnownPorts = map[int]string{
	21: "FTP", 22: "SSH", 23: "Telnet", 25: "SMTP", 53: "DNS",
	80: "HTTP", 110: "POP3", 135: "RPC", 139: "NetBIOS", 143: "IMAP",
	443: "HTTPS", 993: "IMAPS", 995: "POP3S", 1433: "MSSQL", 3306: "MySQL",
	3389: "RDP", 5432: "PostgreSQL", 6379: "Redis", 27017: "MongoDB",
}

// ServiceTable maps ports to service labels. The system services database
// is read lazily on first use and cached for the life of the table.
type ServiceTable struct {
	// ServicesFile overrides /etc/services, mostly for tests.
	ServicesFile string

	once   sync.Once
	system map[int]string
}

func NewServiceTable() *ServiceTable {
	return &ServiceTable{ServicesFile: systemServicesFile}
}

// Lookup returns the well-known label for port, or "Unknown".
func (t *ServiceTable) Lookup(port int) string {
	if name, ok := wellKnownPorts[port]; ok {
		return name
	}
	return constant.UnknownService
}

// Resolve asks the system services database for the tcp name of port.
func (t *ServiceTable) Resolve(port int) (string, bool) {
	t.once.Do(t.load)
	name, ok := t.system[port]
	return name, ok
}

// Detect is the single display label: the system name when there is one,
// the well-known label otherwise.
func (t *ServiceTable) Detect(port int) string {
	if name, ok := t.Resolve(port); ok {
		return name
	}
	return t.Lookup(port)
}

// Names merges both sources without losing either. The resolved name comes
// first; duplicates are dropped case-insensitively. "Unknown" is only kept
// when nothing else is known.
func (t *ServiceTable) Names(port int) []string {
	names := make([]string, 0, 2)
	if name, ok := t.Resolve(port); ok {
		names = append(names, name)
	}

	label := t.Lookup(port)
	if label == constant.UnknownService && len(names) > 0 {
		return names
	}
	for _, n := range names {
		if strings.EqualFold(n, label) {
			return names
		}
	}
	return append(names, label)
}

func (t *ServiceTable) load() {
	t.system = make(map[int]string)

	path := t.ServicesFile
	if path == "" {
		return
	}
	fp, err := os.Open(path)
	if err != nil {
		logger.Debugf("service database %s unavailable, using built-in table only: %v", path, err)
		return
	}
	defer func(fp *os.File) {
		_ = fp.Close()
	}(fp)

	t.system = parseServices(fp)
	logger.Debugf("loaded %d tcp service names from %s", len(t.system), path)
}

// parseServices reads the services(5) format, tcp entries only:
//
//	http            80/tcp          www     # WorldWideWeb HTTP
func parseServices(r io.Reader) map[int]string {
	out := make(map[int]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		portProto := strings.SplitN(fields[1], "/", 2)
		if len(portProto) != 2 || portProto[1] != "tcp" {
			continue
		}
		port, err := strconv.Atoi(portProto[0])
		if err != nil || port < constant.MinPort || port > constant.MaxPort {
			continue
		}
		// first entry wins, like getservbyport
		if _, seen := out[port]; !seen {
			out[port] = fields[0]
		}
	}
	return out
}
