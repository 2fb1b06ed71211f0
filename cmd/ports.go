package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"port-scanner/config"
	"port-scanner/config/constant"
	"port-scanner/service"
	"strconv"
	"strings"
	"time"
)

var errInvalidPortSpec = errors.New("invalid port specification")

// ParsePortSpec resolves a port spec to an inclusive range:
//   - "1-1000" scans 1..1000
//   - "80,443,22" scans min..max, i.e. 22..443
//   - "22" scans just 22
func ParsePortSpec(spec string) (int, int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, errInvalidPortSpec
	}

	var start, end int
	switch {
	case strings.Contains(spec, "-"):
		bounds := strings.Split(spec, "-")
		if len(bounds) != 2 {
			return 0, 0, fmt.Errorf("%w: %q", errInvalidPortSpec, spec)
		}
		var err error
		if start, err = atoiPort(bounds[0]); err != nil {
			return 0, 0, err
		}
		if end, err = atoiPort(bounds[1]); err != nil {
			return 0, 0, err
		}
	case strings.Contains(spec, ","):
		for i, part := range strings.Split(spec, ",") {
			p, err := atoiPort(part)
			if err != nil {
				return 0, 0, err
			}
			if i == 0 || p < start {
				start = p
			}
			if i == 0 || p > end {
				end = p
			}
		}
	default:
		p, err := atoiPort(spec)
		if err != nil {
			return 0, 0, err
		}
		start, end = p, p
	}

	if start < constant.MinPort || end > constant.MaxPort {
		return 0, 0, fmt.Errorf("port numbers must be between %d and %d", constant.MinPort, constant.MaxPort)
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start port %d is greater than end port %d", errInvalidPortSpec, start, end)
	}
	return start, end, nil
}

func atoiPort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errInvalidPortSpec, strings.TrimSpace(s))
	}
	return p, nil
}

// BuildScanConfig turns the CLI values into a validated ScanConfig.
func BuildScanConfig(c *config.AppConfig) (service.ScanConfig, error) {
	cfg := service.ScanConfig{
		StartPort:      c.StartPort,
		EndPort:        c.EndPort,
		Concurrency:    c.Threads,
		ConnectTimeout: secondsToDuration(c.Timeout),
		BannerTimeout:  secondsToDuration(c.BannerTimeout),
		RecordClosed:   c.ShowClosed,
		Rate:           c.Rate,
	}
	if err := cfg.Validate(); err != nil {
		return service.ScanConfig{}, err
	}
	return cfg, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// RedactProxy hides the userinfo of a proxy URL so it can be logged.
func RedactProxy(proxyAddr string) string {
	if proxyAddr == "" {
		return ""
	}
	u, err := url.Parse(proxyAddr)
	if err != nil {
		return "<unparsable proxy>"
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	return u.String()
}
