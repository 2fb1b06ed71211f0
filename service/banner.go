package service

import (
	"net"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"port-scanner/config/constant"
)

// ProtocolHint is what to send before reading a banner. Prompt may contain
// the {host} placeholder.
type ProtocolHint struct {
	Name   string
	Prompt string
}

const httpGetPrompt = "GET / HTTP/1.1\r\nHost: {host}\r\n\r\n"

// DefaultProtocolHints lists the ports that only talk after being asked.
// Every other port is read passively.
func DefaultProtocolHints() map[int]ProtocolHint {
	return map[int]ProtocolHint{
		80:   {Name: "http", Prompt: httpGetPrompt},
		443:  {Name: "http", Prompt: httpGetPrompt},
		8080: {Name: "http", Prompt: httpGetPrompt},
		8443: {Name: "http", Prompt: httpGetPrompt},
	}
}

// BannerReader grabs a bounded banner from an already-open connection.
type BannerReader struct {
	Hints      map[int]ProtocolHint
	Timeout    time.Duration
	ReadSize   int
	DisplayLen int
}

func NewBannerReader(timeout time.Duration) *BannerReader {
	if timeout <= 0 {
		timeout = constant.DefaultBannerTimeout
	}
	return &BannerReader{
		Hints:      DefaultProtocolHints(),
		Timeout:    timeout,
		ReadSize:   constant.BannerReadSize,
		DisplayLen: constant.BannerDisplaySize,
	}
}

// Grab never fails: any problem yields the "No banner" sentinel. The caller
// still owns conn and closes it.
func (b *BannerReader) Grab(conn net.Conn, port int, host string) string {
	if conn == nil {
		return constant.NoBanner
	}
	if err := conn.SetDeadline(time.Now().Add(b.Timeout)); err != nil {
		return constant.NoBanner
	}

	if hint, ok := b.Hints[port]; ok && hint.Prompt != "" {
		prompt := strings.ReplaceAll(hint.Prompt, "{host}", host)
		if _, err := conn.Write([]byte(prompt)); err != nil {
			logger.Debugf("banner prompt to %s:%d failed: %v", host, port, err)
			return constant.NoBanner
		}
	}

	buf := make([]byte, b.ReadSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil {
			logger.Debugf("no banner from %s:%d: %v", host, port, err)
		}
		return constant.NoBanner
	}

	banner := SanitizeBanner(buf[:n], b.DisplayLen)
	if banner == "" {
		return constant.NoBanner
	}
	return banner
}

// SanitizeBanner decodes raw bytes permissively, folds line breaks and tabs
// to spaces, drops other non-printable runes, trims, and cuts the result to
// maxLen characters.
func SanitizeBanner(raw []byte, maxLen int) string {
	text := strings.ToValidUTF8(string(raw), string(utf8.RuneError))

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			sb.WriteRune(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}

	out := strings.TrimSpace(sb.String())
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = string([]rune(out)[:maxLen])
	}
	return out
}
