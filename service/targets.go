package service

import (
	"fmt"
	"net/netip"
	"strings"
)

// hostRange is one entry of a target spec: a single host, or an inclusive
// address range expanded from a CIDR.
type hostRange struct {
	host  string
	first netip.Addr
	last  netip.Addr
}

// HostIterator lazily walks the hosts of a target spec in order. It is not
// safe for concurrent use; Reset restarts it from the first host.
type HostIterator struct {
	ranges []hostRange

	idx     int
	next    netip.Addr
	started bool
}

// Expand parses a target spec: a host name, an IP, a CIDR, or a comma
// separated list of those. Host bits set in a CIDR are ignored.
func Expand(spec string) (*HostIterator, error) {
	it := &HostIterator{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseHostRange(part)
		if err != nil {
			return nil, err
		}
		it.ranges = append(it.ranges, r)
	}
	if len(it.ranges) == 0 {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}
	return it, nil
}

func parseHostRange(part string) (hostRange, error) {
	if !strings.Contains(part, "/") {
		return hostRange{host: part}, nil
	}

	prefix, err := netip.ParsePrefix(part)
	if err != nil {
		return hostRange{}, fmt.Errorf("%w: invalid IP range %q: %v", ErrInvalidTarget, part, err)
	}
	prefix = prefix.Masked()

	first := prefix.Addr()
	last := lastAddr(prefix)

	// network and broadcast are not usable hosts on ordinary IPv4 subnets
	if first.Is4() && prefix.Bits() < 31 {
		first = first.Next()
		last = last.Prev()
	}

	return hostRange{first: first, last: last}, nil
}

// lastAddr sets every host bit of a masked prefix.
func lastAddr(p netip.Prefix) netip.Addr {
	bytes := p.Addr().AsSlice()
	bits := p.Bits()
	for i := range bytes {
		for b := 7; b >= 0; b-- {
			pos := i*8 + (7 - b)
			if pos >= bits {
				bytes[i] |= 1 << uint(b)
			}
		}
	}
	addr, _ := netip.AddrFromSlice(bytes)
	return addr
}

// Next returns the next host, or false when the spec is exhausted.
func (it *HostIterator) Next() (string, bool) {
	for it.idx < len(it.ranges) {
		r := it.ranges[it.idx]

		if r.host != "" {
			it.idx++
			return r.host, true
		}

		if !it.started {
			it.next = r.first
			it.started = true
		}
		cur := it.next
		if !cur.IsValid() || cur.Compare(r.last) > 0 {
			it.idx++
			it.started = false
			continue
		}

		// Next() on the all-ones address is invalid, which ends the range
		it.next = cur.Next()
		return cur.String(), true
	}
	return "", false
}

// Reset rewinds the iterator to the first host.
func (it *HostIterator) Reset() {
	it.idx = 0
	it.started = false
	it.next = netip.Addr{}
}

// Len is the total number of hosts, saturating at the max uint64.
func (it *HostIterator) Len() uint64 {
	var total uint64
	for _, r := range it.ranges {
		var n uint64
		if r.host != "" {
			n = 1
		} else {
			n = rangeSize(r.first, r.last)
		}
		if total+n < total {
			return ^uint64(0)
		}
		total += n
	}
	return total
}

// rangeSize counts addresses in [first, last]; 0 when last < first.
func rangeSize(first, last netip.Addr) uint64 {
	if last.Compare(first) < 0 {
		return 0
	}
	a, b := first.As16(), last.As16()
	// only the low 64 bits matter unless the range is enormous
	for i := 0; i < 8; i++ {
		if a[i] != b[i] {
			return ^uint64(0)
		}
	}
	var lo, hi uint64
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(a[i])
		hi = hi<<8 | uint64(b[i])
	}
	if hi-lo == ^uint64(0) {
		return hi - lo
	}
	return hi - lo + 1
}
