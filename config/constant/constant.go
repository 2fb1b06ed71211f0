package constant

import "time"

type EngineStatus int8

const (
	EngineInit    EngineStatus = 0
	EngineRunning EngineStatus = 1
	EngineStop    EngineStatus = 2
)

// port and concurrency bounds
const (
	MinPort        = 1
	MaxPort        = 65535
	MinConcurrency = 1
	MaxConcurrency = 1000
)

const (
	DefaultPorts         = "1-1000"
	DefaultThreads       = 100
	DefaultTimeout       = 1.0
	DefaultBannerTimeout = 2 * time.Second
)

// banner limits
const (
	BannerReadSize    = 1024
	BannerDisplaySize = 100
	NoBanner          = "No banner"
	UnknownService    = "Unknown"
)

const LogFilePrefix string = "port_scan"
