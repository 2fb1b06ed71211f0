package config

type AppConfig struct {
	Target string
	Ports  string

	// resolved from Ports in the Before hook
	StartPort int
	EndPort   int

	Threads       int
	Timeout       float64
	BannerTimeout float64
	Rate          float64
	Proxy         string

	OutputFile string
	LogDir     string
	ShowClosed bool

	Debug bool
}

var appConfig AppConfig

func GetAppConfig() *AppConfig {
	return &appConfig
}
