package models

// Config represents the application configuration
type Config struct {
	ServerURL         string  `json:"serverUrl"`
	DownloadDir       string  `json:"downloadDir"`
	DownloadMaxSizeGB float64 `json:"downloadMaxSizeGb"`
	MpvPath           string  `json:"mpvPath"`
	ControlEnabled    bool    `json:"controlEnabled"`
	ControlPort       int     `json:"controlPort"`
	SizeDecimals      int     `json:"sizeDecimals"`
	LogLevel          string  `json:"logLevel"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:         "http://localhost:5000",
		DownloadDir:       "",
		DownloadMaxSizeGB: 0,
		MpvPath:           "mpv",
		ControlEnabled:    false,
		ControlPort:       9797,
		SizeDecimals:      2,
		LogLevel:          "info",
	}
}
