package extractor

import "time"

type Config struct {
	// Base URL of the extraction backend, e.g. "http://localhost:8000".
	BackendURL string
	// Per-request timeout applied by the transport; zero means no timeout.
	RequestTimeout time.Duration
	// Language tag used to resolve user-visible messages.
	Language string
	// Address the web UI listens on.
	ListenAddr string
	// Minimum interval between progress updates reaching subscribers.
	ProgressUpdateInterval time.Duration
}

var DefaultConfig = Config{
	BackendURL:             "http://localhost:8000",
	RequestTimeout:         0,
	Language:               "en",
	ListenAddr:             "localhost:8080",
	ProgressUpdateInterval: 100 * time.Millisecond,
}
