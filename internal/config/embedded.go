package config

// EmbeddedTMDBKey is injected at build time and used as the default movie/TV
// provider credential when the user has not saved one.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/mediashelf/mediashelf/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string

// Version is set at build time.
var Version = "dev"
