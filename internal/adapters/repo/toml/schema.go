package toml

import "fmt"

const (
	currentProfileSchemaVersion = 1
	currentSessionSchemaVersion = 1
)

func validateVersion(kind string, got, current int) error {
	if got > current {
		return fmt.Errorf("unsupported %s schema version %d (current %d)", kind, got, current)
	}

	return nil
}

type profileSchema struct {
	Version      int    `toml:"version"`
	Name         string `toml:"name"`
	SessionCount int    `toml:"session_count"`
}

type sessionSchema struct {
	Version       int                  `toml:"version"`
	ID            string               `toml:"id"`
	StartTime     string               `toml:"start_time"`
	User          string               `toml:"user"`
	SessionNumber int                  `toml:"session_number"`
	Data          []taggedRecordSchema `toml:"data"`
}

type taggedRecordSchema struct {
	// Time is seconds since the session started.
	Time   float64        `toml:"time"`
	Label  string         `toml:"label"`
	Values map[string]any `toml:"values"`
}
