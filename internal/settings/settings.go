// Package settings persists the two values studychat needs to talk to the
// chat provider: the provider API key and the student level.
//
// Both values are overwritten together on every save. There is no history.
// Backends are selected by the scheme of the store address:
//
//	redis://host:6379/0   Redis (keys "apiKey" and "studentLevel")
//	sqlite:///path/to.db  single-row SQLite table
//	memory://             process-local, lost on restart
package settings

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Level is a coarse proficiency tier passed through to the provider.
type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelAverage   Level = "average"
	LevelWeak      Level = "weak"
)

// DefaultLevel is returned by Get when no level has been stored.
const DefaultLevel = LevelAverage

// Levels returns the known levels, best first.
func Levels() []Level {
	return []Level{LevelExcellent, LevelGood, LevelAverage, LevelWeak}
}

// Known reports whether l is one of the fixed levels. Unknown levels are
// still stored and forwarded verbatim.
func (l Level) Known() bool {
	for _, k := range Levels() {
		if l == k {
			return true
		}
	}
	return false
}

// Settings is the stored pair. An empty APIKey means no key is configured.
type Settings struct {
	APIKey       string
	StudentLevel Level
}

// HasAPIKey reports whether a key is configured.
func (s Settings) HasAPIKey() bool { return s.APIKey != "" }

// withDefaults fills in the default level. A stored empty level counts as unset.
func (s Settings) withDefaults() Settings {
	if s.StudentLevel == "" {
		s.StudentLevel = DefaultLevel
	}
	return s
}

// Store is a settings backend. Implementations must be safe for concurrent use.
type Store interface {
	// Save overwrites both values.
	Save(ctx context.Context, s Settings) error
	// Get returns the current values with the default level applied.
	Get(ctx context.Context) (Settings, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store at addr. The scheme picks the backend.
func Open(addr string) (Store, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse store address: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		st, err := OpenRedis(addr)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		path := u.Path
		if u.Host != "" {
			// sqlite://relative/path.db
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("sqlite store address %q has no path", addr)
		}
		st, err := OpenSQL(path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// Backend returns a short name for the backend at addr, for logs and /health.
// Credentials in the address are never included.
func Backend(addr string) string {
	u, err := url.Parse(addr)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return strings.ToLower(u.Scheme)
}
