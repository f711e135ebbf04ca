package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/bnema/mindstream-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// SessionRepository writes one TOML file per recorded session.
type SessionRepository struct {
	dir string
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(cfg *viper.Viper) (*SessionRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(SessionsDirKey, filepath.Join(homeDir, ConfigDir, sessionsDir))

	dir := cfg.GetString(SessionsDirKey)
	if dir == "" {
		return nil, errors.New("sessions directory is empty")
	}
	dir, err = normalizePath(dir)
	if err != nil {
		return nil, err
	}

	return &SessionRepository{dir: dir}, nil
}

func (r *SessionRepository) Save(ctx context.Context, session domain.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if session.User == "" {
		return "", domain.ErrEmptyUser
	}

	data, err := toml.Marshal(toSessionSchema(session))
	if err != nil {
		return "", fmt.Errorf("encode session file: %w", err)
	}

	path := filepath.Join(r.dir, sessionFileName(session.User, session.SessionNumber))
	if err := writeFileAtomic(path, data, sessionFileMode); err != nil {
		return "", fmt.Errorf("write session file: %w", err)
	}

	return path, nil
}

// Load reads a session file written by Save.
func (r *SessionRepository) Load(ctx context.Context, path string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read session file: %w", err)
	}

	var file sessionSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.Session{}, fmt.Errorf("decode session file: %w", err)
	}
	if err := validateVersion("session", file.Version, currentSessionSchemaVersion); err != nil {
		return domain.Session{}, err
	}

	return fromSessionSchema(file), nil
}

func sessionFileName(user string, number int) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, user)

	return fmt.Sprintf("%s_%d.toml", safe, number)
}

func toSessionSchema(session domain.Session) sessionSchema {
	data := make([]taggedRecordSchema, 0, len(session.Data))
	for _, record := range session.Data {
		data = append(data, taggedRecordSchema{
			Time:   record.Elapsed.Seconds(),
			Label:  record.Label,
			Values: record.Values,
		})
	}

	return sessionSchema{
		Version:       currentSessionSchemaVersion,
		ID:            session.ID,
		StartTime:     formatTime(session.StartTime),
		User:          session.User,
		SessionNumber: session.SessionNumber,
		Data:          data,
	}
}

func fromSessionSchema(file sessionSchema) domain.Session {
	var data []domain.TaggedRecord
	for _, record := range file.Data {
		data = append(data, domain.TaggedRecord{
			Elapsed: time.Duration(record.Time * float64(time.Second)),
			Label:   record.Label,
			Values:  record.Values,
		})
	}

	return domain.Session{
		ID:            file.ID,
		StartTime:     parseTime(file.StartTime),
		User:          file.User,
		SessionNumber: file.SessionNumber,
		Data:          data,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339Nano)
}
