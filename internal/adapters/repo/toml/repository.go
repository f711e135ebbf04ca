package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/bnema/mindstream-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	ProfilePathKey  = "storage.profile_path"
	SessionsDirKey  = "storage.sessions_dir"
	ConfigDir       = ".mindstream"
	profileFile     = "profile.toml"
	sessionsDir     = "sessions"
	profileFileMode = 0o600
	sessionFileMode = 0o644
	storageDirMode  = 0o700
)

type ProfileRepository struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(cfg *viper.Viper) (*ProfileRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(ProfilePathKey, filepath.Join(homeDir, ConfigDir, profileFile))

	path := cfg.GetString(ProfilePathKey)
	if path == "" {
		return nil, errors.New("profile path is empty")
	}
	path, err = normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &ProfileRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *ProfileRepository) Get(ctx context.Context) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Profile{}, domain.ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("read profile file: %w", err)
	}

	var file profileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.Profile{}, fmt.Errorf("decode profile file: %w", err)
	}
	if err := validateVersion("profile", file.Version, currentProfileSchemaVersion); err != nil {
		return domain.Profile{}, err
	}
	if file.Name == "" {
		return domain.Profile{}, domain.ErrProfileNotFound
	}

	return domain.Profile{Name: file.Name, SessionCount: file.SessionCount}, nil
}

func (r *ProfileRepository) Save(ctx context.Context, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile.Name == "" {
		return domain.ErrEmptyUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := toml.Marshal(profileSchema{
		Version:      currentProfileSchemaVersion,
		Name:         profile.Name,
		SessionCount: profile.SessionCount,
	})
	if err != nil {
		return fmt.Errorf("encode profile file: %w", err)
	}

	if err := writeFileAtomic(r.path, data, profileFileMode); err != nil {
		return fmt.Errorf("write profile file: %w", err)
	}
	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

// writeFileAtomic replaces path through a temp file in the same directory.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), storageDirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Chmod(mode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	cleanup = false
	return nil
}
