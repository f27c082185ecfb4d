// Package stagelock keeps two invocations of the same stage from writing one
// output tree at the same time.
package stagelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"signprep/internal/config"
	"signprep/internal/services"
)

// ErrLocked is returned when another process holds the stage lock.
var ErrLocked = errors.New("stage already running")

// Lock is a held stage lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock for stage without blocking.
func Acquire(cfg *config.Config, stage string) (*Lock, error) {
	path := cfg.LockPath(stage)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	l := &Lock{path: path, lock: flock.New(path)}
	ok, err := l.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(ErrLocked, stage, "lock", fmt.Sprintf("another %s run holds %s", stage, path), nil)
	}
	return l, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
