package client

import (
	"context"
	"os"
	"sync"
	"time"

	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

const (
	DefaultTokenPath     = "/var/run/secrets/tokens/agentcore-token"
	DefaultRefreshPeriod = 60 * time.Second
)

// FileTokenSource watches a mounted token file and serves the current bearer
// token. Pair it with WithTokenFunc for deployments where the platform
// rotates credentials on disk.
type FileTokenSource struct {
	tokenPath     string
	refreshPeriod time.Duration
	token         string
	mu            sync.RWMutex
	stopCh        chan struct{}
}

// NewFileTokenSource creates a token source. tokenPath may be empty for the
// platform default mount.
func NewFileTokenSource(tokenPath string) *FileTokenSource {
	if tokenPath == "" {
		tokenPath = DefaultTokenPath
	}
	return &FileTokenSource{
		tokenPath:     tokenPath,
		refreshPeriod: DefaultRefreshPeriod,
		stopCh:        make(chan struct{}),
	}
}

// Start loads the token and begins the refresh cycle
func (t *FileTokenSource) Start(ctx context.Context) error {
	if err := t.refresh(); err != nil {
		return apperrors.New(apperrors.ErrCodeAuthFailed, "failed to load initial token", err)
	}

	ticker := time.NewTicker(t.refreshPeriod)
	go func() {
		for {
			select {
			case <-ticker.C:
				// A read failure keeps the last good token
				_ = t.refresh()
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-t.stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresh cycle
func (t *FileTokenSource) Stop() {
	close(t.stopCh)
}

func (t *FileTokenSource) refresh() error {
	data, err := os.ReadFile(t.tokenPath)
	if err != nil {
		// A missing token file is normal in local development
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	t.mu.Lock()
	t.token = string(data)
	t.mu.Unlock()

	return nil
}

// Token returns the current token, empty when none is mounted
func (t *FileTokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}
