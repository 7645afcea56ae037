package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vendlyapp/selfcheckout/internal/cache"
	"github.com/vendlyapp/selfcheckout/internal/domain"
	"github.com/vendlyapp/selfcheckout/internal/repository"
)

const cacheTimeout = 500 * time.Millisecond

// Adapter loads and stores whole cart registries, keyed by shopper session.
// The repository is the source of truth; the cache is optional.
type Adapter struct {
	repo   repository.RegistryRepository
	cache  cache.RegistryCache
	logger *zap.Logger
}

func NewAdapter(repo repository.RegistryRepository, c cache.RegistryCache, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

// Load hydrates the registry for sessionID. A missing, corrupt or outdated payload
// yields an empty registry; only storage failures are returned.
func (a *Adapter) Load(ctx context.Context, sessionID string) (*domain.Registry, error) {
	if a.cache != nil {
		data, err := a.cache.Get(ctx, sessionID)
		switch {
		case err == nil:
			reg, errDecode := Decode(data)
			if errDecode == nil {
				return reg, nil
			}
			a.logger.Warn("discarding cached cart registry",
				zap.String("session_id", sessionID),
				zap.Error(errDecode),
			)
		case !errors.Is(err, cache.ErrCacheMiss):
			a.logger.Warn("cache get error", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	doc, err := a.repo.GetRegistry(ctx, sessionID)
	if errors.Is(err, repository.ErrRegistryNotFound) {
		return domain.NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart registry: %w", err)
	}

	reg, err := Decode([]byte(doc.Payload))
	if err != nil {
		a.logger.Warn("stored cart registry unreadable, starting empty",
			zap.String("session_id", sessionID),
			zap.Int("version", doc.Version),
			zap.Error(err),
		)
		return domain.NewRegistry(), nil
	}

	// filled before returning so a later Save always overwrites it
	a.fill(sessionID, []byte(doc.Payload))

	return reg, nil
}

// Save writes the complete registry, then writes the same payload through to the cache.
func (a *Adapter) Save(ctx context.Context, sessionID string, reg *domain.Registry) error {
	data, err := Encode(reg)
	if err != nil {
		return err
	}

	doc := &repository.RegistryDocument{
		SessionID: sessionID,
		Version:   SchemaVersion,
		Payload:   string(data),
	}
	if err := a.repo.SaveRegistry(ctx, doc); err != nil {
		return fmt.Errorf("save cart registry: %w", err)
	}

	if !a.fill(sessionID, data) {
		a.invalidate(sessionID)
	}
	return nil
}

func (a *Adapter) fill(sessionID string, payload []byte) bool {
	if a.cache == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := a.cache.Set(ctx, sessionID, payload); err != nil {
		a.logger.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return true
}

// invalidate drops a cached copy that could not be overwritten.
func (a *Adapter) invalidate(sessionID string) {
	if a.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := a.cache.Delete(ctx, sessionID); err != nil {
		a.logger.Warn("cache invalidate error", zap.String("session_id", sessionID), zap.Error(err))
	}
}
