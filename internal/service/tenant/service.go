// Package tenant resolves the business a request is scoped to.
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

const defaultCacheTTL = 5 * time.Minute

type Service struct {
	repo   repository.BusinessRepository
	cache  *cache.Cache
	logger *logger.Logger
}

// NewService caches resolved businesses for ttl. A zero ttl uses the
// default; a negative ttl disables caching.
func NewService(repo repository.BusinessRepository, ttl time.Duration, logger *logger.Logger) *Service {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	s := &Service{repo: repo, logger: logger}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Resolve looks a business up by id or slug.
func (s *Service) Resolve(ctx context.Context, idOrSlug string) (*model.Business, error) {
	key := strings.ToLower(strings.TrimSpace(idOrSlug))
	if key == "" {
		return nil, apperrors.NewValidation("business is required", nil)
	}

	if s.cache != nil {
		if cached, found := s.cache.Get(key); found {
			b := cached.(model.Business)
			return &b, nil
		}
	}

	var (
		business *model.Business
		err      error
	)
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		business, err = s.repo.Get(ctx, id)
	} else {
		business, err = s.repo.GetBySlug(ctx, key)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("business", err)
		}
		s.logger.Error(err, "Failed to resolve business", "business", key)
		return nil, apperrors.NewInternal(err)
	}

	if _, err := business.Location(); err != nil {
		s.logger.Error(err, "Business has an invalid timezone", "business_id", business.ID.String())
		return nil, apperrors.NewInternal(err)
	}

	if s.cache != nil {
		s.cache.Set(key, *business, cache.DefaultExpiration)
	}
	return business, nil
}

// Invalidate drops a cached entry so the next Resolve reads the store.
func (s *Service) Invalidate(idOrSlug string) {
	if s.cache != nil {
		s.cache.Delete(strings.ToLower(strings.TrimSpace(idOrSlug)))
	}
}
