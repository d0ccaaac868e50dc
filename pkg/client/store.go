package client

import (
	"context"

	"github.com/robertkottelin/equity/internal/models"
)

// Store is the storage backend abstraction: one capability, two
// interchangeable implementations (remote API, local fallback), selected
// once per session instead of branched at every call site.
type Store interface {
	GetAssets(ctx context.Context) ([]models.Asset, error)
	AddAsset(ctx context.Context, in AssetInput) (*models.Asset, error)
	UpdateAsset(ctx context.Context, id string, in AssetInput) (*models.Asset, error)
	DeleteAsset(ctx context.Context, id string) error
}

// RemoteStore backs the Store capability with the authenticated API.
type RemoteStore struct {
	c *Client
}

func (s *RemoteStore) GetAssets(ctx context.Context) ([]models.Asset, error) {
	return s.c.GetAssets(ctx)
}

func (s *RemoteStore) AddAsset(ctx context.Context, in AssetInput) (*models.Asset, error) {
	return s.c.AddAsset(ctx, in)
}

func (s *RemoteStore) UpdateAsset(ctx context.Context, id string, in AssetInput) (*models.Asset, error) {
	return s.c.UpdateAsset(ctx, id, in)
}

func (s *RemoteStore) DeleteAsset(ctx context.Context, id string) error {
	return s.c.DeleteAsset(ctx, id)
}

// fallbackStore serves anonymous sessions. Reads come from the local cache
// when one is configured; writes are allowed only when the owner opted in,
// so unauthenticated edits do not silently become durable.
type fallbackStore struct {
	cache       *LocalStore
	allowWrites bool
}

func (s *fallbackStore) GetAssets(ctx context.Context) ([]models.Asset, error) {
	if s.cache == nil {
		return []models.Asset{}, nil
	}
	return s.cache.GetAssets(ctx)
}

func (s *fallbackStore) AddAsset(ctx context.Context, in AssetInput) (*models.Asset, error) {
	if s.cache == nil || !s.allowWrites {
		return nil, ErrAnonymousWritesDisabled
	}
	return s.cache.AddAsset(ctx, in)
}

func (s *fallbackStore) UpdateAsset(ctx context.Context, id string, in AssetInput) (*models.Asset, error) {
	if s.cache == nil || !s.allowWrites {
		return nil, ErrAnonymousWritesDisabled
	}
	return s.cache.UpdateAsset(ctx, id, in)
}

func (s *fallbackStore) DeleteAsset(ctx context.Context, id string) error {
	if s.cache == nil || !s.allowWrites {
		return ErrAnonymousWritesDisabled
	}
	return s.cache.DeleteAsset(ctx, id)
}
