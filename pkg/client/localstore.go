package client

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/robertkottelin/equity/internal/models"
	"github.com/robertkottelin/equity/internal/valuation"
)

var (
	// ErrIndexOutOfRange is returned by the index-addressed operations when
	// the index does not fall inside the current list.
	ErrIndexOutOfRange = errors.New("asset index out of range")
	// ErrAssetNotFound is returned by the id-addressed operations.
	ErrAssetNotFound = errors.New("asset not found")
)

// LocalStore is the fallback asset store: a JSON file standing in for the
// browser's local storage. Reads never fail; missing or corrupt data is
// logged and treated as an empty list. Writes replace the whole list
// atomically, so an interrupted save leaves either the old or the new list,
// never a torn one.
type LocalStore struct {
	path string
	log  *logrus.Logger
	mu   sync.Mutex
}

func NewLocalStore(path string, log *logrus.Logger) *LocalStore {
	return &LocalStore{path: path, log: log}
}

func (s *LocalStore) GetAssets(_ context.Context) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *LocalStore) load() []models.Asset {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("read local assets failed: %v", err)
		}
		return []models.Asset{}
	}
	var assets []models.Asset
	if err := json.Unmarshal(b, &assets); err != nil {
		s.log.Warnf("corrupt local asset data, starting empty: %v", err)
		return []models.Asset{}
	}
	return assets
}

// SaveAssets persists the whole list, creating the parent directory when
// needed.
func (s *LocalStore) SaveAssets(assets []models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(assets)
}

func (s *LocalStore) save(assets []models.Asset) error {
	b, err := json.Marshal(assets)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// AddAsset appends a new asset with a locally generated temporary id and
// freshly computed derived metrics.
func (s *LocalStore) AddAsset(_ context.Context, in AssetInput) (*models.Asset, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a := in.toAsset()
	a.ID = "local-" + uuid.NewString()
	assets := append(s.load(), a)
	if err := s.save(assets); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *LocalStore) UpdateAsset(_ context.Context, id string, in AssetInput) (*models.Asset, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := s.load()
	for i := range assets {
		if assets[i].ID == id {
			a := in.toAsset()
			a.ID = id
			assets[i] = a
			if err := s.save(assets); err != nil {
				return nil, err
			}
			return &a, nil
		}
	}
	return nil, ErrAssetNotFound
}

func (s *LocalStore) DeleteAsset(_ context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := s.load()
	for i := range assets {
		if assets[i].ID == id {
			return s.save(append(assets[:i], assets[i+1:]...))
		}
	}
	return ErrAssetNotFound
}

// UpdateAt replaces the asset at index, preserving list order. An
// out-of-range index fails and leaves storage untouched.
func (s *LocalStore) UpdateAt(index int, a models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := s.load()
	if index < 0 || index >= len(assets) {
		return ErrIndexOutOfRange
	}
	valuation.Apply(&a)
	assets[index] = a
	return s.save(assets)
}

// DeleteAt removes the asset at index, preserving the relative order of the
// rest. An out-of-range index fails and leaves storage untouched.
func (s *LocalStore) DeleteAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := s.load()
	if index < 0 || index >= len(assets) {
		return ErrIndexOutOfRange
	}
	return s.save(append(assets[:index], assets[index+1:]...))
}

// Clear removes the cached list entirely. Used on login, register, logout
// and forced invalidation.
func (s *LocalStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
