package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/clients"
	"storefront-sync-service/internal/images"
)

var ErrStagedFileNotFound = errors.New("staged file not found")

// StagingArea keeps exchange files uploaded by the ERP until they are
// imported. Files land in the local staging directory and, when a bucket
// is configured, are mirrored under exchange/ so a fresh instance can
// resync from them.
type StagingArea struct {
	local  clients.ObjectStore
	remote clients.ObjectStore
	logger *logrus.Entry
}

// NewStagingArea creates a staging area. Either store may be nil but not both.
func NewStagingArea(local, remote clients.ObjectStore, logger *logrus.Logger) (*StagingArea, error) {
	if local == nil && remote == nil {
		return nil, errors.New("staging area needs a local directory or an object store")
	}
	return &StagingArea{
		local:  local,
		remote: remote,
		logger: logger.WithField("component", "staging_area"),
	}, nil
}

// StagedName flattens an ERP supplied filename into the staged file name
func StagedName(filename string) (string, error) {
	return images.SanitizeName(filename)
}

// Save stores data under the sanitized filename and returns that name
func (s *StagingArea) Save(ctx context.Context, filename string, data []byte) (string, error) {
	name, err := StagedName(filename)
	if err != nil {
		return "", err
	}
	key := clients.ExchangePrefix + name
	contentType := contentTypeFor(name)

	if s.local != nil {
		if _, err := s.local.Upload(ctx, key, data, contentType); err != nil {
			return "", err
		}
	}

	if s.remote != nil {
		if _, err := s.remote.Upload(ctx, key, data, contentType); err != nil {
			if s.local == nil {
				return "", err
			}
			s.logger.WithError(err).WithField("file", name).Warn("failed to mirror staged file to object storage")
		}
	}

	s.logger.WithFields(logrus.Fields{"file": name, "bytes": len(data)}).Info("exchange file staged")
	return name, nil
}

// Load returns a staged file, preferring the local copy
func (s *StagingArea) Load(ctx context.Context, filename string) ([]byte, error) {
	name, err := StagedName(filename)
	if err != nil {
		return nil, err
	}
	key := clients.ExchangePrefix + name

	for _, store := range []clients.ObjectStore{s.local, s.remote} {
		if store == nil {
			continue
		}
		data, err := store.Download(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, clients.ErrObjectNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrStagedFileNotFound)
}

// LocalFeeds lists staged XML files on local disk in import order
func (s *StagingArea) LocalFeeds(ctx context.Context) ([]string, error) {
	return feedNames(ctx, s.local)
}

// StoredFeeds lists XML files mirrored to the object store in import order
func (s *StagingArea) StoredFeeds(ctx context.Context) ([]string, error) {
	return feedNames(ctx, s.remote)
}

// LoadLocal reads a staged file from local disk only
func (s *StagingArea) LoadLocal(ctx context.Context, name string) ([]byte, error) {
	return loadFrom(ctx, s.local, name)
}

// LoadStored reads a staged file from the object store only
func (s *StagingArea) LoadStored(ctx context.Context, name string) ([]byte, error) {
	return loadFrom(ctx, s.remote, name)
}

// HasRemote reports whether staged files are mirrored to an object store
func (s *StagingArea) HasRemote() bool {
	return s.remote != nil
}

func loadFrom(ctx context.Context, store clients.ObjectStore, name string) ([]byte, error) {
	if store == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrStagedFileNotFound)
	}
	data, err := store.Download(ctx, clients.ExchangePrefix+name)
	if errors.Is(err, clients.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrStagedFileNotFound)
	}
	return data, err
}

func feedNames(ctx context.Context, store clients.ObjectStore) ([]string, error) {
	if store == nil {
		return nil, nil
	}
	keys, err := store.List(ctx, clients.ExchangePrefix)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, key := range keys {
		name := strings.TrimPrefix(key, clients.ExchangePrefix)
		if strings.Contains(name, "/") || !strings.EqualFold(path.Ext(name), ".xml") {
			continue
		}
		names = append(names, name)
	}
	SortFeeds(names)
	return names, nil
}

// SortFeeds orders catalog (import*) files before offer packages (offers*)
// so prices always find their products. Other files go last.
func SortFeeds(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := feedRank(names[i]), feedRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
}

func feedRank(name string) int {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "import"):
		return 0
	case strings.HasPrefix(lower, "offers"):
		return 1
	default:
		return 2
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xml":
		return "application/xml"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
