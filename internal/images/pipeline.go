// Package images produces and addresses web derivatives of product images:
// WebP full-size images at upload time and thumbnails in resumable batches.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"storefront-sync-service/internal/clients"
	"storefront-sync-service/internal/models"
)

const (
	FullQuality      = 85
	ThumbnailQuality = 70
	ThumbnailWidth   = 300
	ThumbnailSuffix  = "_thumb"
	DefaultBatchSize = 50

	contentTypeWebP = "image/webp"
	contentTypeGIF  = "image/gif"
)

var ErrInvalidName = errors.New("invalid file name")

var rasterExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// IngestResult describes a stored derivative
type IngestResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Transcoded  bool   `json:"transcoded"`
}

// Pipeline transcodes uploads and maintains thumbnails in the object store
type Pipeline struct {
	store    clients.ObjectStore
	limiter  *rate.Limiter
	maxBatch int
	logger   *logrus.Entry

	mu     sync.Mutex
	failed map[string]struct{}
}

// NewPipeline creates a pipeline. A nil limiter disables pacing. maxBatch
// caps every batch call and is also the default size; <= 0 means
// DefaultBatchSize.
func NewPipeline(store clients.ObjectStore, limiter *rate.Limiter, maxBatch int, logger *logrus.Logger) *Pipeline {
	if maxBatch <= 0 {
		maxBatch = DefaultBatchSize
	}
	return &Pipeline{
		store:    store,
		limiter:  limiter,
		maxBatch: maxBatch,
		logger:   logger.WithField("component", "image_pipeline"),
		failed:   make(map[string]struct{}),
	}
}

// SanitizeName flattens a client supplied path into a single key segment.
// Backslashes count as separators; empty, "." and ".." segments are dropped.
func SanitizeName(name string) (string, error) {
	parts := strings.Split(strings.ReplaceAll(name, `\`, "/"), "/")
	kept := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return strings.Join(kept, "_"), nil
}

// IsImageFile reports whether name has an extension the pipeline ingests
func IsImageFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return rasterExtensions[ext] || ext == ".webp" || ext == ".gif"
}

// WebPName maps raster extensions to .webp; other names are unchanged
func WebPName(name string) string {
	ext := path.Ext(name)
	if rasterExtensions[strings.ToLower(ext)] {
		return strings.TrimSuffix(name, ext) + ".webp"
	}
	return name
}

// ThumbnailName returns <stem>_thumb.webp for a full-size image name
func ThumbnailName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + ThumbnailSuffix + ".webp"
}

func isThumbnail(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ThumbnailSuffix+".webp")
}

// Ingest stores an uploaded image. GIFs are kept byte for byte, other
// rasters are re-encoded as WebP.
func (p *Pipeline) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	name, err := SanitizeName(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == ".gif":
		key := clients.ImagePrefix + name
		url, err := p.store.Upload(ctx, key, data, contentTypeGIF)
		if err != nil {
			return nil, err
		}
		return &IngestResult{Key: key, URL: url, ContentType: contentTypeGIF}, nil

	case rasterExtensions[ext] || ext == ".webp":
		encoded, err := transcode(data, 0, FullQuality)
		if err != nil {
			return nil, fmt.Errorf("failed to transcode %s: %w", name, err)
		}
		key := clients.ImagePrefix + WebPName(name)
		url, err := p.store.Upload(ctx, key, encoded, contentTypeWebP)
		if err != nil {
			return nil, err
		}
		p.logger.WithFields(logrus.Fields{
			"key":       key,
			"src_bytes": len(data),
			"dst_bytes": len(encoded),
		}).Info("image ingested")
		return &IngestResult{Key: key, URL: url, ContentType: contentTypeWebP, Transcoded: true}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported image type %q", ErrInvalidName, ext)
	}
}

// ConvertBatch re-encodes legacy raster objects that have no WebP
// counterpart yet. At most limit objects are processed per call.
func (p *Pipeline) ConvertBatch(ctx context.Context, limit int) (models.BatchResult, error) {
	keys, err := p.store.List(ctx, clients.ImagePrefix)
	if err != nil {
		return models.BatchResult{}, err
	}

	existing := keySet(keys)
	var pending []string
	for _, key := range keys {
		if !rasterExtensions[strings.ToLower(path.Ext(key))] {
			continue
		}
		if existing[WebPName(key)] || p.hasFailed(key) {
			continue
		}
		pending = append(pending, key)
	}

	return p.runBatch(ctx, pending, limit, func(key string) error {
		data, err := p.store.Download(ctx, key)
		if err != nil {
			return err
		}
		encoded, err := transcode(data, 0, FullQuality)
		if err != nil {
			return err
		}
		_, err = p.store.Upload(ctx, WebPName(key), encoded, contentTypeWebP)
		return err
	})
}

// GenerateThumbnails creates <stem>_thumb.webp for WebP objects lacking one.
// Repeated calls converge to Remaining == 0.
func (p *Pipeline) GenerateThumbnails(ctx context.Context, limit int) (models.BatchResult, error) {
	keys, err := p.store.List(ctx, clients.ImagePrefix)
	if err != nil {
		return models.BatchResult{}, err
	}

	existing := keySet(keys)
	var pending []string
	for _, key := range keys {
		if strings.ToLower(path.Ext(key)) != ".webp" || isThumbnail(key) {
			continue
		}
		if existing[ThumbnailName(key)] || p.hasFailed(key) {
			continue
		}
		pending = append(pending, key)
	}

	return p.runBatch(ctx, pending, limit, func(key string) error {
		data, err := p.store.Download(ctx, key)
		if err != nil {
			return err
		}
		encoded, err := transcode(data, ThumbnailWidth, ThumbnailQuality)
		if err != nil {
			return err
		}
		_, err = p.store.Upload(ctx, ThumbnailName(key), encoded, contentTypeWebP)
		return err
	})
}

// ThumbnailKeys lists stored thumbnail keys
func (p *Pipeline) ThumbnailKeys(ctx context.Context) (map[string]bool, error) {
	keys, err := p.store.List(ctx, clients.ImagePrefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, key := range keys {
		if isThumbnail(key) {
			out[key] = true
		}
	}
	return out, nil
}

func (p *Pipeline) runBatch(ctx context.Context, pending []string, limit int, process func(key string) error) (models.BatchResult, error) {
	if limit <= 0 || limit > p.maxBatch {
		limit = p.maxBatch
	}

	var result models.BatchResult
	attempted := 0
	for _, key := range pending {
		if attempted >= limit {
			break
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				break
			}
		}
		attempted++

		if err := process(key); err != nil {
			result.Failed++
			p.markFailed(key)
			p.logger.WithError(err).WithField("key", key).Warn("image derivative failed")
			continue
		}
		result.Converted++
	}

	result.Remaining = len(pending) - attempted
	p.logger.WithFields(logrus.Fields{
		"converted": result.Converted,
		"failed":    result.Failed,
		"remaining": result.Remaining,
	}).Info("image batch finished")
	return result, nil
}

func (p *Pipeline) hasFailed(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.failed[key]
	return ok
}

func (p *Pipeline) markFailed(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[key] = struct{}{}
}

// transcode decodes data and encodes it as WebP, bounding the width when
// maxWidth > 0.
func transcode(data []byte, maxWidth int, quality float32) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
