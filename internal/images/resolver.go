package images

import (
	"path"
	"strings"
	"sync"

	"storefront-sync-service/internal/clients"
)

const DefaultPlaceholder = "/images/placeholder.webp"

// Resolver turns image references from ERP feeds into public URLs. Results
// are memoized for the process lifetime; resolution depends only on the
// reference and the storage configuration.
type Resolver struct {
	store       clients.ObjectStore
	placeholder string

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver. store may be nil, in which case URLs
// point at the locally served /uploads tree.
func NewResolver(store clients.ObjectStore, placeholder string) *Resolver {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Resolver{
		store:       store,
		placeholder: placeholder,
		cache:       make(map[string]string),
	}
}

// Resolve returns the public URL for raw
func (r *Resolver) Resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return r.placeholder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if url, ok := r.cache[raw]; ok {
		return url
	}

	url := r.resolve(raw)
	r.cache[raw] = url
	return url
}

// Len returns the number of memoized references
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Resolver) resolve(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	name, err := SanitizeName(raw)
	if err != nil {
		return r.placeholder
	}
	key := clients.ImagePrefix + WebPName(name)

	if r.store != nil {
		return r.store.PublicURL(key)
	}
	return "/uploads/" + key
}

// ThumbnailURL derives the thumbnail URL for a full-size image URL. It
// returns "" for URLs whose extension has no thumbnail counterpart.
func ThumbnailURL(fullURL string) string {
	ext := path.Ext(fullURL)
	lower := strings.ToLower(ext)
	if lower != ".webp" && !rasterExtensions[lower] {
		return ""
	}
	if isThumbnail(fullURL) {
		return fullURL
	}
	return strings.TrimSuffix(fullURL, ext) + ThumbnailSuffix + ".webp"
}
