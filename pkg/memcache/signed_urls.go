package mem

import (
	"sync"
	"time"
)

// SignedURLStore keeps unexpired signed audio URLs so repeated reads do not
// re-sign against the storage backend.
type SignedURLStore interface {
	Get(path string) (string, bool)
	Set(path string, url string, ttl time.Duration)
}

type urlEntry struct {
	url       string
	expiresAt time.Time
}

type SignedURLs struct {
	mu   sync.RWMutex
	data map[string]urlEntry
}

func NewSignedURLs() *SignedURLs {
	return &SignedURLs{
		data: make(map[string]urlEntry),
	}
}

func (s *SignedURLs) Get(path string) (string, bool) {
	s.mu.RLock()
	e, ok := s.data[path]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.data, path) // cleanup expired
		s.mu.Unlock()
		return "", false
	}
	return e.url, true
}

func (s *SignedURLs) Set(path string, url string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[path] = urlEntry{
		url:       url,
		expiresAt: time.Now().Add(ttl),
	}

	// Simple cleanup: drop expired entries once the map grows large.
	if len(s.data) > 1000 {
		now := time.Now()
		for key, e := range s.data {
			if now.After(e.expiresAt) {
				delete(s.data, key)
			}
		}
	}
}
