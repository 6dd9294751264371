package storage

import (
	"time"

	"airbnb-listings/models"
)

// ListingWriter is the interface any storage backend for the clean table
// must satisfy.
type ListingWriter interface {
	Write(listings []models.Listing) error
	Close() error
}

// CacheService is a byte cache with per-entry expiry. Get returns an error
// on a miss.
type CacheService interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, expiration time.Duration) error
	Delete(key string) error
	Close() error
}
