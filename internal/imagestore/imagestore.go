// Package imagestore keeps the images uploaded with each scan, on local disk
// or in Azure Blob Storage.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrImageNotFound is returned when no image is stored under a key.
var ErrImageNotFound = errors.New("image not found")

// Store saves and retrieves image bytes by key.
type Store interface {
	// Put stores data under key and returns where it was stored.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Key builds the storage key of the index-th image of a scan. The extension
// of the uploaded filename is kept; everything else is discarded.
func Key(scanID string, index int, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		ext = ".img"
	}
	return path.Join(scanID, fmt.Sprintf("%d%s", index, ext))
}

// validKey rejects keys that could escape the store's root.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid image key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid image key %q", key)
		}
	}
	return nil
}

// Driver names a Store implementation.
type Driver string

const (
	// DriverLocal keeps images under a local directory.
	DriverLocal Driver = "local"
	// DriverAzure keeps images as blobs in an Azure Storage container.
	DriverAzure Driver = "azblob"
)

// Config selects and configures a Store.
type Config struct {
	Driver     Driver
	Dir        string
	AccountURL string
	Container  string
}

// Open creates the Store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverLocal, "":
		return NewLocalStore(cfg.Dir), nil
	case DriverAzure:
		s, err := NewBlobStoreFromAccount(cfg.AccountURL, cfg.Container)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown image storage driver %q", cfg.Driver)
	}
}
