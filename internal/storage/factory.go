package storage

import (
	"fmt"
	"sort"

	"github.com/axonops/openapi-diagram/internal/config"
)

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeMemory   StorageType = "memory"
	StorageTypePostgres StorageType = "postgresql"
	StorageTypeMySQL    StorageType = "mysql"
)

// Factory is a function type that creates a Storage instance.
type Factory func(cfg config.StorageConfig) (Storage, error)

// factories holds registered storage factories.
var factories = make(map[StorageType]Factory)

// Register registers a storage factory. Backends call it from init.
func Register(storageType StorageType, factory Factory) {
	factories[storageType] = factory
}

// Create creates a new Storage instance based on the storage type.
func Create(storageType StorageType, cfg config.StorageConfig) (Storage, error) {
	if storageType == "postgres" {
		storageType = StorageTypePostgres
	}
	factory, ok := factories[storageType]
	if !ok {
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
	return factory(cfg)
}

// SupportedTypes returns the registered storage types in sorted order.
func SupportedTypes() []StorageType {
	types := make([]StorageType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsSupported returns true if the storage type is supported.
func IsSupported(storageType StorageType) bool {
	_, ok := factories[storageType]
	return ok
}
