package factory

import (
	"fmt"

	"go-ocr-service/internal/config"
	"go-ocr-service/internal/engine"
	"go-ocr-service/internal/engine/formula"
	"go-ocr-service/internal/engine/paddle"
	"go-ocr-service/internal/engine/surya"
	"go-ocr-service/internal/engine/tesseract"
	"go-ocr-service/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// EngineFactory creates engine adapters by family name
type EngineFactory interface {
	CreateEngine(name string) (engine.Engine, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateFetcher() storage.ImageFetcher
	CreateBlobStorage() (storage.BlobStorage, error)
}

type engineFactory struct {
	cfg *config.Config
}

// NewEngineFactory creates a new engine factory bound to app config
func NewEngineFactory(cfg *config.Config) EngineFactory {
	return &engineFactory{cfg: cfg}
}

// CreateEngine builds the adapter for the requested family. Construction
// never loads models; the adapter loads lazily on first use.
func (f *engineFactory) CreateEngine(name string) (engine.Engine, error) {
	switch name {
	case surya.Name:
		return surya.NewAdapter(surya.Config{
			ModelDir:           f.cfg.ModelDir,
			OnnxRuntimeLibPath: f.cfg.OnnxRuntimeLibPath,
		}), nil
	case paddle.Name:
		return paddle.NewAdapter(paddle.Config{
			ModelDir:           f.cfg.ModelDir,
			OnnxRuntimeLibPath: f.cfg.OnnxRuntimeLibPath,
		}), nil
	case formula.Name:
		return formula.NewAdapter(formula.Config{
			ModelDir:           f.cfg.ModelDir,
			OnnxRuntimeLibPath: f.cfg.OnnxRuntimeLibPath,
		}), nil
	case tesseract.Name:
		return tesseract.NewAdapter(tesseract.Config{
			Languages: tesseract.TraineddataCodes(f.cfg.Languages),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported engine: %s", name)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateFetcher builds the HTTP image fetcher used for URL-mode requests
func (f *storageFactory) CreateFetcher() storage.ImageFetcher {
	return storage.NewHTTPImageFetcher(f.cfg.MaxRequestBodySize)
}

// CreateBlobStorage builds the Azure blob fetcher, or returns nil when
// credentials are not configured
func (f *storageFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	if f.cfg.AzureStorageAccount == "" || f.cfg.AzureStorageKey == "" {
		return nil, nil
	}
	return storage.NewAzureStorage(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(cfg),
		StorageFactory: NewStorageFactory(cfg),
	}
}
