package documents

import (
	"context"

	"github.com/morezero/valuestore/pkg/cache"
	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/events"
	"github.com/morezero/valuestore/pkg/library"
)

const (
	defaultMaxBodyBytes = 1024 * 1024
	defaultPageSize     = 20
	maxPageSize         = 500
)

// Config holds document service configuration.
type Config struct {
	MaxBodyBytes    int
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:    defaultMaxBodyBytes,
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	}
}

// Store is the persistence the service needs. *db.Repository implements it.
type Store interface {
	Get(ctx context.Context, collection, key string) (*db.Document, error)
	Put(ctx context.Context, params db.PutDocumentParams) (*db.Document, error)
	Delete(ctx context.Context, collection, key string) (bool, error)
	List(ctx context.Context, params db.ListDocumentsParams) ([]db.Document, int, error)
	Ping(ctx context.Context) error
}

var _ Store = (*db.Repository)(nil)

// Pinger is implemented by caches that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service stores values of catalogued types as serialized documents.
type Service struct {
	store     Store
	cache     cache.DocumentCache
	publisher events.EventPublisher
	lib       *library.Library
	config    Config
}

// NewService creates a new Service instance.
func NewService(params NewServiceParams) *Service {
	cfg := params.Config
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = maxPageSize
	}

	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	c := params.Cache
	if c == nil {
		c = cache.NoOpCache{}
	}
	lib := params.Library
	if lib == nil {
		lib = library.New()
	}

	return &Service{
		store:     params.Store,
		cache:     c,
		publisher: pub,
		lib:       lib,
		config:    cfg,
	}
}

// NewServiceParams holds parameters for NewService.
type NewServiceParams struct {
	Store     Store
	Cache     cache.DocumentCache
	Publisher events.EventPublisher
	Library   *library.Library
	Config    Config
}

// Library returns the type handler library documents are checked against.
func (s *Service) Library() *library.Library { return s.lib }

// requireStore returns an error if no store is configured.
func (s *Service) requireStore() *ServiceError {
	if s.store == nil {
		return &ServiceError{Code: CodeInternal, Message: "store not configured"}
	}
	return nil
}
