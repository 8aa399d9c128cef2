package store

import (
	"context"
	"errors"

	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/query"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")

	// ErrConflict means the document changed since it was loaded. Callers
	// reload and retry.
	ErrConflict = errors.New("document was modified concurrently")
)

type Stats struct {
	Categories map[string]int `json:"categories"`
	Types      map[string]int `json:"types"`
}

type Store interface {
	// Find filters, counts, then sorts, skips and limits.
	Find(ctx context.Context, q query.Query) ([]*model.Package, int, error)
	Count(ctx context.Context, q query.Query) (int, error)
	Get(ctx context.Context, id string) (*model.Package, error)
	GetPublished(ctx context.Context, id string) (*model.Package, error)
	Create(ctx context.Context, pkg *model.Package) error

	// Update writes pkg back if its DocVersion still matches the stored
	// one and bumps it.
	Update(ctx context.Context, pkg *model.Package) error

	// IncrementDownloads bumps the version counter and the counter of the
	// first revision numbered revision.
	IncrementDownloads(ctx context.Context, id, versionKey string, revision int) error
	Stats(ctx context.Context) (*Stats, error)

	GetUserByAPIKey(ctx context.Context, apiKey string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	PutUser(ctx context.Context, user *model.User) error

	Close() error
}
