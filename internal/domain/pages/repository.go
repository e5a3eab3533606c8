package pages

import "context"

// Repository is the durable slug to page mapping together with its recency index.
//
// Implementations return ErrNotFound for misses, ErrAlreadyExists when Create
// collides with a live slug, and wrap every backend failure in ErrStoreUnavailable.
type Repository interface {
	Create(ctx context.Context, page *Page) error
	Get(ctx context.Context, slug string) (*Page, error)
	Exists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, slug string, update PageUpdate) error
	IncrementViews(ctx context.Context, slug string) error
	Delete(ctx context.Context, slug string) error
	ListRecent(ctx context.Context, limit int) ([]Page, error)
	ListByOwner(ctx context.Context, owner OwnerID, limit int) ([]Page, error)
	Search(ctx context.Context, query string, limit int) ([]Page, error)
	Ping(ctx context.Context) error
}

// OwnerIndex maps an identity to the unordered set of slugs it created.
// Membership is advisory; the Repository stays authoritative for OwnerID.
type OwnerIndex interface {
	Add(ctx context.Context, owner OwnerID, slug string) error
	Remove(ctx context.Context, owner OwnerID, slug string) error
	List(ctx context.Context, owner OwnerID) ([]string, error)
}
