package retrieval

import (
	"context"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

// Embedder maps texts to vectors, one per input. A nil error with a missing
// or empty vector is still treated as a failure by the engine.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// CatalogSource is the read side of the catalog the engine needs.
type CatalogSource interface {
	ListForSearch(dbc dbctx.Context, filters types.FilterSet) ([]*types.CatalogItem, error)
	FindByNameLike(dbc dbctx.Context, name string) (*types.CatalogItem, error)
}
