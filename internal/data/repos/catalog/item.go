package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type ItemRepo interface {
	Upsert(dbc dbctx.Context, items []*types.CatalogItem) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CatalogItem, error)
	GetBySlug(dbc dbctx.Context, slug string) (*types.CatalogItem, error)
	FindByNameLike(dbc dbctx.Context, name string) (*types.CatalogItem, error)
	ListForSearch(dbc dbctx.Context, filters types.FilterSet) ([]*types.CatalogItem, error)
	ListNames(dbc dbctx.Context) ([]*types.CatalogItem, error)
	ListMissingEmbedding(dbc dbctx.Context, limit int) ([]*types.CatalogItem, error)
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, vec []float32) error
}

type itemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemRepo(db *gorm.DB, baseLog *logger.Logger) ItemRepo {
	return &itemRepo{db: db, log: baseLog.With("repo", "CatalogItemRepo")}
}

// Upsert inserts items keyed by slug, refreshing every descriptive column on
// conflict. Embeddings are left untouched so a re-import does not discard them.
func (r *itemRepo) Upsert(dbc dbctx.Context, items []*types.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "manufacturer", "role", "cargo_capacity", "crew_min", "crew_max",
			"price_usd", "price_auec", "description", "updated_at",
		}),
	}).Create(&items).Error
}

func (r *itemRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CatalogItem, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.CatalogItem
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *itemRepo) GetBySlug(dbc dbctx.Context, slug string) (*types.CatalogItem, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	var out types.CatalogItem
	if err := dbc.DB(r.db).Where("slug = ?", slug).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

// FindByNameLike returns the first item (alphabetically) whose name contains
// name, case-insensitively. Returns (nil, nil) when nothing matches.
func (r *itemRepo) FindByNameLike(dbc dbctx.Context, name string) (*types.CatalogItem, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	var out types.CatalogItem
	err := dbc.DB(r.db).
		Where("LOWER(name) LIKE ?", "%"+name+"%").
		Order("name ASC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

// ListForSearch returns embedded items satisfying filters, ordered by name so
// equal similarity scores rank deterministically.
func (r *itemRepo) ListForSearch(dbc dbctx.Context, filters types.FilterSet) ([]*types.CatalogItem, error) {
	q := dbc.DB(r.db).Model(&types.CatalogItem{}).Where("embedding IS NOT NULL")
	if filters.PriceMax != nil {
		q = q.Where("price_usd IS NOT NULL AND price_usd <= ?", *filters.PriceMax)
	}
	if filters.PriceMin != nil {
		q = q.Where("price_usd IS NOT NULL AND price_usd >= ?", *filters.PriceMin)
	}
	if filters.CargoMin != nil {
		q = q.Where("cargo_capacity >= ?", *filters.CargoMin)
	}
	if filters.CrewMax != nil {
		q = q.Where("crew_min <= ?", *filters.CrewMax)
	}
	if filters.Manufacturer != nil && strings.TrimSpace(*filters.Manufacturer) != "" {
		q = q.Where("LOWER(manufacturer) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(*filters.Manufacturer))+"%")
	}
	if filters.Role != nil && strings.TrimSpace(*filters.Role) != "" {
		q = q.Where("LOWER(role) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(*filters.Role))+"%")
	}
	out := []*types.CatalogItem{}
	if err := q.Order("name ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListNames returns every item without its embedding.
func (r *itemRepo) ListNames(dbc dbctx.Context) ([]*types.CatalogItem, error) {
	out := []*types.CatalogItem{}
	err := dbc.DB(r.db).
		Omit("embedding").
		Order("name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *itemRepo) ListMissingEmbedding(dbc dbctx.Context, limit int) ([]*types.CatalogItem, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []*types.CatalogItem{}
	err := dbc.DB(r.db).
		Where("embedding IS NULL").
		Order("name ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *itemRepo) UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, vec []float32) error {
	if id == uuid.Nil || len(vec) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.CatalogItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":  types.Embedding(vec),
			"updated_at": time.Now().UTC(),
		}).Error
}
