package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Item is one purchasable ship. Rows are owned by the catalog import tooling;
// the sales flow only reads them.
type Item struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null;index" json:"name"`
	Slug          string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Manufacturer  string    `gorm:"column:manufacturer;index" json:"manufacturer"`
	Role          string    `gorm:"column:role;index" json:"focus"`
	CargoCapacity int       `gorm:"column:cargo_capacity;not null;default:0" json:"cargo_capacity"`
	CrewMin       int       `gorm:"column:crew_min;not null;default:1" json:"min_crew"`
	CrewMax       int       `gorm:"column:crew_max;not null;default:1" json:"max_crew"`
	PriceUSD      *float64  `gorm:"column:price_usd;index" json:"pledge_price,omitempty"`
	PriceAUEC     *int64    `gorm:"column:price_auec" json:"price_auec,omitempty"`
	Description   string    `gorm:"column:description;type:text" json:"description"`

	Embedding Embedding `gorm:"column:embedding;type:jsonb" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Item) TableName() string { return "catalog_item" }

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *Item) HasEmbedding() bool {
	return i != nil && len(i.Embedding) > 0
}
