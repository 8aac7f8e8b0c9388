package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

// ShipSpec describes a catalog item fixture.
type ShipSpec struct {
	Name         string
	Manufacturer string
	Role         string
	Cargo        int
	CrewMin      int
	CrewMax      int
	Price        float64
	Embedding    []float32
}

func SeedShip(tb testing.TB, ctx context.Context, tx *gorm.DB, spec ShipSpec) *types.CatalogItem {
	tb.Helper()
	price := spec.Price
	crewMin := spec.CrewMin
	if crewMin == 0 {
		crewMin = 1
	}
	crewMax := spec.CrewMax
	if crewMax < crewMin {
		crewMax = crewMin
	}
	item := &types.CatalogItem{
		ID:            uuid.New(),
		Name:          spec.Name,
		Slug:          strings.ReplaceAll(strings.ToLower(spec.Name), " ", "-"),
		Manufacturer:  spec.Manufacturer,
		Role:          spec.Role,
		CargoCapacity: spec.Cargo,
		CrewMin:       crewMin,
		CrewMax:       crewMax,
		PriceUSD:      &price,
		Description:   spec.Name + " is a " + strings.ToLower(spec.Role) + " ship.",
		Embedding:     types.Embedding(spec.Embedding),
	}
	if err := tx.WithContext(ctx).Create(item).Error; err != nil {
		tb.Fatalf("seed ship %q: %v", spec.Name, err)
	}
	return item
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB) *types.Conversation {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Conversation{
		ID:             uuid.New(),
		Status:         types.ConversationStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
