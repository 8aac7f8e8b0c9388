package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

// CASGuard performs compare-and-set updates inside an aggregate transaction.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx == nil && g.db == nil {
		return nil, ValidationError("missing db transaction context")
	}
	return dbc.DB(g.db), nil
}

// UpdateByStatus updates the row only while its status is one of allowed.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowed []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByStatus")
	}
	if len(allowed) == 0 {
		return false, ValidationError("allowed statuses must not be empty")
	}
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateByCounts updates a conversation row only while its turn and
// recommendation counters still hold the values the caller read.
func (g CASGuard) UpdateByCounts(dbc dbctx.Context, table string, id uuid.UUID, turnCount, recCount int, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(table) == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByCounts")
	}
	res := db.Table(table).
		Where("id = ? AND turn_count = ? AND rec_count = ?", id, turnCount, recCount).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

func RequireCountMatch(name string, current, expected int) error {
	if expected < 0 {
		return ValidationError(fmt.Sprintf("expected %s must be >= 0", name))
	}
	if current != expected {
		return ConflictError(fmt.Sprintf("%s changed: expected %d, found %d", name, expected, current))
	}
	return nil
}
