package persistence

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/supplyai/backend/internal/domain/shared"
)

// applyFilter applies pagination and ordering from a shared.Filter
func applyFilter(db *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	for field, value := range filter.Filters {
		db = db.Where(fmt.Sprintf("%s = ?", field), value)
	}

	if filter.OrderBy != "" {
		dir := "asc"
		if filter.OrderDir == "desc" {
			dir = "desc"
		}
		db = db.Order(fmt.Sprintf("%s %s", filter.OrderBy, dir))
	}

	return db.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
}

// mapNotFound converts gorm's record-not-found into the domain error
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// mapDuplicate converts a unique constraint violation into the domain
// error. Requires TranslateError on the gorm config.
func mapDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrAlreadyExists
	}
	return err
}
