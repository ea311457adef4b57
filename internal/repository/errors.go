package repository

import (
	"errors"

	"gorm.io/gorm"

	"tillpos/internal/model"
)

// ErrVersionConflict is returned by versioned saves when the row's version no
// longer matches the version that was read: another writer got there first.
// Callers resolve it by reloading and reapplying the whole operation.
var ErrVersionConflict = errors.New("register was modified concurrently")

// notFound maps gorm's record-not-found onto the domain error so services and
// handlers never depend on gorm directly.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}
