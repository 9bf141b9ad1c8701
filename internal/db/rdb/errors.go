package rdb

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// IsConstraint reports whether err was caused by the data itself rather than
// the store: an integrity constraint violation (NOT NULL, UNIQUE, CHECK,
// foreign key) or, on postgres, a data exception such as an invalid byte
// sequence (class 22).
func IsConstraint(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			return true
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
