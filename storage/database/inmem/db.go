package inmemdb

import (
	"sync"

	"github.com/trezcool/bursar/core/ledger"
)

type (
	// DB keeps every table in insertion order.
	DB struct {
		mutex       sync.RWMutex
		students    []*ledger.StudentRef
		assignments []*assignmentRow
		payments    []*ledger.PaymentRecord
	}

	assignmentRow struct {
		ledger.FeeAssignment
		studentID string
		seq       int
	}
)

func Open() (*DB, error) {
	return &DB{}, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.students = nil
	db.assignments = nil
	db.payments = nil
}
