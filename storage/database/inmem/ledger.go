package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Store = (*ledgerRepository)(nil)

func NewLedgerRepository(db *DB) ledger.Store {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) student(id string) (*ledger.StudentRef, bool) {
	for _, s := range repo.db.students {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func (repo *ledgerRepository) CreateStudent(_ context.Context, ref ledger.StudentRef) (ledger.StudentRef, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.students {
		if s.Code == ref.Code {
			return ledger.StudentRef{}, ledger.ErrDuplicateCode
		}
	}
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	repo.db.students = append(repo.db.students, &ref)
	return ref, nil
}

func (repo *ledgerRepository) CreateFeeAssignment(_ context.Context, fa ledger.FeeAssignment) (ledger.FeeAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stu, ok := repo.student(fa.Student.ID)
	if !ok {
		return ledger.FeeAssignment{}, ledger.ErrStudentNotFound
	}
	if fa.ID == "" {
		fa.ID = uuid.NewString()
	}
	fa.Student = *stu
	fa.EmbeddedPayments = nil
	repo.db.assignments = append(repo.db.assignments, &assignmentRow{FeeAssignment: fa, studentID: stu.ID, seq: len(repo.db.assignments)})
	return fa, nil
}

func (repo *ledgerRepository) CreatePayment(_ context.Context, p ledger.PaymentRecord, assignmentID string) (ledger.PaymentRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var row *assignmentRow
	if assignmentID != "" {
		for _, r := range repo.db.assignments {
			if r.ID == assignmentID {
				row = r
				break
			}
		}
		if row == nil {
			return ledger.PaymentRecord{}, ledger.ErrAssignmentNotFound
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if !p.PaidAt.Valid {
		p.PaidAt.SetValid(time.Now().UTC())
	}
	repo.db.payments = append(repo.db.payments, &p)
	if row != nil {
		row.EmbeddedPayments = append(row.EmbeddedPayments, p.ID)
		row.AmountPaid = row.AmountPaid.Add(p.Amount)
		row.Balance = row.Balance.Sub(p.Amount)
	}
	return p, nil
}

func (repo *ledgerRepository) QueryFeeAssignments(_ context.Context, ordering []core.DBOrdering) ([]ledger.FeeAssignment, error) {
	less, err := assignmentOrdering(ordering)
	if err != nil {
		return nil, err
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]assignmentRow, 0, len(repo.db.assignments))
	for _, row := range repo.db.assignments {
		r := *row
		if stu, ok := repo.student(r.studentID); ok {
			r.Student = *stu
		}
		r.EmbeddedPayments = append([]string(nil), row.EmbeddedPayments...)
		rows = append(rows, r)
	}
	if less != nil {
		sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	}

	res := make([]ledger.FeeAssignment, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.FeeAssignment)
	}
	return res, nil
}

func (repo *ledgerRepository) QueryPayments(_ context.Context) ([]ledger.PaymentRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]ledger.PaymentRecord, 0, len(repo.db.payments))
	for _, p := range repo.db.payments {
		res = append(res, *p)
	}
	return res, nil
}

type assignmentCmp func(a, b assignmentRow) int

var assignmentComparators = map[string]assignmentCmp{
	"created_at": func(a, b assignmentRow) int { return a.seq - b.seq },
	"id":         func(a, b assignmentRow) int { return strings.Compare(a.ID, b.ID) },
	"fee_name":   func(a, b assignmentRow) int { return strings.Compare(a.FeeName, b.FeeName) },
	"balance":    func(a, b assignmentRow) int { return a.Balance.Cmp(b.Balance) },
	"due_date": func(a, b assignmentRow) int {
		switch {
		case a.DueDate.Valid && b.DueDate.Valid:
			return a.DueDate.Time.Compare(b.DueDate.Time)
		case a.DueDate.Valid:
			return -1
		case b.DueDate.Valid:
			return 1
		}
		return 0
	},
}

// assignmentOrdering builds a less func out of ordering, the first non-equal field deciding.
func assignmentOrdering(ordering []core.DBOrdering) (func(a, b assignmentRow) bool, error) {
	if len(ordering) == 0 {
		return nil, nil
	}
	cmps := make([]assignmentCmp, 0, len(ordering))
	for _, o := range ordering {
		cmp, ok := assignmentComparators[o.Field]
		if !ok {
			return nil, errors.Wrap(ledger.ErrInvalidOrdering, o.Field)
		}
		if !o.Ascending {
			asc := cmp
			cmp = func(a, b assignmentRow) int { return -asc(a, b) }
		}
		cmps = append(cmps, cmp)
	}
	return func(a, b assignmentRow) bool {
		for _, cmp := range cmps {
			if c := cmp(a, b); c != 0 {
				return c < 0
			}
		}
		return false
	}, nil
}
