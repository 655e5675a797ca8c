package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	insertStudentQuery = `INSERT INTO student (id, code, name, guardian_email)
VALUES (:id, :code, :name, :guardian_email)`

	insertFeeAssignmentQuery = `INSERT INTO fee_assignment (id, student_id, fee_name, net_amount, amount_paid, balance, due_date, status)
VALUES (:id, :student_id, :fee_name, :net_amount, :amount_paid, :balance, :due_date, :status)`

	insertPaymentQuery = `INSERT INTO payment (id, student_code, fee_assignment_id, amount, paid_at)
VALUES (:id, :student_code, :fee_assignment_id, :amount, :paid_at)`

	applyPaymentQuery = `UPDATE fee_assignment SET amount_paid = amount_paid + $1, balance = balance - $1 WHERE id = $2`

	selectStudentQuery = `SELECT id, code, name, guardian_email FROM student WHERE id = $1`

	selectFeeAssignmentsQuery = `SELECT fa.id, fa.fee_name, fa.net_amount, fa.amount_paid, fa.balance, fa.due_date, fa.status,
	s.id AS student_id, s.code AS student_code, s.name AS student_name, s.guardian_email,
	COALESCE(array_agg(p.id::text ORDER BY p.created_at, p.id) FILTER (WHERE p.id IS NOT NULL), '{}') AS payment_ids
FROM fee_assignment fa
JOIN student s ON s.id = fa.student_id
LEFT JOIN payment p ON p.fee_assignment_id = fa.id
GROUP BY fa.id, s.id`

	selectPaymentsQuery = `SELECT id, student_code, amount, paid_at FROM payment ORDER BY created_at, id`
)

// orderable fee_assignment columns
var assignmentColumns = map[string]string{
	"created_at": "fa.created_at",
	"id":         "fa.id",
	"fee_name":   "fa.fee_name",
	"balance":    "fa.balance",
	"due_date":   "fa.due_date",
}

type (
	studentRow struct {
		ID            string      `db:"id"`
		Code          string      `db:"code"`
		Name          string      `db:"name"`
		GuardianEmail null.String `db:"guardian_email"`
	}

	feeAssignmentRow struct {
		ID            string          `db:"id"`
		StudentID     string          `db:"student_id"`
		StudentCode   string          `db:"student_code"`
		StudentName   string          `db:"student_name"`
		GuardianEmail null.String     `db:"guardian_email"`
		FeeName       string          `db:"fee_name"`
		NetAmount     decimal.Decimal `db:"net_amount"`
		AmountPaid    decimal.Decimal `db:"amount_paid"`
		Balance       decimal.Decimal `db:"balance"`
		DueDate       null.Time       `db:"due_date"`
		Status        null.String     `db:"status"`
		PaymentIDs    pq.StringArray  `db:"payment_ids"`
	}

	paymentRow struct {
		ID              string          `db:"id"`
		StudentCode     string          `db:"student_code"`
		FeeAssignmentID null.String     `db:"fee_assignment_id"`
		Amount          decimal.Decimal `db:"amount"`
		PaidAt          null.Time       `db:"paid_at"`
	}
)

func (r studentRow) toStudentRef() ledger.StudentRef {
	return ledger.StudentRef{ID: r.ID, Code: r.Code, Name: r.Name, Email: r.GuardianEmail.String}
}

func (r feeAssignmentRow) toFeeAssignment() ledger.FeeAssignment {
	return ledger.FeeAssignment{
		ID: r.ID,
		Student: ledger.StudentRef{
			ID:    r.StudentID,
			Code:  r.StudentCode,
			Name:  r.StudentName,
			Email: r.GuardianEmail.String,
		},
		FeeName:          r.FeeName,
		NetAmount:        r.NetAmount,
		AmountPaid:       r.AmountPaid,
		Balance:          r.Balance,
		DueDate:          r.DueDate,
		ExplicitStatus:   ledger.Status(r.Status.String),
		EmbeddedPayments: []string(r.PaymentIDs),
	}
}

func (r paymentRow) toPaymentRecord() ledger.PaymentRecord {
	return ledger.PaymentRecord{ID: r.ID, StudentCode: r.StudentCode, Amount: r.Amount, PaidAt: r.PaidAt}
}

type ledgerRepository struct {
	db *sqlx.DB
}

var _ ledger.Store = (*ledgerRepository)(nil)

func NewLedgerRepository(db *sqlx.DB) ledger.Store {
	return &ledgerRepository{db: db}
}

func pqErrCode(err error) pq.ErrorCode {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code
	}
	return ""
}

func (repo *ledgerRepository) CreateStudent(ctx context.Context, ref ledger.StudentRef) (ledger.StudentRef, error) {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	row := studentRow{
		ID:            ref.ID,
		Code:          ref.Code,
		Name:          ref.Name,
		GuardianEmail: null.NewString(ref.Email, ref.Email != ""),
	}
	if _, err := repo.db.NamedExecContext(ctx, insertStudentQuery, row); err != nil {
		if pqErrCode(err) == pqUniqueViolation {
			return ledger.StudentRef{}, ledger.ErrDuplicateCode
		}
		return ledger.StudentRef{}, errors.Wrap(err, "inserting student")
	}
	return ref, nil
}

func (repo *ledgerRepository) CreateFeeAssignment(ctx context.Context, fa ledger.FeeAssignment) (ledger.FeeAssignment, error) {
	var stu studentRow
	if err := repo.db.GetContext(ctx, &stu, selectStudentQuery, fa.Student.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.FeeAssignment{}, ledger.ErrStudentNotFound
		}
		return ledger.FeeAssignment{}, errors.Wrap(err, "selecting student")
	}

	if fa.ID == "" {
		fa.ID = uuid.NewString()
	}
	row := feeAssignmentRow{
		ID:         fa.ID,
		StudentID:  stu.ID,
		FeeName:    fa.FeeName,
		NetAmount:  fa.NetAmount,
		AmountPaid: fa.AmountPaid,
		Balance:    fa.Balance,
		DueDate:    fa.DueDate,
		Status:     null.NewString(fa.ExplicitStatus.String(), fa.ExplicitStatus != ""),
	}
	if _, err := repo.db.NamedExecContext(ctx, insertFeeAssignmentQuery, row); err != nil {
		return ledger.FeeAssignment{}, errors.Wrap(err, "inserting fee assignment")
	}

	fa.Student = stu.toStudentRef()
	fa.EmbeddedPayments = nil
	return fa, nil
}

func (repo *ledgerRepository) CreatePayment(ctx context.Context, p ledger.PaymentRecord, assignmentID string) (ledger.PaymentRecord, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if !p.PaidAt.Valid {
		p.PaidAt.SetValid(time.Now().UTC())
	}
	row := paymentRow{
		ID:              p.ID,
		StudentCode:     p.StudentCode,
		FeeAssignmentID: null.NewString(assignmentID, assignmentID != ""),
		Amount:          p.Amount,
		PaidAt:          p.PaidAt,
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledger.PaymentRecord{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.NamedExecContext(ctx, insertPaymentQuery, row); err != nil {
		if pqErrCode(err) == pqForeignKeyViolation {
			return ledger.PaymentRecord{}, ledger.ErrAssignmentNotFound
		}
		return ledger.PaymentRecord{}, errors.Wrap(err, "inserting payment")
	}
	// embedded payments are part of the assignment's amount paid
	if assignmentID != "" {
		if _, err = tx.ExecContext(ctx, applyPaymentQuery, p.Amount, assignmentID); err != nil {
			return ledger.PaymentRecord{}, errors.Wrap(err, "applying payment to fee assignment")
		}
	}
	if err = tx.Commit(); err != nil {
		return ledger.PaymentRecord{}, errors.Wrap(err, "committing payment")
	}
	return p, nil
}

func (repo *ledgerRepository) QueryFeeAssignments(ctx context.Context, ordering []core.DBOrdering) ([]ledger.FeeAssignment, error) {
	q, err := orderBy(selectFeeAssignmentsQuery, assignmentColumns, ordering)
	if err != nil {
		return nil, err
	}

	var rows []feeAssignmentRow
	if err = repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting fee assignments")
	}

	res := make([]ledger.FeeAssignment, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toFeeAssignment())
	}
	return res, nil
}

func (repo *ledgerRepository) QueryPayments(ctx context.Context) ([]ledger.PaymentRecord, error) {
	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, selectPaymentsQuery); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}

	res := make([]ledger.PaymentRecord, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toPaymentRecord())
	}
	return res, nil
}

// orderBy appends an ORDER BY clause to q, only allowing the given columns.
func orderBy(q string, columns map[string]string, ordering []core.DBOrdering) (string, error) {
	if len(ordering) == 0 {
		return q, nil
	}
	terms := make([]string, 0, len(ordering))
	for _, o := range ordering {
		col, ok := columns[o.Field]
		if !ok {
			return "", errors.Wrap(ledger.ErrInvalidOrdering, o.Field)
		}
		dir := " DESC"
		if o.Ascending {
			dir = " ASC"
		}
		terms = append(terms, col+dir)
	}
	return q + "\nORDER BY " + strings.Join(terms, ", "), nil
}
