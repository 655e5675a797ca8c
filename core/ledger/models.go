package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Statuses
const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
	StatusWaived  Status = "WAIVED" // only ever set explicitly on a FeeAssignment
)

var (
	AssignmentStatuses = []Status{StatusPending, StatusPartial, StatusPaid, StatusOverdue, StatusWaived}
	SummaryStatuses    = []Status{StatusPaid, StatusPartial, StatusPending, StatusOverdue}
)

type Status string

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	for _, st := range AssignmentStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// StudentRef identifies the student owing a FeeAssignment.
// ID and Code live in different identifier spaces: assignments are grouped by ID while payments
// reference students by Code.
type StudentRef struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"` // guardian contact
}

// FeeAssignment is a charge levied on a student. Balance is authoritative and never recomputed.
type FeeAssignment struct {
	ID               string          `json:"id"`
	Student          StudentRef      `json:"student"`
	FeeName          string          `json:"fee_name"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Balance          decimal.Decimal `json:"balance"`
	DueDate          null.Time       `json:"due_date"`
	ExplicitStatus   Status          `json:"status,omitempty"`
	EmbeddedPayments []string        `json:"payments"` // IDs of payments already counted in AmountPaid
}

// IsOverdue reports whether the assignment is explicitly OVERDUE, or still owes money past its due date.
func (fa FeeAssignment) IsOverdue(now time.Time) bool {
	if fa.ExplicitStatus == StatusOverdue {
		return true
	}
	return fa.DueDate.Valid && fa.DueDate.Time.Before(now) && fa.Balance.IsPositive()
}

// PaymentRecord is a payment as recorded by the payments source.
type PaymentRecord struct {
	ID          string          `json:"id"`
	StudentCode string          `json:"student_code"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      null.Time       `json:"paid_at"`
}

// Summary is the per-student rollup of fee assignments and standalone payments.
type Summary struct {
	StudentID       string          `json:"student_id"`
	StudentCode     string          `json:"student_code"`
	StudentName     string          `json:"student_name"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Balance         decimal.Decimal `json:"balance"`
	DueDate         null.Time       `json:"due_date"` // latest due date among the assignments
	AssignmentCount int             `json:"assignment_count"`
	PaymentCount    int             `json:"payment_count"`
	LastPaymentDate null.Time       `json:"last_payment_date"`
	Status          Status          `json:"status"`
	Assignments     []FeeAssignment `json:"assignments"`
	Payments        []PaymentRecord `json:"payments"` // standalone payments only
}

func (s Summary) IsOverdue() bool {
	return s.Status == StatusOverdue
}

// DaysUntilDue returns the number of days (rounded up) left until the summary's due date.
// It is negative once the due date has passed and 0 when there is no due date.
func (s Summary) DaysUntilDue(now time.Time) int {
	if !s.DueDate.Valid {
		return 0
	}
	return int(math.Ceil(s.DueDate.Time.Sub(now).Hours() / 24))
}

// Contact returns the first StudentRef of the summary's assignments carrying a guardian email.
func (s Summary) Contact() (StudentRef, bool) {
	for _, fa := range s.Assignments {
		if fa.Student.Email != "" {
			return fa.Student, true
		}
	}
	return StudentRef{}, false
}

// FormatDate renders t as YYYY-MM-DD, or "" when it is null.
func FormatDate(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(dateLayout)
}
