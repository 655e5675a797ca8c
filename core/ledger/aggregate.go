package ledger

import (
	"sort"
	"time"
)

// accumulator holds a Summary under construction along with the IDs of the payments already
// folded into its assignments' AmountPaid.
type accumulator struct {
	summary  Summary
	embedded map[string]struct{}
}

func (acc *accumulator) addAssignment(fa FeeAssignment) {
	s := &acc.summary
	s.TotalAmount = s.TotalAmount.Add(fa.NetAmount)
	s.TotalPaid = s.TotalPaid.Add(fa.AmountPaid)
	s.Balance = s.Balance.Add(fa.Balance)
	s.AssignmentCount++
	s.Assignments = append(s.Assignments, fa)
	if fa.DueDate.Valid && (!s.DueDate.Valid || fa.DueDate.Time.After(s.DueDate.Time)) {
		s.DueDate = fa.DueDate
	}
	for _, id := range fa.EmbeddedPayments {
		acc.embedded[id] = struct{}{}
	}
}

func (acc *accumulator) addPayment(p PaymentRecord) {
	s := &acc.summary
	s.Payments = append(s.Payments, p)
	s.PaymentCount++
	if p.PaidAt.Valid && (!s.LastPaymentDate.Valid || p.PaidAt.Time.After(s.LastPaymentDate.Time)) {
		s.LastPaymentDate = p.PaidAt
	}
}

func (acc *accumulator) embeds(paymentID string) bool {
	_, ok := acc.embedded[paymentID]
	return ok
}

// studentIndex joins the two student identifier spaces: summaries are keyed by StudentRef.ID,
// payments find their student through StudentRef.Code.
type studentIndex struct {
	byID   map[string]*accumulator
	byCode map[string]*accumulator
	order  []*accumulator // encounter order
}

func newStudentIndex(size int) *studentIndex {
	return &studentIndex{
		byID:   make(map[string]*accumulator, size),
		byCode: make(map[string]*accumulator, size),
		order:  make([]*accumulator, 0, size),
	}
}

func (idx *studentIndex) seed(ref StudentRef) *accumulator {
	acc, ok := idx.byID[ref.ID]
	if !ok {
		acc = &accumulator{
			summary: Summary{
				StudentID:   ref.ID,
				StudentCode: ref.Code,
				StudentName: ref.Name,
				Status:      StatusPaid, // provisional
			},
			embedded: make(map[string]struct{}),
		}
		idx.byID[ref.ID] = acc
		idx.order = append(idx.order, acc)
	}
	if acc.summary.StudentCode == "" {
		acc.summary.StudentCode = ref.Code
	}
	if acc.summary.StudentName == "" {
		acc.summary.StudentName = ref.Name
	}
	// first student to claim a code keeps it
	if ref.Code != "" {
		if _, claimed := idx.byCode[ref.Code]; !claimed {
			idx.byCode[ref.Code] = acc
		}
	}
	return acc
}

func (idx *studentIndex) lookupCode(code string) (*accumulator, bool) {
	acc, ok := idx.byCode[code]
	return acc, ok
}

// Aggregate folds fee assignments and payment records into one Summary per student, sorted by
// descending balance (ties keep encounter order).
//
// Only assignments create summaries: a payment whose StudentCode matches no assignment's student is
// dropped. Payments already listed in one of the student's assignments' EmbeddedPayments are not
// counted again, neither is a payment ID seen twice. Records missing the identifier a pass joins on
// (assignment student ID, payment ID or student code) are skipped. Standalone payments only affect
// PaymentCount, LastPaymentDate and Payments; balances come from the assignments alone.
//
// now is the reference time for the overdue check.
func Aggregate(assignments []FeeAssignment, payments []PaymentRecord, now time.Time) []Summary {
	idx := newStudentIndex(len(assignments))

	for _, fa := range assignments {
		if fa.Student.ID == "" {
			continue
		}
		idx.seed(fa.Student).addAssignment(fa)
	}

	seen := make(map[string]struct{}, len(payments))
	for _, p := range payments {
		if p.ID == "" || p.StudentCode == "" {
			continue
		}
		acc, ok := idx.lookupCode(p.StudentCode)
		if !ok || acc.embeds(p.ID) {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		acc.addPayment(p)
	}

	summaries := make([]Summary, 0, len(idx.order))
	for _, acc := range idx.order {
		acc.summary.Status = DeriveStatus(acc.summary, now)
		summaries = append(summaries, acc.summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Balance.GreaterThan(summaries[j].Balance)
	})
	return summaries
}

// DeriveStatus classifies a summary from its current totals. Precedence:
// PAID (balance <= 0) > OVERDUE > PARTIAL (something paid) > PENDING.
func DeriveStatus(s Summary, now time.Time) Status {
	if !s.Balance.IsPositive() {
		return StatusPaid
	}
	for _, fa := range s.Assignments {
		if fa.IsOverdue(now) {
			return StatusOverdue
		}
	}
	if s.TotalPaid.IsPositive() {
		return StatusPartial
	}
	return StatusPending
}
