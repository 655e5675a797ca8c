package testutil

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/services/logger"
	"github.com/trezcool/bursar/storage/database/inmem"
)

// NewLogger returns a silent logger that never reports to rollbar.
func NewLogger(conf *core.Config) core.Logger {
	l := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	l.Enable(false)
	return l
}

func PrepareRepo(t *testing.T) ledger.Store {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return inmemdb.NewLedgerRepository(db)
}

func CreateStudent(t *testing.T, repo ledger.Store, code, name, email string) ledger.StudentRef {
	stu, err := repo.CreateStudent(context.Background(), ledger.StudentRef{Code: code, Name: name, Email: email})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return stu
}

// CreateFeeAssignment records a fee for stu; amounts are decimal strings.
func CreateFeeAssignment(
	t *testing.T,
	repo ledger.Store,
	stu ledger.StudentRef,
	feeName, net, paid, balance string,
	dueDate null.Time,
	status ...ledger.Status,
) ledger.FeeAssignment {
	fa := ledger.FeeAssignment{
		Student:    stu,
		FeeName:    feeName,
		NetAmount:  decimal.RequireFromString(net),
		AmountPaid: decimal.RequireFromString(paid),
		Balance:    decimal.RequireFromString(balance),
		DueDate:    dueDate,
	}
	if len(status) > 0 {
		fa.ExplicitStatus = status[0]
	}
	fa, err := repo.CreateFeeAssignment(context.Background(), fa)
	if err != nil {
		t.Fatalf("createFeeAssignment() failed: %v", err)
	}
	return fa
}

// CreatePayment records a payment by studentCode, folded into assignmentID when it is set.
func CreatePayment(t *testing.T, repo ledger.Store, studentCode, amount string, paidAt null.Time, assignmentID string) ledger.PaymentRecord {
	p := ledger.PaymentRecord{
		StudentCode: studentCode,
		Amount:      decimal.RequireFromString(amount),
		PaidAt:      paidAt,
	}
	p, err := repo.CreatePayment(context.Background(), p, assignmentID)
	if err != nil {
		t.Fatalf("createPayment() failed: %v", err)
	}
	return p
}
