package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/bursar/core"
)

var NowFunc = time.Now // mockable

// DefaultOrdering is the order assignments are queried in.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: true}, {Field: "id", Ascending: true}}

type (
	Repository interface {
		// QueryFeeAssignments returns every fee assignment with its student and the IDs of its payments.
		QueryFeeAssignments(ctx context.Context, ordering []core.DBOrdering) ([]FeeAssignment, error)
		// QueryPayments returns every recorded payment, whether it belongs to an assignment or not.
		QueryPayments(ctx context.Context) ([]PaymentRecord, error)
	}

	// Store is a Repository that can also record ledger entries.
	Store interface {
		Repository
		CreateStudent(ctx context.Context, ref StudentRef) (StudentRef, error)
		CreateFeeAssignment(ctx context.Context, fa FeeAssignment) (FeeAssignment, error)
		// CreatePayment records p, folding it into the given assignment when assignmentID is set.
		CreatePayment(ctx context.Context, p PaymentRecord, assignmentID string) (PaymentRecord, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// load fetches both ledger sources concurrently and aggregates them as of NowFunc().
func (svc *Service) load(ctx context.Context) ([]Summary, error) {
	var (
		assignments []FeeAssignment
		payments    []PaymentRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = svc.repo.QueryFeeAssignments(gctx, DefaultOrdering)
		return errors.Wrap(err, "querying fee assignments")
	})
	g.Go(func() error {
		var err error
		payments, err = svc.repo.QueryPayments(gctx)
		return errors.Wrap(err, "querying payments")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := Aggregate(assignments, payments, NowFunc())
	svc.logger.Debug("ledger aggregated", map[string]interface{}{
		"assignments": len(assignments),
		"payments":    len(payments),
		"students":    len(summaries),
	})
	return summaries, nil
}

// Summaries returns the aggregated ledger, narrowed down by filter.
func (svc *Service) Summaries(ctx context.Context, filter Filter) ([]Summary, error) {
	if err := filter.Validate(); err != nil {
		return nil, core.TranslateValidationError(err)
	}
	summaries, err := svc.load(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(summaries), nil
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	summaries, err := svc.load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Totals(summaries), nil
}
