package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/port"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/customer")

const accountCacheName = "account"

// CustomerService implements every customer use case. All writes that touch
// reporting links go through the LinkReconciler.
type CustomerService struct {
	store      port.CustomerStore
	reconciler *LinkReconciler
	trees      *TreeBuilder
	cache      port.Cache[[]domain.Customer]
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewCustomerService creates the customer service with all dependencies injected.
// cache may be nil to disable the account list cache. A nil metrics gets a
// private, unexported registry.
func NewCustomerService(
	store port.CustomerStore,
	trees *TreeBuilder,
	cache port.Cache[[]domain.Customer],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CustomerService {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &CustomerService{
		store:      store,
		reconciler: NewLinkReconciler(store, metrics, logger),
		trees:      trees,
		cache:      cache,
		validate:   newValidator(),
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ============================================================
// Writes
// ============================================================

// Upsert creates or updates a customer and reconciles both link directions.
// When the store has no transactions and the record was written but link
// repair failed, the error is *domain.ErrLinkRepair.
func (s *CustomerService) Upsert(ctx context.Context, in UpsertCustomerInput) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.Upsert")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("upsert", time.Since(start)) }()

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "is required"}
	}
	in.Email = email
	span.SetAttributes(attribute.String("customer.email", email))

	var err error
	if in.ReportingTo, err = normalizeLinks("reportingTo", email, in.ReportingTo); err != nil {
		return nil, err
	}
	if in.Reportees, err = normalizeLinks("reportees", email, in.Reportees); err != nil {
		return nil, err
	}

	var (
		saved     *domain.Customer
		touched   []*domain.Customer
		oldAcct   string
		committed bool
	)
	inTx, err := port.RunInTx(ctx, s.store, func(ctx context.Context) error {
		saved, touched, oldAcct, committed = nil, nil, "", false

		c, err := s.store.FindByEmail(ctx, email)
		var notFound *domain.ErrNotFound
		created := false
		switch {
		case errors.As(err, &notFound):
			c = domain.NewCustomer(email)
			created = true
		case err != nil:
			return fmt.Errorf("load customer: %w", err)
		default:
			oldAcct = c.AccountID
		}

		in.applyTo(c, s.now())
		if created {
			err = s.store.Create(ctx, c)
		} else {
			err = s.store.Save(ctx, c)
		}
		if err != nil {
			return fmt.Errorf("write customer: %w", err)
		}
		committed = true
		saved = c

		res, err := s.reconcileBoth(ctx, c, c.ReportingTo, c.Reportees)
		touched = res.Touched
		return err
	})
	if err != nil {
		if !inTx && committed {
			return nil, &domain.ErrLinkRepair{Email: email, Err: err}
		}
		return nil, err
	}

	s.invalidate(ctx, append(touched, saved), oldAcct)
	s.logger.Info("customer upserted",
		zap.String("email", email),
		zap.String("account_id", saved.AccountID),
		zap.Int("links_touched", len(touched)),
	)
	return saved, nil
}

// Delete removes a customer after detaching it from every manager and
// reportee.
func (s *CustomerService) Delete(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "CustomerService.Delete")
	defer span.End()

	email = domain.NormalizeEmail(email)
	span.SetAttributes(attribute.String("customer.email", email))

	var (
		acct      string
		touched   []*domain.Customer
		committed bool
	)
	inTx, err := port.RunInTx(ctx, s.store, func(ctx context.Context) error {
		touched, committed = nil, false

		c, err := s.store.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		acct = c.AccountID

		res, err := s.reconcileBoth(ctx, c, nil, nil)
		touched = res.Touched
		if len(touched) > 0 {
			committed = true
		}
		if err != nil {
			return err
		}

		n, err := s.store.DeleteByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: "customer", ID: email}
		}
		return nil
	})
	if err != nil {
		if !inTx && committed {
			return &domain.ErrLinkRepair{Email: email, Err: err}
		}
		return err
	}

	s.invalidate(ctx, touched, acct)
	s.logger.Info("customer deleted", zap.String("email", email), zap.Int("links_touched", len(touched)))
	return nil
}

// BulkUpdate applies reporting-line updates in order, each one with the
// same effect as an upsert of that customer's link lists.
func (s *CustomerService) BulkUpdate(ctx context.Context, in BulkUpdateInput) (*domain.BulkUpdateResult, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.BulkUpdate")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	span.SetAttributes(attribute.Int("updates", len(in.Updates)))

	// Normalize everything up front so nothing is written for a bad payload.
	items := make([]BulkUpdateItem, len(in.Updates))
	for i, u := range in.Updates {
		email := domain.NormalizeEmail(u.Email)
		if email == "" {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("updates[%d].email", i), Message: "is required"}
		}
		rt, err := normalizeLinks(fmt.Sprintf("updates[%d].reportingTo", i), email, u.ReportingTo)
		if err != nil {
			return nil, err
		}
		re, err := normalizeLinks(fmt.Sprintf("updates[%d].reportees", i), email, u.Reportees)
		if err != nil {
			return nil, err
		}
		items[i] = BulkUpdateItem{Email: email, ReportingTo: rt, Reportees: re}
	}

	result := &domain.BulkUpdateResult{}
	var (
		touched []*domain.Customer
		wrote   bool
		lastKey string
	)
	inTx, err := port.RunInTx(ctx, s.store, func(ctx context.Context) error {
		*result = domain.BulkUpdateResult{}
		touched, wrote = nil, false

		for _, u := range items {
			lastKey = u.Email
			c, err := s.store.FindByEmail(ctx, u.Email)
			var notFound *domain.ErrNotFound
			if errors.As(err, &notFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", u.Email, err)
			}
			if in.AccountID != "" && c.AccountID != in.AccountID {
				continue
			}
			result.MatchedCount++

			changed := false
			if u.ReportingTo != nil && !slices.Equal(c.ReportingTo, *u.ReportingTo) {
				c.ReportingTo = *u.ReportingTo
				changed = true
			}
			if u.Reportees != nil && !slices.Equal(c.Reportees, *u.Reportees) {
				c.Reportees = *u.Reportees
				changed = true
			}
			if changed {
				if err := s.store.Save(ctx, c); err != nil {
					return fmt.Errorf("write %s: %w", u.Email, err)
				}
				wrote = true
				result.ModifiedCount++
				touched = append(touched, c)
			}

			res, err := s.reconcileBoth(ctx, c, c.ReportingTo, c.Reportees)
			touched = append(touched, res.Touched...)
			if len(res.Touched) > 0 {
				wrote = true
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !inTx && wrote {
			return nil, &domain.ErrLinkRepair{Email: lastKey, Err: err}
		}
		return nil, err
	}

	s.invalidate(ctx, touched, in.AccountID)
	result.Success = true
	return result, nil
}

// reconcileBoth runs the managers pass then the reportees pass for c.
func (s *CustomerService) reconcileBoth(ctx context.Context, c *domain.Customer, managers, reportees []string) (domain.ReconcileResult, error) {
	res, err := s.reconciler.ReconcileManagers(ctx, c, managers)
	if err != nil {
		return res, err
	}
	down, err := s.reconciler.ReconcileReportees(ctx, c, reportees)
	res.Merge(down)
	return res, err
}

// ============================================================
// Reads
// ============================================================

// Get returns one customer.
func (s *CustomerService) Get(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.Get")
	defer span.End()

	return s.store.FindByEmail(ctx, domain.NormalizeEmail(email))
}

// List returns every customer.
func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.List")
	defer span.End()

	return s.store.FindMany(ctx, domain.CustomerFilter{})
}

// ListByAccount returns the customers of one account, served from the cache
// when possible.
func (s *CustomerService) ListByAccount(ctx context.Context, accountID string) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.ListByAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "accountId", Message: "is required"}
	}

	key := accountCacheKey(accountID)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			s.metrics.IncrCacheHit(accountCacheName)
			return cloneCustomers(cached), nil
		}
		s.metrics.IncrCacheMiss(accountCacheName)
	}

	list, err := s.store.FindMany(ctx, domain.CustomerFilter{AccountID: accountID})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, cloneCustomers(list))
	}
	return list, nil
}

// Tree returns the recursive hierarchy around email.
func (s *CustomerService) Tree(ctx context.Context, email string) (*domain.TreeNode, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.Tree")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("tree", time.Since(start)) }()

	return s.trees.BuildTree(ctx, email)
}

// AccountOrgChart returns the account's customers with manager reportees
// patched in memory from the reportees' reportingTo, matching emails without
// regard to case. Nothing is written back; the repair sweep does that.
func (s *CustomerService) AccountOrgChart(ctx context.Context, accountID string) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.AccountOrgChart")
	defer span.End()

	list, err := s.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	repairs := ReadRepair(list)
	if repairs > 0 {
		s.metrics.AddReadRepairs(repairs)
		s.logger.Warn("org chart served with read-repaired links",
			zap.String("account_id", accountID),
			zap.Int("repairs", repairs),
		)
	}
	return list, nil
}

// ReadRepair adds each customer to its managers' reportees within list when
// missing and returns how many links it added.
func ReadRepair(list []domain.Customer) int {
	index := make(map[string]int, len(list))
	for i := range list {
		index[domain.NormalizeEmail(list[i].Email)] = i
	}

	repairs := 0
	for i := range list {
		me := domain.NormalizeEmail(list[i].Email)
		for _, m := range list[i].ReportingTo {
			j, ok := index[domain.NormalizeEmail(m)]
			if !ok {
				continue
			}
			mgr := &list[j]
			found := false
			for _, r := range mgr.Reportees {
				if domain.NormalizeEmail(r) == me {
					found = true
					break
				}
			}
			if !found {
				mgr.Reportees = append(mgr.Reportees, list[i].Email)
				repairs++
			}
		}
	}
	return repairs
}

// ============================================================
// Cache helpers
// ============================================================

func accountCacheKey(accountID string) string {
	return "account:" + accountID
}

// invalidate drops the cached lists of every account a write touched.
func (s *CustomerService) invalidate(ctx context.Context, touched []*domain.Customer, extra ...string) {
	if s.cache == nil {
		return
	}
	seen := map[string]struct{}{}
	drop := func(acct string) {
		if acct == "" {
			return
		}
		if _, ok := seen[acct]; ok {
			return
		}
		seen[acct] = struct{}{}
		s.cache.Delete(ctx, accountCacheKey(acct))
	}
	for _, c := range touched {
		if c != nil {
			drop(c.AccountID)
		}
	}
	for _, a := range extra {
		drop(a)
	}
}

func cloneCustomers(in []domain.Customer) []domain.Customer {
	out := make([]domain.Customer, len(in))
	for i := range in {
		out[i] = *in[i].Clone()
	}
	return out
}
