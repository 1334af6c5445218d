package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var hierarchyTracer = otel.Tracer("service/hierarchy")

// LinkReconciler keeps the two sides of the reporting hierarchy in step.
// After a run for customer C in direction d, every record named in C's d
// list carries C in its inverse list and no other record does.
type LinkReconciler struct {
	store   port.CustomerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLinkReconciler creates a reconciler over store. A nil metrics gets a
// private, unexported registry.
func NewLinkReconciler(store port.CustomerStore, metrics *observability.Metrics, logger *zap.Logger) *LinkReconciler {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &LinkReconciler{store: store, metrics: metrics, logger: logger}
}

// ReconcileManagers makes every manager in desired list c among its
// reportees, creating stubs for unknown emails, and drops c from managers
// no longer listed.
func (r *LinkReconciler) ReconcileManagers(ctx context.Context, c *domain.Customer, desired []string) (domain.ReconcileResult, error) {
	return r.reconcile(ctx, c, desired, domain.LinkManagers)
}

// ReconcileReportees is the mirror of ReconcileManagers: reportees in
// desired get c in their reportingTo, removed ones lose it.
func (r *LinkReconciler) ReconcileReportees(ctx context.Context, c *domain.Customer, desired []string) (domain.ReconcileResult, error) {
	return r.reconcile(ctx, c, desired, domain.LinkReportees)
}

func (r *LinkReconciler) reconcile(ctx context.Context, c *domain.Customer, desired []string, dir domain.LinkDirection) (domain.ReconcileResult, error) {
	ctx, span := hierarchyTracer.Start(ctx, "LinkReconciler.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.email", c.Email),
		attribute.String("direction", dir.String()),
	)

	var res domain.ReconcileResult
	want := domain.NormalizeEmails(desired)
	if domain.ContainsEmail(want, c.Email) {
		return res, &domain.ErrValidation{Field: linkField(dir), Message: "a customer cannot reference itself"}
	}

	current, err := r.store.FindMany(ctx, inverseFilter(dir, c.Email))
	if err != nil {
		return res, fmt.Errorf("reconcile %s of %s: load current: %w", dir, c.Email, err)
	}

	wantSet := make(map[string]struct{}, len(want))
	for _, e := range want {
		wantSet[e] = struct{}{}
	}
	currentSet := make(map[string]struct{}, len(current))
	var toRemove []*domain.Customer
	for i := range current {
		other := &current[i]
		currentSet[other.Email] = struct{}{}
		if _, keep := wantSet[other.Email]; !keep {
			toRemove = append(toRemove, other)
		}
	}
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i].Email < toRemove[j].Email })

	inv := dir.Inverse()
	for _, email := range want {
		if _, ok := currentSet[email]; ok {
			continue
		}
		touched, stub, err := r.addLink(ctx, c, email, dir)
		if err != nil {
			return res, fmt.Errorf("reconcile %s of %s: add %s: %w", dir, c.Email, email, err)
		}
		res.Added = append(res.Added, email)
		res.Touched = append(res.Touched, touched)
		if stub {
			res.Stubs = append(res.Stubs, email)
		}
	}

	for _, other := range toRemove {
		links := other.Links(inv)
		kept := make([]string, 0, len(links))
		for _, e := range links {
			if e != c.Email {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(links) {
			continue
		}
		other.SetLinks(inv, kept)
		if err := r.store.Save(ctx, other); err != nil {
			return res, fmt.Errorf("reconcile %s of %s: remove from %s: %w", dir, c.Email, other.Email, err)
		}
		res.Removed = append(res.Removed, other.Email)
		res.Touched = append(res.Touched, other)
	}

	if len(res.Added)+len(res.Removed) > 0 {
		r.logger.Debug("reconciled links",
			zap.String("email", c.Email),
			zap.String("direction", dir.String()),
			zap.Strings("added", res.Added),
			zap.Strings("removed", res.Removed),
		)
	}
	r.metrics.RecordReconcile(dir.String(), len(res.Added), len(res.Removed), len(res.Stubs))
	return res, nil
}

// addLink puts c into the inverse list of email's record, creating a stub
// when the record does not exist yet.
func (r *LinkReconciler) addLink(ctx context.Context, c *domain.Customer, email string, dir domain.LinkDirection) (*domain.Customer, bool, error) {
	inv := dir.Inverse()

	other, err := r.store.FindByEmail(ctx, email)
	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		stub := domain.NewStub(email, c, dir)
		err = r.store.Create(ctx, stub)
		if err == nil {
			r.logger.Info("created stub customer",
				zap.String("email", email),
				zap.String("referrer", c.Email),
				zap.String("direction", dir.String()),
			)
			return stub, true, nil
		}
		var dup *domain.ErrDuplicateKey
		if !errors.As(err, &dup) {
			return nil, false, err
		}
		// Lost a create race: the record exists now.
		other, err = r.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, false, fmt.Errorf("reload %s after lost create race: %w", email, errors.Join(dup, err))
		}
	case err != nil:
		return nil, false, err
	}

	links := other.Links(inv)
	if domain.ContainsEmail(links, c.Email) {
		return other, false, nil
	}
	other.SetLinks(inv, append(links, c.Email))
	if err := r.store.Save(ctx, other); err != nil {
		return nil, false, err
	}
	return other, false, nil
}

func inverseFilter(dir domain.LinkDirection, email string) domain.CustomerFilter {
	if dir == domain.LinkManagers {
		return domain.CustomerFilter{ReporteesContains: email}
	}
	return domain.CustomerFilter{ReportingToContains: email}
}

func linkField(dir domain.LinkDirection) string {
	if dir == domain.LinkManagers {
		return "reportingTo"
	}
	return "reportees"
}
