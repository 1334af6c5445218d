package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Repair heals the hierarchy of one account, or of every customer when
// accountID is empty. reportingTo is authoritative: each customer's managers
// are reconciled from it, which also drops reportees entries that the named
// customer does not confirm. Reportees naming emails with no record then
// get stubs reporting back to the manager.
func (s *CustomerService) Repair(ctx context.Context, accountID string) (*domain.RepairReport, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.Repair")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	report := &domain.RepairReport{AccountID: accountID, StubsCreated: []string{}}
	filter := domain.CustomerFilter{AccountID: accountID}

	list, err := s.store.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	report.Scanned = len(list)

	var touched []*domain.Customer

	// Canonical link lists first, so the reconciliation below compares
	// like with like.
	for i := range list {
		c := &list[i]
		managers := canonicalLinks(c.ReportingTo, c.Email)
		reportees := canonicalLinks(c.Reportees, c.Email)
		if slices.Equal(managers, c.ReportingTo) && slices.Equal(reportees, c.Reportees) {
			continue
		}
		c.ReportingTo, c.Reportees = managers, reportees
		if err := s.store.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("canonicalize %s: %w", c.Email, err)
		}
		touched = append(touched, c)
	}

	for _, snap := range list {
		// fn may run more than once; only the committed attempt counts.
		var res domain.ReconcileResult
		_, err := port.RunInTx(ctx, s.store, func(ctx context.Context) error {
			res = domain.ReconcileResult{}
			c, err := s.store.FindByEmail(ctx, snap.Email)
			if err != nil {
				return err
			}
			res, err = s.reconciler.ReconcileManagers(ctx, c, c.ReportingTo)
			return err
		})
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("repair managers of %s: %w", snap.Email, err)
		}
		report.LinksAdded += len(res.Added)
		report.LinksRemoved += len(res.Removed)
		report.StubsCreated = append(report.StubsCreated, res.Stubs...)
		touched = append(touched, res.Touched...)
	}

	// Dangling reportees: the entry names nobody, so nobody's reportingTo
	// could have removed it above.
	list, err = s.store.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	for i := range list {
		mgr := &list[i]
		for _, e := range mgr.Reportees {
			_, err := s.store.FindByEmail(ctx, e)
			var notFound *domain.ErrNotFound
			if !errors.As(err, &notFound) {
				if err != nil {
					return nil, fmt.Errorf("check reportee %s: %w", e, err)
				}
				continue
			}
			stub := domain.NewStub(e, mgr, domain.LinkReportees)
			if err := s.store.Create(ctx, stub); err != nil {
				var dup *domain.ErrDuplicateKey
				if errors.As(err, &dup) {
					continue
				}
				return nil, fmt.Errorf("create stub %s: %w", e, err)
			}
			report.DanglingFixed++
			report.StubsCreated = append(report.StubsCreated, e)
			touched = append(touched, stub)
		}
	}

	s.invalidate(ctx, touched, accountID)
	s.logger.Info("hierarchy repair finished",
		zap.String("account_id", accountID),
		zap.Int("scanned", report.Scanned),
		zap.Int("links_added", report.LinksAdded),
		zap.Int("links_removed", report.LinksRemoved),
		zap.Int("stubs_created", len(report.StubsCreated)),
	)
	return report, nil
}

func canonicalLinks(links []string, self string) []string {
	return slices.DeleteFunc(domain.NormalizeEmails(links), func(e string) bool { return e == self })
}
