package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/csvimport"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Import upserts parsed spreadsheet rows into accountID. Each row sets its
// manager as the only reportingTo entry, so reportees are filled in by
// reconciliation. Rows without a usable email are skipped.
func (s *CustomerService) Import(ctx context.Context, accountID string, recs []csvimport.Record) (*domain.ImportReport, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.Import")
	defer span.End()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, &domain.ErrValidation{Field: "accountId", Message: "is required"}
	}
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Int("rows", len(recs)))

	report := &domain.ImportReport{AccountID: accountID, Rows: len(recs), Skipped: []string{}}
	for _, rec := range recs {
		if rec.Email == "" {
			report.Skipped = append(report.Skipped, fmt.Sprintf("line %d: no name or email", rec.Line))
			continue
		}

		managers := []string{}
		if rec.ManagerEmail != "" && !strings.EqualFold(rec.ManagerEmail, rec.Email) {
			managers = append(managers, rec.ManagerEmail)
		}
		in := UpsertCustomerInput{
			Email:       rec.Email,
			Name:        &rec.Name,
			Designation: &rec.Designation,
			Location:    &rec.Location,
			AccountID:   &accountID,
			ReportingTo: &managers,
		}
		if len(rec.BusinessUnit) > 0 {
			in.BusinessUnit = &rec.BusinessUnit
		}

		if _, err := s.Upsert(ctx, in); err != nil {
			return report, fmt.Errorf("import line %d (%s): %w", rec.Line, rec.Email, err)
		}
		report.Upserted++
	}

	s.logger.Info("customers imported",
		zap.String("account_id", accountID),
		zap.Int("rows", report.Rows),
		zap.Int("upserted", report.Upserted),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}
