package service

import (
	"context"
	"strings"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/orgchart"

	"go.opentelemetry.io/otel/attribute"
)

// LayoutRequest selects what part of an account chart to draw and how.
type LayoutRequest struct {
	Focus      string
	UpDepth    int
	DownDepth  int
	Variant    string
	Connectors string
}

// AccountLayout is a composed chart together with the scoped tree it was
// built from.
type AccountLayout struct {
	Tree  *orgchart.ScopedTree `json:"tree"`
	Chart *orgchart.Chart      `json:"chart"`
}

// AccountLayout scopes the account's org chart around req.Focus and lays it
// out. Without a focus the first top-level customer is used.
func (s *CustomerService) AccountLayout(ctx context.Context, accountID string, req LayoutRequest) (*AccountLayout, error) {
	ctx, span := tracer.Start(ctx, "CustomerService.AccountLayout")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("focus", req.Focus),
	)

	if _, err := orgchart.SizesFor(req.Variant); err != nil {
		return nil, &domain.ErrValidation{Field: "variant", Message: "must be one of: compact regular"}
	}
	switch req.Connectors {
	case "", orgchart.ConnectorCurved, orgchart.ConnectorStraight:
	default:
		return nil, &domain.ErrValidation{Field: "connectors", Message: "must be one of: curved straight"}
	}

	list, err := s.AccountOrgChart(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	top := orgchart.TopLevel(list)
	focus := domain.NormalizeEmail(req.Focus)
	switch {
	case focus != "":
		found := false
		for i := range list {
			if strings.EqualFold(list[i].Email, focus) {
				found = true
				break
			}
		}
		if !found {
			return nil, &domain.ErrNotFound{Resource: "customer", ID: focus}
		}
	case len(top) > 0:
		focus = top[0].Email
	default:
		focus = list[0].Email
	}

	tree := orgchart.BuildScopedTree(list, focus, req.UpDepth, req.DownDepth)
	chart, err := orgchart.Compose(tree, top, orgchart.Options{Variant: req.Variant, Connectors: req.Connectors})
	if err != nil {
		return nil, &domain.ErrValidation{Field: "layout", Message: err.Error()}
	}
	return &AccountLayout{Tree: tree, Chart: chart}, nil
}
