package supabase

import (
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
)

// ============================================================
// Row mapping and PostgREST query helpers
// ============================================================

// customerRow maps the customers table columns.
type customerRow struct {
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	Designation    string            `json:"designation"`
	Location       string            `json:"location"`
	Stage          string            `json:"stage"`
	Sentiment      string            `json:"sentiment"`
	Awareness      string            `json:"awareness"`
	Type           string            `json:"type"`
	DecisionMaker  bool              `json:"decision_maker"`
	AccountID      *string           `json:"account_id"`
	ReportingTo    []string          `json:"reporting_to"`
	Reportees      []string          `json:"reportees"`
	BusinessUnit   []string          `json:"business_unit"`
	AppNames       []string          `json:"app_names"`
	AnnualCost     string            `json:"annual_cost"`
	AnnualMDBCost  string            `json:"annual_mdb_cost"`
	MonthlyMDBCost string            `json:"monthly_mdb_cost"`
	TGO            string            `json:"tgo"`
	CTO            string            `json:"cto"`
	AO             string            `json:"ao"`
	LogHistory     []domain.LogEntry `json:"log_history"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toRow(c *domain.Customer) customerRow {
	r := customerRow{
		Email:          c.Email,
		Name:           c.Name,
		Designation:    c.Designation,
		Location:       c.Location,
		Stage:          c.Stage,
		Sentiment:      string(c.Sentiment),
		Awareness:      string(c.Awareness),
		Type:           string(c.Type),
		DecisionMaker:  c.DecisionMaker,
		ReportingTo:    orEmpty(c.ReportingTo),
		Reportees:      orEmpty(c.Reportees),
		BusinessUnit:   orEmpty(c.BusinessUnit),
		AppNames:       orEmpty(c.AppNames),
		AnnualCost:     c.AnnualCost,
		AnnualMDBCost:  c.AnnualMDBCost,
		MonthlyMDBCost: c.MonthlyMDBCost,
		TGO:            c.TGO,
		CTO:            c.CTO,
		AO:             c.AO,
		LogHistory:     c.LogHistory,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.AccountID != "" {
		r.AccountID = &c.AccountID
	}
	if r.LogHistory == nil {
		r.LogHistory = []domain.LogEntry{}
	}
	return r
}

func (r customerRow) toDomain() domain.Customer {
	c := domain.Customer{
		Email:          r.Email,
		Name:           r.Name,
		Designation:    r.Designation,
		Location:       r.Location,
		Stage:          r.Stage,
		Sentiment:      domain.Sentiment(r.Sentiment),
		Awareness:      domain.Awareness(r.Awareness),
		Type:           domain.StakeholderType(r.Type),
		DecisionMaker:  r.DecisionMaker,
		ReportingTo:    r.ReportingTo,
		Reportees:      r.Reportees,
		BusinessUnit:   r.BusinessUnit,
		AppNames:       r.AppNames,
		AnnualCost:     r.AnnualCost,
		AnnualMDBCost:  r.AnnualMDBCost,
		MonthlyMDBCost: r.MonthlyMDBCost,
		TGO:            r.TGO,
		CTO:            r.CTO,
		AO:             r.AO,
		LogHistory:     r.LogHistory,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.AccountID != nil {
		c.AccountID = *r.AccountID
	}
	c.ApplyDefaults()
	return c
}

// filterQuery renders a CustomerFilter as PostgREST query parameters.
func filterQuery(f domain.CustomerFilter) url.Values {
	q := url.Values{}
	if f.AccountID != "" {
		q.Set("account_id", "eq."+f.AccountID)
	}
	if f.ReporteesContains != "" {
		q.Set("reportees", "cs."+arrayLiteral(f.ReporteesContains))
	}
	if f.ReportingToContains != "" {
		q.Set("reporting_to", "cs."+arrayLiteral(f.ReportingToContains))
	}
	if f.EmailIn != nil {
		quoted := make([]string, len(f.EmailIn))
		for i, e := range f.EmailIn {
			quoted[i] = quote(e)
		}
		q.Set("email", "in.("+strings.Join(quoted, ",")+")")
	}
	q.Set("order", "email.asc")
	return q
}

func emailQuery(email string) string {
	return url.Values{"email": {"eq." + email}}.Encode()
}

func arrayLiteral(v string) string {
	return "{" + quote(v) + "}"
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`) + `"`
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
