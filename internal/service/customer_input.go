package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ============================================================
// Request payloads
// ============================================================

// UpsertCustomerInput is the create-or-update payload. Nil fields leave the
// stored value unchanged; for the link lists an empty slice clears them.
type UpsertCustomerInput struct {
	Email          string                  `json:"email" validate:"required,max=320"`
	Name           *string                 `json:"name,omitempty"`
	Designation    *string                 `json:"designation,omitempty"`
	Location       *string                 `json:"location,omitempty"`
	Stage          *string                 `json:"stage,omitempty"`
	Sentiment      *domain.Sentiment       `json:"sentiment,omitempty" validate:"omitempty,oneof=High Medium Low Unknown"`
	Awareness      *domain.Awareness       `json:"awareness,omitempty" validate:"omitempty,oneof=Hold 'Email only' Low 'Go Ahead' Unknown"`
	Type           *domain.StakeholderType `json:"type,omitempty" validate:"omitempty,oneof=techChampion businessChampion economicBuyer coach noPower influential unknown detractor"`
	DecisionMaker  *bool                   `json:"decisionMaker,omitempty"`
	AccountID      *string                 `json:"accountId,omitempty"`
	ReportingTo    *[]string               `json:"reportingTo,omitempty"`
	Reportees      *[]string               `json:"reportees,omitempty"`
	BusinessUnit   *[]string               `json:"businessUnit,omitempty"`
	AppNames       *[]string               `json:"appNames,omitempty"`
	AnnualCost     *string                 `json:"annualCost,omitempty"`
	AnnualMDBCost  *string                 `json:"annualMDBCost,omitempty"`
	MonthlyMDBCost *string                 `json:"monthlyMDBCost,omitempty"`
	TGO            *string                 `json:"tgo,omitempty"`
	CTO            *string                 `json:"cto,omitempty"`
	AO             *string                 `json:"ao,omitempty"`
	LogEntry       *LogEntryInput          `json:"logEntry,omitempty"`
}

// LogEntryInput appends one interaction to the customer's history.
type LogEntryInput struct {
	Summary   string           `json:"summary" validate:"required"`
	Email     string           `json:"email,omitempty"`
	Sentiment domain.Sentiment `json:"sentiment,omitempty" validate:"omitempty,oneof=High Medium Low Unknown"`
	Awareness domain.Awareness `json:"awareness,omitempty" validate:"omitempty,oneof=Hold 'Email only' Low 'Go Ahead' Unknown"`
	AuthorID  string           `json:"authorId,omitempty"`
}

// BulkUpdateInput rewrites reporting lines for several customers.
type BulkUpdateInput struct {
	AccountID string           `json:"accountId,omitempty"`
	Updates   []BulkUpdateItem `json:"updates" validate:"required,min=1,dive"`
}

// BulkUpdateItem is one entry of BulkUpdateInput.
type BulkUpdateItem struct {
	Email       string    `json:"email" validate:"required"`
	ReportingTo *[]string `json:"reportingTo,omitempty"`
	Reportees   *[]string `json:"reportees,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a domain error.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}
	fe := ves[0]
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required":
		return &domain.ErrValidation{Field: field, Message: "is required"}
	case "min":
		return &domain.ErrValidation{Field: field, Message: "must be a non-empty array"}
	case "oneof":
		return &domain.ErrValidation{Field: field, Message: "must be one of: " + fe.Param()}
	default:
		return &domain.ErrValidation{Field: field, Message: fmt.Sprintf("failed '%s' validation", fe.Tag())}
	}
}

// normalizeLinks canonicalises an optional link list and rejects self links.
func normalizeLinks(field, self string, links *[]string) (*[]string, error) {
	if links == nil {
		return nil, nil
	}
	out := domain.NormalizeEmails(*links)
	if domain.ContainsEmail(out, self) {
		return nil, &domain.ErrValidation{Field: field, Message: "a customer cannot reference itself"}
	}
	return &out, nil
}

// applyTo copies the set fields onto c. Link lists must already be normalized.
func (in *UpsertCustomerInput) applyTo(c *domain.Customer, now time.Time) {
	setString(&c.Name, in.Name)
	setString(&c.Designation, in.Designation)
	setString(&c.Location, in.Location)
	setString(&c.Stage, in.Stage)
	setString(&c.AnnualCost, in.AnnualCost)
	setString(&c.AnnualMDBCost, in.AnnualMDBCost)
	setString(&c.MonthlyMDBCost, in.MonthlyMDBCost)
	setString(&c.TGO, in.TGO)
	setString(&c.CTO, in.CTO)
	setString(&c.AO, in.AO)
	if in.AccountID != nil {
		c.AccountID = strings.TrimSpace(*in.AccountID)
	}
	if in.Sentiment != nil {
		c.Sentiment = *in.Sentiment
	}
	if in.Awareness != nil {
		c.Awareness = *in.Awareness
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.DecisionMaker != nil {
		c.DecisionMaker = *in.DecisionMaker
	}
	if in.ReportingTo != nil {
		c.ReportingTo = *in.ReportingTo
	}
	if in.Reportees != nil {
		c.Reportees = *in.Reportees
	}
	if in.BusinessUnit != nil {
		c.BusinessUnit = append([]string{}, *in.BusinessUnit...)
	}
	if in.AppNames != nil {
		c.AppNames = append([]string{}, *in.AppNames...)
	}
	if in.Name == nil && c.Name == "" {
		c.Name = c.Email
	}
	c.ApplyDefaults()

	if le := in.LogEntry; le != nil {
		entry := domain.LogEntry{
			ID:        uuid.NewString(),
			Timestamp: now,
			Summary:   le.Summary,
			Email:     domain.NormalizeEmail(le.Email),
			Sentiment: le.Sentiment,
			Awareness: le.Awareness,
			AuthorID:  le.AuthorID,
		}
		if entry.Email == "" {
			entry.Email = c.Email
		}
		if entry.Sentiment == "" {
			entry.Sentiment = c.Sentiment
		}
		if entry.Awareness == "" {
			entry.Awareness = c.Awareness
		}
		c.LogHistory = append(c.LogHistory, entry)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
