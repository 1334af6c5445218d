package domain

import (
	"strings"
	"time"
)

// ============================================================
// Customer (stakeholder) records
// ============================================================

// Sentiment is the stakeholder's attitude towards the engagement.
type Sentiment string

const (
	SentimentHigh    Sentiment = "High"
	SentimentMedium  Sentiment = "Medium"
	SentimentLow     Sentiment = "Low"
	SentimentUnknown Sentiment = "Unknown"
)

// Awareness tracks how far outreach to the stakeholder may go.
type Awareness string

const (
	AwarenessHold      Awareness = "Hold"
	AwarenessEmailOnly Awareness = "Email only"
	AwarenessLow       Awareness = "Low"
	AwarenessGoAhead   Awareness = "Go Ahead"
	AwarenessUnknown   Awareness = "Unknown"
)

// StakeholderType classifies the stakeholder's organizational role/power.
type StakeholderType string

const (
	TypeTechChampion     StakeholderType = "techChampion"
	TypeBusinessChampion StakeholderType = "businessChampion"
	TypeEconomicBuyer    StakeholderType = "economicBuyer"
	TypeCoach            StakeholderType = "coach"
	TypeNoPower          StakeholderType = "noPower"
	TypeInfluential      StakeholderType = "influential"
	TypeUnknown          StakeholderType = "unknown"
	TypeDetractor        StakeholderType = "detractor"
)

// DefaultCost is stored for every cost field the caller leaves empty.
const DefaultCost = "$ 0.00"

// Customer is a stakeholder contact at a client account, keyed by email.
// ReportingTo and Reportees are the two sides of the reporting hierarchy
// and must mirror each other (see service.LinkReconciler).
type Customer struct {
	Email          string          `json:"email" bson:"email"`
	Name           string          `json:"name" bson:"name"`
	Designation    string          `json:"designation" bson:"designation"`
	Location       string          `json:"location" bson:"location"`
	Stage          string          `json:"stage" bson:"stage"`
	Sentiment      Sentiment       `json:"sentiment" bson:"sentiment"`
	Awareness      Awareness       `json:"awareness" bson:"awareness"`
	Type           StakeholderType `json:"type" bson:"type"`
	DecisionMaker  bool            `json:"decisionMaker" bson:"decisionMaker"`
	AccountID      string          `json:"accountId,omitempty" bson:"accountId,omitempty"`
	ReportingTo    []string        `json:"reportingTo" bson:"reportingTo"`
	Reportees      []string        `json:"reportees" bson:"reportees"`
	BusinessUnit   []string        `json:"businessUnit" bson:"businessUnit"`
	AppNames       []string        `json:"appNames" bson:"appNames"`
	AnnualCost     string          `json:"annualCost" bson:"annualCost"`
	AnnualMDBCost  string          `json:"annualMDBCost" bson:"annualMDBCost"`
	MonthlyMDBCost string          `json:"monthlyMDBCost" bson:"monthlyMDBCost"`
	TGO            string          `json:"tgo" bson:"tgo"`
	CTO            string          `json:"cto" bson:"cto"`
	AO             string          `json:"ao" bson:"ao"`
	LogHistory     []LogEntry      `json:"logHistory" bson:"logHistory"`
	CreatedAt      time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// LogEntry is one interaction logged against a customer.
type LogEntry struct {
	ID        string    `json:"id" bson:"id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Summary   string    `json:"summary" bson:"summary"`
	Email     string    `json:"email" bson:"email"`
	Sentiment Sentiment `json:"sentiment" bson:"sentiment"`
	Awareness Awareness `json:"awareness" bson:"awareness"`
	AuthorID  string    `json:"authorId" bson:"authorId"`
}

// NewCustomer returns a record with the schema defaults applied.
func NewCustomer(email string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		Email:          NormalizeEmail(email),
		Sentiment:      SentimentUnknown,
		Awareness:      AwarenessUnknown,
		Type:           TypeUnknown,
		ReportingTo:    []string{},
		Reportees:      []string{},
		BusinessUnit:   []string{},
		AppNames:       []string{},
		AnnualCost:     DefaultCost,
		AnnualMDBCost:  DefaultCost,
		MonthlyMDBCost: DefaultCost,
		LogHistory:     []LogEntry{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewStub builds the placeholder created when referrer's dir list names an
// email with no record. The stub only links back to referrer.
func NewStub(email string, referrer *Customer, dir LinkDirection) *Customer {
	c := NewCustomer(email)
	c.Name = c.Email
	c.AccountID = referrer.AccountID
	switch dir {
	case LinkManagers:
		c.Reportees = []string{referrer.Email}
	case LinkReportees:
		c.ReportingTo = []string{referrer.Email}
	}
	return c
}

// Clone returns a deep copy so callers can mutate link slices freely.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	out := *c
	out.ReportingTo = cloneStrings(c.ReportingTo)
	out.Reportees = cloneStrings(c.Reportees)
	out.BusinessUnit = cloneStrings(c.BusinessUnit)
	out.AppNames = cloneStrings(c.AppNames)
	out.LogHistory = append([]LogEntry{}, c.LogHistory...)
	return &out
}

// ApplyDefaults fills zero values left by older records or partial payloads.
func (c *Customer) ApplyDefaults() {
	if c.Sentiment == "" {
		c.Sentiment = SentimentUnknown
	}
	if c.Awareness == "" {
		c.Awareness = AwarenessUnknown
	}
	if c.Type == "" {
		c.Type = TypeUnknown
	}
	if c.AnnualCost == "" {
		c.AnnualCost = DefaultCost
	}
	if c.AnnualMDBCost == "" {
		c.AnnualMDBCost = DefaultCost
	}
	if c.MonthlyMDBCost == "" {
		c.MonthlyMDBCost = DefaultCost
	}
	if c.ReportingTo == nil {
		c.ReportingTo = []string{}
	}
	if c.Reportees == nil {
		c.Reportees = []string{}
	}
	if c.BusinessUnit == nil {
		c.BusinessUnit = []string{}
	}
	if c.AppNames == nil {
		c.AppNames = []string{}
	}
	if c.LogHistory == nil {
		c.LogHistory = []LogEntry{}
	}
}

// Links returns the link slice for dir: the managers list for LinkManagers
// and the reportees list for LinkReportees.
func (c *Customer) Links(dir LinkDirection) []string {
	if dir == LinkManagers {
		return c.ReportingTo
	}
	return c.Reportees
}

// SetLinks replaces the link slice for dir.
func (c *Customer) SetLinks(dir LinkDirection, emails []string) {
	if dir == LinkManagers {
		c.ReportingTo = emails
		return
	}
	c.Reportees = emails
}

// NormalizeEmail is the canonical identity of a customer: trimmed, lower-case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeEmails canonicalises, drops empties and dedupes keeping first-seen order.
func NormalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		n := NormalizeEmail(e)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ContainsEmail reports whether list holds email.
func ContainsEmail(list []string, email string) bool {
	for _, e := range list {
		if e == email {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

// CustomerFilter selects records for FindMany. Zero fields are ignored;
// multiple set fields are ANDed.
type CustomerFilter struct {
	AccountID           string
	ReporteesContains   string
	ReportingToContains string
	EmailIn             []string
}
