package domain

// ============================================================
// Hierarchy views
// ============================================================

// LinkDirection selects which side of the hierarchy a reconciliation run
// maintains for a customer.
type LinkDirection int

const (
	// LinkManagers reconciles the customer's reportingTo list: the managers'
	// reportees are updated.
	LinkManagers LinkDirection = iota
	// LinkReportees reconciles the customer's reportees list: the reportees'
	// reportingTo are updated.
	LinkReportees
)

func (d LinkDirection) String() string {
	if d == LinkManagers {
		return "managers"
	}
	return "reportees"
}

// Inverse is the direction stored on the counterpart records.
func (d LinkDirection) Inverse() LinkDirection {
	if d == LinkManagers {
		return LinkReportees
	}
	return LinkManagers
}

// TreeNode is one customer expanded both upward and downward.
type TreeNode struct {
	Customer
	ReportingToTree []*TreeNode `json:"reportingToTree"`
	ReporteesTree   []*TreeNode `json:"reporteesTree"`
}

// ReconcileResult summarises one reconciliation run.
type ReconcileResult struct {
	Added   []string    `json:"added"`
	Removed []string    `json:"removed"`
	Stubs   []string    `json:"stubs"`
	Touched []*Customer `json:"-"`
}

// Merge folds another result into r.
func (r *ReconcileResult) Merge(o ReconcileResult) {
	r.Added = append(r.Added, o.Added...)
	r.Removed = append(r.Removed, o.Removed...)
	r.Stubs = append(r.Stubs, o.Stubs...)
	r.Touched = append(r.Touched, o.Touched...)
}

// BulkUpdateResult is returned by POST /api/customer/bulk-update.
type BulkUpdateResult struct {
	Success       bool  `json:"success"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// RepairReport is returned by a repair sweep.
type RepairReport struct {
	AccountID     string   `json:"accountId,omitempty"`
	Scanned       int      `json:"scanned"`
	LinksAdded    int      `json:"linksAdded"`
	LinksRemoved  int      `json:"linksRemoved"`
	StubsCreated  []string `json:"stubsCreated"`
	DanglingFixed int      `json:"danglingFixed"`
}

// ImportReport is returned by the CSV import.
type ImportReport struct {
	AccountID string   `json:"accountId"`
	Rows      int      `json:"rows"`
	Upserted  int      `json:"upserted"`
	Skipped   []string `json:"skipped"`
}
