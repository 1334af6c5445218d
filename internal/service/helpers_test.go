package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/memstore"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/port"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// plainStore hides RunInTx so the service sees a backend without
// transactions.
type plainStore struct {
	port.CustomerStore
}

// failingStore fails Save for one email until cleared.
type failingStore struct {
	*memstore.Store

	mu     sync.Mutex
	failOn string
}

var errInjected = errors.New("injected store failure")

func (f *failingStore) Save(ctx context.Context, c *domain.Customer) error {
	f.mu.Lock()
	fail := f.failOn != "" && f.failOn == c.Email
	f.mu.Unlock()
	if fail {
		return &domain.ErrStoreFailure{Op: "save", Err: errInjected}
	}
	return f.Store.Save(ctx, c)
}

func (f *failingStore) setFail(email string) {
	f.mu.Lock()
	f.failOn = email
	f.mu.Unlock()
}

// --- Helpers ---

func newService(store port.CustomerStore, cache port.Cache[[]domain.Customer]) *service.CustomerService {
	logger := zap.NewNop()
	trees := service.NewTreeBuilder(store, service.DefaultTreeMaxDepth, 4, logger)
	return service.NewCustomerService(store, trees, cache, observability.NewMetrics(), logger)
}

func strs(v ...string) *[]string {
	if v == nil {
		v = []string{}
	}
	return &v
}

func str(v string) *string { return &v }

// seed writes records as-is, bypassing reconciliation.
func seed(t *testing.T, store port.CustomerStore, customers ...*domain.Customer) {
	t.Helper()
	for _, c := range customers {
		if err := store.Create(context.Background(), c); err != nil {
			t.Fatalf("seed %s: %v", c.Email, err)
		}
	}
}

func rec(email, account string, reportingTo []string, reportees ...string) *domain.Customer {
	c := domain.NewCustomer(email)
	c.Name = email
	c.AccountID = account
	if reportingTo != nil {
		c.ReportingTo = reportingTo
	}
	if reportees != nil {
		c.Reportees = reportees
	}
	return c
}

func mustFind(t *testing.T, store port.CustomerStore, email string) *domain.Customer {
	t.Helper()
	c, err := store.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	return c
}

// assertInvariant checks B in A.reportees <=> A in B.reportingTo over the
// whole store, and that every link names an existing record.
func assertInvariant(t *testing.T, store port.CustomerStore) {
	t.Helper()
	all, err := store.FindMany(context.Background(), domain.CustomerFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byEmail := make(map[string]domain.Customer, len(all))
	for _, c := range all {
		byEmail[c.Email] = c
	}
	for _, a := range all {
		for _, b := range a.Reportees {
			other, ok := byEmail[b]
			if !ok {
				t.Fatalf("%s lists missing reportee %s", a.Email, b)
			}
			if !domain.ContainsEmail(other.ReportingTo, a.Email) {
				t.Fatalf("%s lists reportee %s, but %s.reportingTo = %v", a.Email, b, b, other.ReportingTo)
			}
		}
		for _, m := range a.ReportingTo {
			other, ok := byEmail[m]
			if !ok {
				t.Fatalf("%s reports to missing %s", a.Email, m)
			}
			if !domain.ContainsEmail(other.Reportees, a.Email) {
				t.Fatalf("%s reports to %s, but %s.reportees = %v", a.Email, m, m, other.Reportees)
			}
		}
	}
}
