package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/memstore"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReconciler(store *memstore.Store) *service.LinkReconciler {
	return service.NewLinkReconciler(store, observability.NewMetrics(), zap.NewNop())
}

func TestReconcileManagers_AddsAndRemoves(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seed(t, store,
		rec("a@x.com", "acct", nil),
		rec("b@x.com", "acct", nil),
		rec("c@x.com", "acct", nil, "a@x.com"),
	)
	r := newReconciler(store)

	a := mustFind(t, store, "a@x.com")
	res, err := r.ReconcileManagers(ctx, a, []string{" B@x.com ", "b@x.com"})
	require.NoError(t, err)
	require.Equal(t, []string{"b@x.com"}, res.Added)
	require.Equal(t, []string{"c@x.com"}, res.Removed)
	require.Empty(t, res.Stubs)
	require.Len(t, res.Touched, 2)

	require.Equal(t, []string{"a@x.com"}, mustFind(t, store, "b@x.com").Reportees)
	require.Empty(t, mustFind(t, store, "c@x.com").Reportees)
}

func TestReconcileManagers_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seed(t, store, rec("a@x.com", "acct", []string{"b@x.com"}), rec("b@x.com", "acct", nil))
	r := newReconciler(store)
	a := mustFind(t, store, "a@x.com")

	first, err := r.ReconcileManagers(ctx, a, a.ReportingTo)
	require.NoError(t, err)
	require.Equal(t, []string{"b@x.com"}, first.Added)

	second, err := r.ReconcileManagers(ctx, a, a.ReportingTo)
	require.NoError(t, err)
	require.Empty(t, second.Added)
	require.Empty(t, second.Removed)
	require.Empty(t, second.Touched)
	require.Equal(t, []string{"a@x.com"}, mustFind(t, store, "b@x.com").Reportees)
}

func TestReconcileManagers_ConvergesFromDrift(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	// a claims b, b does not know; b claims c as a reportee, c disagrees.
	seed(t, store,
		rec("a@x.com", "acct", []string{"b@x.com"}),
		rec("b@x.com", "acct", nil, "c@x.com"),
		rec("c@x.com", "acct", nil),
	)
	r := newReconciler(store)

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		c := mustFind(t, store, email)
		_, err := r.ReconcileManagers(ctx, c, c.ReportingTo)
		require.NoError(t, err)
	}

	require.Equal(t, []string{"a@x.com"}, mustFind(t, store, "b@x.com").Reportees)
	assertInvariant(t, store)
}

func TestReconcile_CreatesStubs(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seed(t, store, rec("a@x.com", "acct-1", nil))
	r := newReconciler(store)
	a := mustFind(t, store, "a@x.com")

	res, err := r.ReconcileManagers(ctx, a, []string{"boss@x.com"})
	require.NoError(t, err)
	require.Equal(t, []string{"boss@x.com"}, res.Stubs)

	boss := mustFind(t, store, "boss@x.com")
	require.Equal(t, "boss@x.com", boss.Name)
	require.Equal(t, "acct-1", boss.AccountID)
	require.Equal(t, []string{"a@x.com"}, boss.Reportees)
	require.Empty(t, boss.ReportingTo)
	require.Equal(t, domain.SentimentUnknown, boss.Sentiment)

	res, err = r.ReconcileReportees(ctx, a, []string{"new@x.com"})
	require.NoError(t, err)
	require.Equal(t, []string{"new@x.com"}, res.Stubs)

	kid := mustFind(t, store, "new@x.com")
	require.Equal(t, []string{"a@x.com"}, kid.ReportingTo)
	require.Empty(t, kid.Reportees)
}

func TestReconcile_RejectsSelfLink(t *testing.T) {
	store := memstore.New()
	seed(t, store, rec("a@x.com", "acct", nil))
	r := newReconciler(store)

	_, err := r.ReconcileReportees(context.Background(), mustFind(t, store, "a@x.com"), []string{"A@x.com"})
	var ve *domain.ErrValidation
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "reportees", ve.Field)
}

// dupOnCreate simulates losing a create race: the record appears just as
// the stub is written.
type dupOnCreate struct {
	*memstore.Store
}

func (d *dupOnCreate) Create(ctx context.Context, c *domain.Customer) error {
	winner := domain.NewCustomer(c.Email)
	winner.Name = "Winner"
	if err := d.Store.Create(ctx, winner); err != nil {
		return err
	}
	return &domain.ErrDuplicateKey{Key: c.Email}
}

func TestReconcile_StubRaceAppendsToWinner(t *testing.T) {
	mem := memstore.New()
	seed(t, mem, rec("a@x.com", "acct", nil))
	store := &dupOnCreate{Store: mem}
	r := service.NewLinkReconciler(store, observability.NewMetrics(), zap.NewNop())

	res, err := r.ReconcileManagers(context.Background(), mustFind(t, mem, "a@x.com"), []string{"boss@x.com"})
	require.NoError(t, err)
	require.Empty(t, res.Stubs)

	boss := mustFind(t, mem, "boss@x.com")
	require.Equal(t, "Winner", boss.Name)
	require.Equal(t, []string{"a@x.com"}, boss.Reportees)
}

// phantomDup reports a duplicate on Create but never stores the record, so
// the reload after the lost race fails.
type phantomDup struct {
	*memstore.Store
}

func (d *phantomDup) Create(_ context.Context, c *domain.Customer) error {
	return &domain.ErrDuplicateKey{Key: c.Email}
}

func TestReconcile_StubRaceReloadFailureKeepsDuplicate(t *testing.T) {
	mem := memstore.New()
	seed(t, mem, rec("a@x.com", "acct", nil))
	r := service.NewLinkReconciler(&phantomDup{Store: mem}, observability.NewMetrics(), zap.NewNop())

	_, err := r.ReconcileManagers(context.Background(), mustFind(t, mem, "a@x.com"), []string{"boss@x.com"})
	require.Error(t, err)
	var dup *domain.ErrDuplicateKey
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "boss@x.com", dup.Key)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestBuildTree_DepthCap(t *testing.T) {
	store := memstore.New()
	const n = 10
	for i := 0; i <= n; i++ {
		var up []string
		var down []string
		if i > 0 {
			up = []string{fmt.Sprintf("e%d@x.com", i-1)}
		}
		if i < n {
			down = []string{fmt.Sprintf("e%d@x.com", i+1)}
		}
		seed(t, store, rec(fmt.Sprintf("e%d@x.com", i), "acct", up, down...))
	}

	tree, err := service.NewTreeBuilder(store, service.DefaultTreeMaxDepth, 2, zap.NewNop()).
		BuildTree(context.Background(), "e0@x.com")
	require.NoError(t, err)

	levels := 0
	for node := tree; node != nil; levels++ {
		if len(node.ReporteesTree) == 0 {
			require.Equal(t, "e5@x.com", node.Email)
			break
		}
		require.Len(t, node.ReporteesTree, 1)
		node = node.ReporteesTree[0]
	}
	require.Equal(t, service.DefaultTreeMaxDepth, levels, "levels below the root")
}

func TestBuildTree_CycleTerminates(t *testing.T) {
	store := memstore.New()
	seed(t, store,
		rec("a@x.com", "acct", []string{"b@x.com"}, "b@x.com"),
		rec("b@x.com", "acct", []string{"a@x.com"}, "a@x.com"),
	)

	tree, err := service.NewTreeBuilder(store, 50, 1, zap.NewNop()).BuildTree(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, tree.ReporteesTree, 1)
	require.Len(t, tree.ReportingToTree, 1)

	b := tree.ReporteesTree[0]
	require.Equal(t, "b@x.com", b.Email)
	require.Empty(t, b.ReporteesTree)
	require.Empty(t, b.ReportingToTree)
}

func TestBuildTree_DiamondUnderEveryParent(t *testing.T) {
	store := memstore.New()
	seed(t, store,
		rec("top@x.com", "acct", nil, "l@x.com", "r@x.com", "ghost@x.com"),
		rec("l@x.com", "acct", []string{"top@x.com"}, "d@x.com"),
		rec("r@x.com", "acct", []string{"top@x.com"}, "d@x.com"),
		rec("d@x.com", "acct", []string{"l@x.com", "r@x.com"}),
	)

	tree, err := service.NewTreeBuilder(store, -1, 4, zap.NewNop()).BuildTree(context.Background(), "TOP@x.com")
	require.NoError(t, err)
	require.Len(t, tree.ReporteesTree, 2, "missing records are dropped")
	require.Equal(t, "l@x.com", tree.ReporteesTree[0].Email)
	require.Equal(t, "r@x.com", tree.ReporteesTree[1].Email)
	for _, mid := range tree.ReporteesTree {
		require.Len(t, mid.ReporteesTree, 1)
		require.Equal(t, "d@x.com", mid.ReporteesTree[0].Email)
	}
}

func TestBuildTree_Errors(t *testing.T) {
	b := service.NewTreeBuilder(memstore.New(), 5, 1, zap.NewNop())

	_, err := b.BuildTree(context.Background(), "nobody@x.com")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))

	_, err = b.BuildTree(context.Background(), "  ")
	var ve *domain.ErrValidation
	require.True(t, errors.As(err, &ve))
}

// inFlightStore records the most FindByEmail calls running at once.
type inFlightStore struct {
	*memstore.Store

	cur  atomic.Int64
	peak atomic.Int64
}

func (s *inFlightStore) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	n := s.cur.Add(1)
	defer s.cur.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return s.Store.FindByEmail(ctx, email)
}

func TestBuildTree_ConcurrencyBoundsWholeBuild(t *testing.T) {
	mem := memstore.New()
	const fanout, depth = 4, 3
	var grow func(email string, level int)
	grow = func(email string, level int) {
		var kids []string
		if level < depth {
			for i := 0; i < fanout; i++ {
				kids = append(kids, fmt.Sprintf("%d-%s", i, email))
			}
		}
		var up []string
		if level > 0 {
			up = []string{email[2:]}
		}
		seed(t, mem, rec(email, "acct", up, kids...))
		for _, k := range kids {
			grow(k, level+1)
		}
	}
	grow("root@x.com", 0)

	store := &inFlightStore{Store: mem}
	tree, err := service.NewTreeBuilder(store, 5, 2, zap.NewNop()).BuildTree(context.Background(), "root@x.com")
	require.NoError(t, err)
	require.Len(t, tree.ReporteesTree, fanout)
	require.Len(t, tree.ReporteesTree[0].ReporteesTree[0].ReporteesTree, fanout)
	require.LessOrEqual(t, store.peak.Load(), int64(2))
	require.GreaterOrEqual(t, store.peak.Load(), int64(1))
}
