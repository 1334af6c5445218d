package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/postgres"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStore needs TEST_DATABASE_URL pointing at a disposable database.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, "TRUNCATE customers")
	require.NoError(t, err)
	return postgres.New(pool, zap.NewNop())
}

func TestStore_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := domain.NewCustomer("a@x.com")
	c.AccountID = "acct"
	c.ReportingTo = []string{"b@x.com"}
	c.LogHistory = []domain.LogEntry{{ID: "1", Summary: "hello", Sentiment: domain.SentimentHigh}}
	require.NoError(t, store.Create(ctx, c))

	var dup *domain.ErrDuplicateKey
	require.ErrorAs(t, store.Create(ctx, domain.NewCustomer("a@x.com")), &dup)

	got, err := store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "acct", got.AccountID)
	require.Equal(t, []string{"b@x.com"}, got.ReportingTo)
	require.Equal(t, []string{}, got.Reportees)
	require.Len(t, got.LogHistory, 1)
	require.Equal(t, domain.SentimentHigh, got.LogHistory[0].Sentiment)

	got.Reportees = []string{"c@x.com"}
	require.NoError(t, store.Save(ctx, got))

	list, err := store.FindMany(ctx, domain.CustomerFilter{ReporteesContains: "c@x.com"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = store.FindMany(ctx, domain.CustomerFilter{EmailIn: []string{}})
	require.NoError(t, err)
	require.Empty(t, list)

	var nf *domain.ErrNotFound
	require.ErrorAs(t, store.Save(ctx, domain.NewCustomer("ghost@x.com")), &nf)

	n, err := store.DeleteByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, err = store.FindByEmail(ctx, "a@x.com")
	require.ErrorAs(t, err, &nf)
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Create(ctx, domain.NewCustomer("tx@x.com")))
		return &domain.ErrValidation{Field: "x", Message: "abort"}
	})
	require.Error(t, err)

	var nf *domain.ErrNotFound
	_, err = store.FindByEmail(ctx, "tx@x.com")
	require.ErrorAs(t, err, &nf)
}

func TestStore_CreateDuplicateKeepsTxUsable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewCustomer("boss@x.com")))

	err := store.RunInTx(ctx, func(ctx context.Context) error {
		var dup *domain.ErrDuplicateKey
		require.ErrorAs(t, store.Create(ctx, domain.NewCustomer("boss@x.com")), &dup)

		boss, err := store.FindByEmail(ctx, "boss@x.com")
		if err != nil {
			return err
		}
		boss.Reportees = []string{"a@x.com"}
		return store.Save(ctx, boss)
	})
	require.NoError(t, err)

	got, err := store.FindByEmail(ctx, "boss@x.com")
	require.NoError(t, err)
	require.Equal(t, []string{"a@x.com"}, got.Reportees)
}
