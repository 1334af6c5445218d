package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/memstore"

	"github.com/stretchr/testify/require"
)

func TestStore_CreateFindSave(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	c := domain.NewCustomer("a@x.com")
	c.AccountID = "acc1"
	require.NoError(t, s.Create(ctx, c))

	var dup *domain.ErrDuplicateKey
	require.ErrorAs(t, s.Create(ctx, domain.NewCustomer("a@x.com")), &dup)

	got, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "acc1", got.AccountID)

	got.Reportees = append(got.Reportees, "b@x.com")
	stored, _ := s.FindByEmail(ctx, "a@x.com")
	require.Empty(t, stored.Reportees, "returned records must be copies")

	require.NoError(t, s.Save(ctx, got))
	stored, _ = s.FindByEmail(ctx, "a@x.com")
	require.Equal(t, []string{"b@x.com"}, stored.Reportees)

	var nf *domain.ErrNotFound
	require.ErrorAs(t, s.Save(ctx, domain.NewCustomer("ghost@x.com")), &nf)
	_, err = s.FindByEmail(ctx, "ghost@x.com")
	require.ErrorAs(t, err, &nf)
}

func TestStore_FindMany(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	mgr := domain.NewCustomer("m@x.com")
	mgr.AccountID = "acc1"
	mgr.Reportees = []string{"a@x.com", "b@x.com"}
	a := domain.NewCustomer("a@x.com")
	a.AccountID = "acc1"
	a.ReportingTo = []string{"m@x.com"}
	b := domain.NewCustomer("b@x.com")
	b.AccountID = "acc2"
	b.ReportingTo = []string{"m@x.com"}
	for _, c := range []*domain.Customer{b, mgr, a} {
		require.NoError(t, s.Create(ctx, c))
	}

	tests := []struct {
		name   string
		filter domain.CustomerFilter
		want   []string
	}{
		{"all sorted", domain.CustomerFilter{}, []string{"a@x.com", "b@x.com", "m@x.com"}},
		{"by account", domain.CustomerFilter{AccountID: "acc1"}, []string{"a@x.com", "m@x.com"}},
		{"reportees contains", domain.CustomerFilter{ReporteesContains: "b@x.com"}, []string{"m@x.com"}},
		{"reportingTo contains", domain.CustomerFilter{ReportingToContains: "m@x.com"}, []string{"a@x.com", "b@x.com"}},
		{"email in", domain.CustomerFilter{EmailIn: []string{"b@x.com", "zz@x.com"}}, []string{"b@x.com"}},
		{"email in empty", domain.CustomerFilter{EmailIn: []string{}}, []string{}},
		{"combined", domain.CustomerFilter{AccountID: "acc2", ReportingToContains: "m@x.com"}, []string{"b@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindMany(ctx, tt.filter)
			require.NoError(t, err)
			emails := make([]string, 0, len(got))
			for _, c := range got {
				emails = append(emails, c.Email)
			}
			require.Equal(t, tt.want, emails)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Create(ctx, domain.NewCustomer("a@x.com")))

	n, err := s.DeleteByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.DeleteByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Create(ctx, domain.NewCustomer("a@x.com")))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Create(ctx, domain.NewCustomer("b@x.com")))
		c, _ := s.FindByEmail(ctx, "a@x.com")
		c.Name = "changed"
		require.NoError(t, s.Save(ctx, c))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, s.Len())

	a, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Empty(t, a.Name)
}

func TestStore_RunInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		return s.Create(ctx, domain.NewCustomer("a@x.com"))
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
}

func TestStore_RollbackKeepsWritesOutsideTx(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Create(ctx, domain.NewCustomer("a@x.com")))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.Create(txCtx, domain.NewCustomer("in@x.com")))
		_, err := s.DeleteByEmail(txCtx, "a@x.com")
		require.NoError(t, err)

		// A writer that is not part of the transaction.
		require.NoError(t, s.Create(ctx, domain.NewCustomer("out@x.com")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.FindByEmail(ctx, "out@x.com")
	require.NoError(t, err)
	_, err = s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err, "deleted inside the failed tx, so restored")
	var nf *domain.ErrNotFound
	_, err = s.FindByEmail(ctx, "in@x.com")
	require.ErrorAs(t, err, &nf)
	require.Equal(t, 2, s.Len())
}

func TestStore_RunInTxNestedJoins(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Create(ctx, domain.NewCustomer("inner@x.com"))
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, s.Len(), "inner write belongs to the outer transaction")
}
