package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/boddenberg/chimu-org-go/internal/config"
	"github.com/boddenberg/chimu-org-go/internal/infra/csvimport"
	"github.com/boddenberg/chimu-org-go/internal/infra/memstore"

	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"serve", "migrate", "repair", "import"}, names)
}

func TestImportCmd_RequiresAccount(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"import", "people.csv"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestMigrateCmd_RejectsOtherDrivers(t *testing.T) {
	t.Setenv("STORE_DRIVER", config.DriverMemory)
	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, cmd.ExecuteContext(context.Background()), "STORE_DRIVER=postgres")
}

func TestNewApp_MemoryStoreImport(t *testing.T) {
	t.Setenv("STORE_DRIVER", config.DriverMemory)
	t.Setenv("LOG_LEVEL", "error")
	ctx := context.Background()

	a, err := newApp(ctx, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	require.IsType(t, &memstore.Store{}, a.store)

	csv := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(csv, []byte("Name,Designation,Reportsto\nAda Lovelace,CTO,\nAlan Turing,Engineer,Ada Lovelace\n"), 0o600))

	f, err := os.Open(csv)
	require.NoError(t, err)
	defer f.Close()

	recs, err := csvimport.Parse(f, "example.com")
	require.NoError(t, err)

	report, err := a.svc.Import(ctx, "acme", recs)
	require.NoError(t, err)
	require.Equal(t, 2, report.Upserted)

	alan, err := a.svc.Get(ctx, "alan.turing@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"ada.lovelace@example.com"}, alan.ReportingTo)
}
