package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/handler"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, api *testAPI) {
	t.Helper()
	rec := api.do(http.MethodPost, "/api/customer", map[string]any{
		"email": "ceo@acme.com", "name": "Ceo", "accountId": "acme",
		"reportees": []string{"vp@acme.com", "cfo@acme.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = api.do(http.MethodPost, "/api/customer", map[string]any{
		"email": "dev@acme.com", "name": "Dev", "accountId": "acme",
		"reportingTo": []string{"vp@acme.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestOrgChartAPI_List(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	seedAccount(t, api)

	rec := api.do(http.MethodGet, "/api/org-chart/acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]domain.Customer](t, rec), 4)
}

func TestOrgChartAPI_LayoutJSON(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	seedAccount(t, api)

	rec := api.do(http.MethodGet, "/api/org-chart/acme/layout?focus=vp@acme.com&variant=compact", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[service.AccountLayout](t, rec)
	require.Equal(t, "vp@acme.com", out.Chart.Focus)
	require.NotEmpty(t, out.Chart.Cards)
}

func TestOrgChartAPI_LayoutSVG(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	seedAccount(t, api)

	rec := api.do(http.MethodGet, "/api/org-chart/acme/layout?format=svg", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "<svg"), rec.Body.String())
}

func TestOrgChartAPI_LayoutDOT(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	seedAccount(t, api)

	rec := api.do(http.MethodGet, "/api/org-chart/acme/layout?format=dot&focus=vp@acme.com", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text/vnd.graphviz", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Contains(t, body, "digraph")
	require.Contains(t, body, "vp@acme.com")
	require.Contains(t, body, "dev@acme.com")
}

func TestOrgChartAPI_LayoutErrors(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	seedAccount(t, api)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"bad format", "?format=png", http.StatusBadRequest},
		{"bad depth", "?upDepth=two", http.StatusBadRequest},
		{"bad variant", "?variant=huge", http.StatusBadRequest},
		{"unknown focus", "?focus=ghost@acme.com", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodGet, "/api/org-chart/acme/layout"+tt.query, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := api.do(http.MethodGet, "/api/org-chart/empty/layout", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrgChartAPI_Repair(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	seedAccount(t, api)

	rec := api.do(http.MethodPost, "/api/org-chart/acme/repair", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[domain.RepairReport](t, rec)
	require.Equal(t, "acme", report.AccountID)
	require.Zero(t, report.LinksAdded)
	require.Zero(t, report.LinksRemoved)
}
