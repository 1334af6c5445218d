package handler

import (
	"bytes"
	"net/http"

	"github.com/boddenberg/chimu-org-go/internal/orgchart"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Org chart: /api/org-chart/{accountId}
// ============================================================

func orgChartHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/org-chart/{accountId}")
		defer span.End()

		list, err := svc.AccountOrgChart(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// orgChartLayoutHandler serves the laid-out chart as JSON, SVG or Graphviz
// DOT depending on ?format.
func orgChartLayoutHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/org-chart/{accountId}/layout")
		defer span.End()

		q := r.URL.Query()
		accountID := chi.URLParam(r, "accountId")
		format := q.Get("format")
		span.SetAttributes(attribute.String("account.id", accountID), attribute.String("format", format))

		up, err := intQuery(r, "upDepth", orgchart.DefaultUpDepth)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		down, err := intQuery(r, "downDepth", -1)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		switch format {
		case "", "json", "svg", "dot":
		default:
			writeError(w, http.StatusBadRequest, "format must be one of: json svg dot")
			return
		}

		out, err := svc.AccountLayout(ctx, accountID, service.LayoutRequest{
			Focus:      q.Get("focus"),
			UpDepth:    up,
			DownDepth:  down,
			Variant:    q.Get("variant"),
			Connectors: q.Get("connectors"),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		switch format {
		case "svg":
			var buf bytes.Buffer
			if err := orgchart.RenderSVG(&buf, out.Chart); err != nil {
				handleServiceError(w, err, logger)
				return
			}
			w.Header().Set("Content-Type", "image/svg+xml")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(buf.Bytes())
		case "dot":
			dot, err := orgchart.RenderDOT(ctx, out.Tree)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			w.Header().Set("Content-Type", "text/vnd.graphviz")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(dot)
		default:
			writeJSON(w, http.StatusOK, out)
		}
	}
}

func repairHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/org-chart/{accountId}/repair")
		defer span.End()

		report, err := svc.Repair(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
