package handler

import (
	"net/http"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Customers: /api/customer
// ============================================================

func upsertCustomerHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/customer")
		defer span.End()

		var in service.UpsertCustomerInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		defaultAuthor(r, &in)
		span.SetAttributes(attribute.String("customer.email", in.Email))

		c, err := svc.Upsert(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// putCustomerHandler upserts the customer named in the path. A body email,
// when present, must name the same customer.
func putCustomerHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/customer/{email}")
		defer span.End()

		email := domain.NormalizeEmail(chi.URLParam(r, "email"))
		span.SetAttributes(attribute.String("customer.email", email))

		var in service.UpsertCustomerInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if in.Email != "" && domain.NormalizeEmail(in.Email) != email {
			writeError(w, http.StatusBadRequest, "body email does not match the path")
			return
		}
		in.Email = email
		defaultAuthor(r, &in)

		c, err := svc.Upsert(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func listCustomersHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/customer")
		defer span.End()

		list, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getCustomerHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/customer/{email}")
		defer span.End()

		c, err := svc.Get(ctx, chi.URLParam(r, "email"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func customerTreeHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/customer/tree/{email}")
		defer span.End()

		tree, err := svc.Tree(ctx, chi.URLParam(r, "email"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tree)
	}
}

func customersByAccountHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/customer/account/{accountId}")
		defer span.End()

		list, err := svc.ListByAccount(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func deleteCustomerHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/customer/{email}")
		defer span.End()

		email := domain.NormalizeEmail(chi.URLParam(r, "email"))
		if err := svc.Delete(ctx, email); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message":      "Customer successfully deleted and links cleaned up.",
			"deletedEmail": email,
		})
	}
}

func bulkUpdateHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/customer/bulk-update")
		defer span.End()

		var in service.BulkUpdateInput
		if err := decodeJSON(r, &in); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := svc.BulkUpdate(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// defaultAuthor stamps the authenticated caller on a log entry that names
// no author.
func defaultAuthor(r *http.Request, in *service.UpsertCustomerInput) {
	if in.LogEntry == nil || in.LogEntry.AuthorID != "" {
		return
	}
	in.LogEntry.AuthorID = AuthorIDFromContext(r.Context())
}
