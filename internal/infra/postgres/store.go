// Package postgres stores customers in a PostgreSQL table with the link
// lists as text[] columns. Multi-statement transactions are carried in the
// context so every store call inside RunInTx joins the same transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

const columns = `email, name, designation, location, stage, sentiment, awareness, type,
	decision_maker, account_id, reporting_to, reportees, business_unit, app_names,
	annual_cost, annual_mdb_cost, monthly_mdb_cost, tgo, cto, ao, log_history,
	created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Store implements port.CustomerStore and port.Transactor.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// New creates a store over an open pool.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// RunInTx runs fn in a transaction. A call made while a transaction is
// already open in ctx joins it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindByEmail")
	defer span.End()
	span.SetAttributes(attribute.String("customer.email", email))

	row := s.q(ctx).QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE email = $1`, email)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	if err != nil {
		return nil, fmt.Errorf("select customer %s: %w", email, err)
	}
	return c, nil
}

func (s *Store) FindMany(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindMany")
	defer span.End()

	if f.EmailIn != nil && len(f.EmailIn) == 0 {
		return []domain.Customer{}, nil
	}
	where, args := filterClause(f)
	rows, err := s.q(ctx).Query(ctx, `SELECT `+columns+` FROM customers`+where+` ORDER BY email`, args...)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

func (s *Store) Create(ctx context.Context, c *domain.Customer) error {
	ctx, span := tracer.Start(ctx, "Postgres.Create")
	defer span.End()

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	// ON CONFLICT keeps an open transaction usable when the email exists;
	// a raised unique violation would abort it.
	tag, err := s.q(ctx).Exec(ctx, `INSERT INTO customers (`+columns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (email) DO NOTHING`,
		values(c)...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &domain.ErrDuplicateKey{Key: c.Email}
	}
	if err != nil {
		return fmt.Errorf("insert customer %s: %w", c.Email, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrDuplicateKey{Key: c.Email}
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c *domain.Customer) error {
	ctx, span := tracer.Start(ctx, "Postgres.Save")
	defer span.End()

	c.UpdatedAt = time.Now().UTC()
	tag, err := s.q(ctx).Exec(ctx, `UPDATE customers SET
		name = $2, designation = $3, location = $4, stage = $5, sentiment = $6,
		awareness = $7, type = $8, decision_maker = $9, account_id = $10,
		reporting_to = $11, reportees = $12, business_unit = $13, app_names = $14,
		annual_cost = $15, annual_mdb_cost = $16, monthly_mdb_cost = $17,
		tgo = $18, cto = $19, ao = $20, log_history = $21, created_at = $22, updated_at = $23
		WHERE email = $1`, values(c)...)
	if err != nil {
		return fmt.Errorf("update customer %s: %w", c.Email, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "customer", ID: c.Email}
	}
	return nil
}

func (s *Store) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteByEmail")
	defer span.End()

	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM customers WHERE email = $1`, email)
	if err != nil {
		return 0, fmt.Errorf("delete customer %s: %w", email, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func filterClause(f domain.CustomerFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != "" {
		add("account_id = $%d", f.AccountID)
	}
	if f.ReporteesContains != "" {
		add("reportees @> ARRAY[$%d]::text[]", f.ReporteesContains)
	}
	if f.ReportingToContains != "" {
		add("reporting_to @> ARRAY[$%d]::text[]", f.ReportingToContains)
	}
	if f.EmailIn != nil {
		add("email = ANY($%d)", f.EmailIn)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func values(c *domain.Customer) []any {
	var account *string
	if c.AccountID != "" {
		account = &c.AccountID
	}
	logs := c.LogHistory
	if logs == nil {
		logs = []domain.LogEntry{}
	}
	return []any{
		c.Email, c.Name, c.Designation, c.Location, c.Stage,
		string(c.Sentiment), string(c.Awareness), string(c.Type), c.DecisionMaker, account,
		nonNil(c.ReportingTo), nonNil(c.Reportees), nonNil(c.BusinessUnit), nonNil(c.AppNames),
		c.AnnualCost, c.AnnualMDBCost, c.MonthlyMDBCost, c.TGO, c.CTO, c.AO,
		logs, c.CreatedAt, c.UpdatedAt,
	}
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		c       domain.Customer
		account *string
	)
	err := row.Scan(
		&c.Email, &c.Name, &c.Designation, &c.Location, &c.Stage,
		&c.Sentiment, &c.Awareness, &c.Type, &c.DecisionMaker, &account,
		&c.ReportingTo, &c.Reportees, &c.BusinessUnit, &c.AppNames,
		&c.AnnualCost, &c.AnnualMDBCost, &c.MonthlyMDBCost, &c.TGO, &c.CTO, &c.AO,
		&c.LogHistory, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if account != nil {
		c.AccountID = *account
	}
	c.ApplyDefaults()
	return &c, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
