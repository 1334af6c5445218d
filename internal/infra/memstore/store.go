// Package memstore is an in-process CustomerStore used for local runs and
// tests. Transactions are serialised and roll back through an undo log of
// the records they wrote.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
)

// Store keeps customers in a map keyed by canonical email.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data map[string]*domain.Customer
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]*domain.Customer)}
}

func (s *Store) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[email]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	return c.Clone(), nil
}

func (s *Store) FindMany(_ context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var in map[string]struct{}
	if f.EmailIn != nil {
		in = make(map[string]struct{}, len(f.EmailIn))
		for _, e := range f.EmailIn {
			in[e] = struct{}{}
		}
	}

	out := make([]domain.Customer, 0)
	for email, c := range s.data {
		if f.AccountID != "" && c.AccountID != f.AccountID {
			continue
		}
		if f.ReporteesContains != "" && !domain.ContainsEmail(c.Reportees, f.ReporteesContains) {
			continue
		}
		if f.ReportingToContains != "" && !domain.ContainsEmail(c.ReportingTo, f.ReportingToContains) {
			continue
		}
		if in != nil {
			if _, ok := in[email]; !ok {
				continue
			}
		}
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) Create(ctx context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[c.Email]; ok {
		return &domain.ErrDuplicateKey{Key: c.Email}
	}
	s.record(ctx, c.Email)
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.data[c.Email] = c.Clone()
	return nil
}

func (s *Store) Save(ctx context.Context, c *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[c.Email]; !ok {
		return &domain.ErrNotFound{Resource: "customer", ID: c.Email}
	}
	s.record(ctx, c.Email)
	c.UpdatedAt = time.Now().UTC()
	s.data[c.Email] = c.Clone()
	return nil
}

func (s *Store) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[email]; !ok {
		return 0, nil
	}
	s.record(ctx, email)
	delete(s.data, email)
	return 1, nil
}

func (s *Store) Ping(context.Context) error { return nil }

type txKey struct{}

// undoLog holds the value each key had before the transaction first wrote
// it; nil means the key was absent.
type undoLog struct {
	store *Store
	prior map[string]*domain.Customer
}

// RunInTx runs fn with exclusive access among transactions. If fn fails,
// every record written through fn's ctx is put back as it was; writes made
// with any other ctx are left alone. A call whose ctx already carries a
// transaction on this store joins it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok && log.store == s {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &undoLog{store: s, prior: make(map[string]*domain.Customer)}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		s.rollback(log)
		return err
	}
	return nil
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// record notes the current value of email in the transaction carried by
// ctx, once per key. Callers hold s.mu.
func (s *Store) record(ctx context.Context, email string) {
	log, ok := ctx.Value(txKey{}).(*undoLog)
	if !ok || log.store != s {
		return
	}
	if _, seen := log.prior[email]; seen {
		return
	}
	log.prior[email] = s.data[email]
}

func (s *Store) rollback(log *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, c := range log.prior {
		if c == nil {
			delete(s.data, email)
			continue
		}
		s.data[email] = c
	}
}
