package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultTreeMaxDepth is the deepest level expanded below or above the root.
const DefaultTreeMaxDepth = 5

// TreeBuilder expands a customer into a recursive tree of managers and
// reportees read from the store.
type TreeBuilder struct {
	store       port.CustomerStore
	maxDepth    int
	concurrency int
	logger      *zap.Logger
}

// NewTreeBuilder creates a tree builder. concurrency caps the store reads in
// flight during one build; below 1 means one at a time. Negative maxDepth
// falls back to DefaultTreeMaxDepth.
func NewTreeBuilder(store port.CustomerStore, maxDepth, concurrency int, logger *zap.Logger) *TreeBuilder {
	if maxDepth < 0 {
		maxDepth = DefaultTreeMaxDepth
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &TreeBuilder{store: store, maxDepth: maxDepth, concurrency: concurrency, logger: logger}
}

// BuildTree returns the tree rooted at email. The set of emails already on
// the path from the root is carried per branch, so a customer reachable
// through two managers appears under both while cycles still terminate.
func (b *TreeBuilder) BuildTree(ctx context.Context, email string) (*domain.TreeNode, error) {
	ctx, span := hierarchyTracer.Start(ctx, "TreeBuilder.BuildTree")
	defer span.End()

	email = domain.NormalizeEmail(email)
	span.SetAttributes(attribute.String("customer.email", email))
	if email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email is required"}
	}

	w := &treeWalk{TreeBuilder: b, fetches: semaphore.NewWeighted(int64(b.concurrency))}
	root, err := w.build(ctx, email, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("build tree for %s: %w", email, err)
	}
	if root == nil {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	return root, nil
}

type pathSet map[string]struct{}

func (p pathSet) with(email string) pathSet {
	next := make(pathSet, len(p)+1)
	for k := range p {
		next[k] = struct{}{}
	}
	next[email] = struct{}{}
	return next
}

// treeWalk is one BuildTree call. fetches bounds the store reads in flight
// across the whole walk, whatever the fan-out per level.
type treeWalk struct {
	*TreeBuilder
	fetches *semaphore.Weighted
}

func (w *treeWalk) fetch(ctx context.Context, email string) (*domain.Customer, error) {
	if err := w.fetches.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.fetches.Release(1)
	return w.store.FindByEmail(ctx, email)
}

func (w *treeWalk) build(ctx context.Context, email string, depth int, path pathSet) (*domain.TreeNode, error) {
	if email == "" || depth > w.maxDepth {
		return nil, nil
	}
	if _, seen := path[email]; seen {
		return nil, nil
	}

	c, err := w.fetch(ctx, email)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}

	next := path.with(email)
	node := &domain.TreeNode{Customer: *c}
	if node.ReportingToTree, err = w.children(ctx, c.ReportingTo, depth+1, next); err != nil {
		return nil, err
	}
	if node.ReporteesTree, err = w.children(ctx, c.Reportees, depth+1, next); err != nil {
		return nil, err
	}
	return node, nil
}

// children expands emails concurrently and returns the non-nil subtrees in
// input order.
func (w *treeWalk) children(ctx context.Context, emails []string, depth int, path pathSet) ([]*domain.TreeNode, error) {
	out := []*domain.TreeNode{}
	if len(emails) == 0 || depth > w.maxDepth {
		return out, nil
	}

	slots := make([]*domain.TreeNode, len(emails))
	g, gCtx := errgroup.WithContext(ctx)
	for i, e := range emails {
		g.Go(func() error {
			n, err := w.build(gCtx, domain.NormalizeEmail(e), depth, path)
			slots[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, n := range slots {
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}
