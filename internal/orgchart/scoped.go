// Package orgchart turns a flat customer list into a drawable org chart:
// a tree scoped around one focus customer, a tidy-tree layout of its
// descendants and the composed chart with ancestors and the top-level row.
// Everything here is pure and deterministic.
package orgchart

import (
	"strings"

	"github.com/boddenberg/chimu-org-go/internal/domain"
)

// DefaultUpDepth bounds how many managers are walked above the focus.
const DefaultUpDepth = 10

// Node is a customer as drawn on the chart.
type Node struct {
	Email         string                 `json:"email"`
	Name          string                 `json:"name"`
	Designation   string                 `json:"designation"`
	Sentiment     domain.Sentiment       `json:"sentiment"`
	Awareness     domain.Awareness       `json:"awareness"`
	Type          domain.StakeholderType `json:"type"`
	DecisionMaker bool                   `json:"decisionMaker"`
	Children      []*Node                `json:"children,omitempty"`

	reportingTo []string
	reportees   []string
}

// Label is the text shown on the card: the name, else the email handle.
func (n *Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return EmailHandle(n.Email)
}

// ScopedTree is the focus customer with its descendants, plus the managers
// above it ordered from the top-most down.
type ScopedTree struct {
	Root      *Node   `json:"root"`
	Ancestors []*Node `json:"ancestors"`
}

// BuildScopedTree scopes customers around focusEmail. Ancestors follow only
// the first manager of each customer, up to upDepth hops. Descendants are
// expanded depth-first over reportees; a customer already placed (the focus,
// an ancestor or an earlier descendant) is never placed again. A negative
// downDepth means unbounded and 0 keeps the root alone. An unknown focus
// yields an empty tree.
func BuildScopedTree(customers []domain.Customer, focusEmail string, upDepth, downDepth int) *ScopedTree {
	byEmail := make(map[string]*Node, len(customers))
	for i := range customers {
		n := newNode(&customers[i])
		byEmail[strings.ToLower(n.Email)] = n
	}

	focus, ok := byEmail[strings.ToLower(strings.TrimSpace(focusEmail))]
	if !ok {
		return &ScopedTree{Ancestors: []*Node{}}
	}

	root := focus.clone()
	visited := map[string]struct{}{strings.ToLower(root.Email): {}}

	// The walk up stops at a manager cycle as well as at upDepth.
	var ancestors []*Node
	mgr := first(focus.reportingTo)
	for d := 0; d < upDepth && mgr != ""; d++ {
		key := strings.ToLower(mgr)
		m, ok := byEmail[key]
		if !ok {
			break
		}
		if _, seen := visited[key]; seen {
			break
		}
		visited[key] = struct{}{}
		ancestors = append([]*Node{m.clone()}, ancestors...)
		mgr = first(m.reportingTo)
	}

	var build func(n *Node, depth int)
	build = func(n *Node, depth int) {
		if downDepth >= 0 && depth >= downDepth {
			return
		}
		for _, e := range n.reportees {
			key := strings.ToLower(strings.TrimSpace(e))
			if key == "" {
				continue
			}
			if _, seen := visited[key]; seen {
				continue
			}
			child, ok := byEmail[key]
			if !ok {
				continue
			}
			visited[key] = struct{}{}
			n.Children = append(n.Children, child.clone())
		}
		for _, c := range n.Children {
			build(c, depth+1)
		}
	}
	build(root, 0)

	if ancestors == nil {
		ancestors = []*Node{}
	}
	return &ScopedTree{Root: root, Ancestors: ancestors}
}

// TopLevel returns the customers with no manager, in input order.
func TopLevel(customers []domain.Customer) []*Node {
	out := []*Node{}
	for i := range customers {
		if len(customers[i].ReportingTo) == 0 {
			out = append(out, newNode(&customers[i]))
		}
	}
	return out
}

// EmailHandle is the part of an email before the '@'.
func EmailHandle(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

func newNode(c *domain.Customer) *Node {
	n := &Node{
		Email:         c.Email,
		Name:          c.Name,
		Designation:   c.Designation,
		Sentiment:     c.Sentiment,
		Awareness:     c.Awareness,
		Type:          c.Type,
		DecisionMaker: c.DecisionMaker,
		reportingTo:   c.ReportingTo,
		reportees:     c.Reportees,
	}
	if n.Sentiment == "" {
		n.Sentiment = domain.SentimentUnknown
	}
	if n.Awareness == "" {
		n.Awareness = domain.AwarenessUnknown
	}
	if n.Type == "" {
		n.Type = domain.TypeUnknown
	}
	return n
}

func (n *Node) clone() *Node {
	cp := *n
	cp.Children = nil
	return &cp
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return strings.TrimSpace(list[0])
}
