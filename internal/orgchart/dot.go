package orgchart

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderDOT exports the scoped tree as Graphviz xdot: ancestors chained
// down to the root, then the root's descendants.
func RenderDOT(ctx context.Context, tree *ScopedTree) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)

	if tree != nil && tree.Root != nil {
		nodes := make(map[string]*cgraph.Node)
		add := func(n *Node, fill string) (*cgraph.Node, error) {
			if gn, ok := nodes[n.Email]; ok {
				return gn, nil
			}
			gn, err := graph.CreateNodeByName(n.Email)
			if err != nil {
				return nil, fmt.Errorf("failed to create node %s: %w", n.Email, err)
			}
			gn.SetLabel(fmt.Sprintf("%s\n%s", n.Label(), n.Designation))
			gn.SetShape("box")
			gn.SetStyle("filled")
			gn.SetFillColor(fill)
			nodes[n.Email] = gn
			return gn, nil
		}
		link := func(from, to *cgraph.Node) error {
			if _, err := graph.CreateEdgeByName("", from, to); err != nil {
				return fmt.Errorf("failed to create edge: %w", err)
			}
			return nil
		}

		var prev *cgraph.Node
		for _, a := range tree.Ancestors {
			gn, err := add(a, "lightgrey")
			if err != nil {
				return nil, err
			}
			if prev != nil {
				if err := link(prev, gn); err != nil {
					return nil, err
				}
			}
			prev = gn
		}

		root, err := add(tree.Root, "lightblue")
		if err != nil {
			return nil, err
		}
		if prev != nil {
			if err := link(prev, root); err != nil {
				return nil, err
			}
		}

		var walk func(parent *cgraph.Node, n *Node) error
		walk = func(parent *cgraph.Node, n *Node) error {
			for _, c := range n.Children {
				gn, err := add(c, "white")
				if err != nil {
					return err
				}
				if err := link(parent, gn); err != nil {
					return err
				}
				if err := walk(gn, c); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(root, tree.Root); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return nil, fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.Bytes(), nil
}
