package orgchart

import (
	"fmt"
	"strconv"
)

// Sizes are the card and spacing dimensions of a chart variant, in pixels.
type Sizes struct {
	NodeW   float64 `json:"nodeW"`
	NodeH   float64 `json:"nodeH"`
	HGap    float64 `json:"hGap"`
	VGap    float64 `json:"vGap"`
	Padding float64 `json:"padding"`
}

// Chart variants.
var (
	Compact = Sizes{NodeW: 200, NodeH: 72, HGap: 20, VGap: 44, Padding: 8}
	Regular = Sizes{NodeW: 240, NodeH: 96, HGap: 28, VGap: 60, Padding: 12}
)

// SizesFor maps a variant name to its sizes. Empty means compact.
func SizesFor(variant string) (Sizes, error) {
	switch variant {
	case "", "compact":
		return Compact, nil
	case "regular":
		return Regular, nil
	default:
		return Sizes{}, fmt.Errorf("unknown variant %q", variant)
	}
}

// Placed is a node with its top-left corner.
type Placed struct {
	Node *Node   `json:"-"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Edge runs from a parent's bottom-center to a child's top-center.
type Edge struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Shift returns e moved by (dx, dy).
func (e Edge) Shift(dx, dy float64) Edge {
	return Edge{X1: e.X1 + dx, Y1: e.Y1 + dy, X2: e.X2 + dx, Y2: e.Y2 + dy}
}

// Layout is the tidy-tree placement of a root's descendants. The root itself
// sits at (RootX, RootY) and is not part of Nodes.
type Layout struct {
	Nodes  []Placed
	Edges  []Edge
	RootX  float64
	RootY  float64
	Width  float64
	Height float64
}

// ComputeLayout places root's descendants. A subtree is as wide as its card
// or its children side by side, whichever is wider; children are centered
// under their parent in input order.
func ComputeLayout(root *Node, sz Sizes) Layout {
	if root == nil {
		return Layout{}
	}

	widths := make(map[*Node]float64)
	var measure func(n *Node) float64
	measure = func(n *Node) float64 {
		if len(n.Children) == 0 {
			widths[n] = sz.NodeW
			return sz.NodeW
		}
		total := sz.HGap * float64(len(n.Children)-1)
		for _, c := range n.Children {
			total += measure(c)
		}
		w := max(sz.NodeW, total)
		widths[n] = w
		return w
	}

	l := Layout{}
	var place func(n *Node, x, y float64)
	place = func(n *Node, x, y float64) {
		if len(n.Children) == 0 {
			return
		}
		total := sz.HGap * float64(len(n.Children)-1)
		for _, c := range n.Children {
			total += widths[c]
		}

		cursor := x + (sz.NodeW-total)/2
		childY := y + sz.NodeH + sz.VGap
		for _, c := range n.Children {
			childX := cursor + (widths[c]-sz.NodeW)/2
			l.Edges = append(l.Edges, Edge{
				X1: x + sz.NodeW/2,
				Y1: y + sz.NodeH,
				X2: childX + sz.NodeW/2,
				Y2: childY,
			})
			l.Nodes = append(l.Nodes, Placed{Node: c, X: childX, Y: childY})
			place(c, childX, childY)
			cursor += widths[c] + sz.HGap
		}
	}

	totalW := measure(root)
	l.RootX = totalW/2 - sz.NodeW/2 + 20
	l.RootY = 20
	place(root, l.RootX, l.RootY)

	maxY := l.RootY
	for _, p := range l.Nodes {
		maxY = max(maxY, p.Y)
	}
	l.Width = totalW + 40
	l.Height = maxY + sz.NodeH + 40
	return l
}

// CubicPath is an SVG path from (x1,y1) to (x2,y2) whose control points
// pull vertically by 45% of the drop.
func CubicPath(x1, y1, x2, y2 float64) string {
	dy := (y2 - y1) * 0.45
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		num(x1), num(y1),
		num(x1), num(y1+dy),
		num(x2), num(y2-dy),
		num(x2), num(y2),
	)
}

// StraightPath is the SVG path of a straight connector.
func StraightPath(x1, y1, x2, y2 float64) string {
	return fmt.Sprintf("M %s %s L %s %s", num(x1), num(y1), num(x2), num(y2))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
