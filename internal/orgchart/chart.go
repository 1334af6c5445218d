package orgchart

import (
	"fmt"
	"strings"

	"github.com/boddenberg/chimu-org-go/internal/domain"
)

// Connector styles.
const (
	ConnectorCurved   = "curved"
	ConnectorStraight = "straight"
)

// Card roles on a composed chart.
const (
	RoleTop        = "top"
	RoleAncestor   = "ancestor"
	RoleRoot       = "root"
	RoleDescendant = "descendant"
)

const (
	minCanvasWidth = 760
	topRowY        = 16
	topRowGap      = 16
	rootBaseY      = 100
)

// Card is a positioned node of the composed chart.
type Card struct {
	Email         string                 `json:"email"`
	Label         string                 `json:"label"`
	Designation   string                 `json:"designation"`
	Sentiment     domain.Sentiment       `json:"sentiment"`
	Awareness     domain.Awareness       `json:"awareness"`
	Type          domain.StakeholderType `json:"type"`
	DecisionMaker bool                   `json:"decisionMaker"`
	Role          string                 `json:"role"`
	X             float64                `json:"x"`
	Y             float64                `json:"y"`
	W             float64                `json:"w"`
	H             float64                `json:"h"`
}

// Connector is a drawn edge with its SVG path.
type Connector struct {
	Edge
	Path string `json:"path"`
}

// Chart is a complete, positioned org chart.
type Chart struct {
	Focus      string      `json:"focus"`
	Variant    string      `json:"variant"`
	Connectors string      `json:"connectors"`
	Sizes      Sizes       `json:"sizes"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Cards      []Card      `json:"cards"`
	Edges      []Connector `json:"edges"`
}

// Options controls Compose.
type Options struct {
	Variant    string
	Connectors string
}

// Compose lays out the top-level row, the ancestors stacked above the
// centered root and the root's descendants below it.
func Compose(tree *ScopedTree, top []*Node, opts Options) (*Chart, error) {
	sz, err := SizesFor(opts.Variant)
	if err != nil {
		return nil, err
	}
	connectors := opts.Connectors
	switch connectors {
	case "":
		connectors = ConnectorCurved
	case ConnectorCurved, ConnectorStraight:
	default:
		return nil, fmt.Errorf("unknown connectors %q", opts.Connectors)
	}
	variant := opts.Variant
	if variant == "" {
		variant = "compact"
	}

	ch := &Chart{
		Variant:    variant,
		Connectors: connectors,
		Sizes:      sz,
		Cards:      []Card{},
		Edges:      []Connector{},
	}
	if tree == nil || tree.Root == nil {
		ch.Width = minCanvasWidth + 2*sz.Padding
		return ch, nil
	}
	ch.Focus = tree.Root.Email

	layout := ComputeLayout(tree.Root, sz)
	step := sz.NodeH + sz.VGap
	anc := float64(len(tree.Ancestors))

	ch.Width = max(layout.Width+40, minCanvasWidth) + 2*sz.Padding
	centerX := ch.Width/2 - sz.NodeW/2

	drawn := map[string]struct{}{strings.ToLower(tree.Root.Email): {}}
	for _, a := range tree.Ancestors {
		drawn[strings.ToLower(a.Email)] = struct{}{}
	}

	// Top-level row, minus anyone already drawn lower down.
	var row []*Node
	for _, n := range top {
		if _, ok := drawn[strings.ToLower(n.Email)]; !ok {
			row = append(row, n)
		}
	}
	base := float64(rootBaseY)
	if len(row) > 0 {
		rowW := float64(len(row))*sz.NodeW + float64(len(row)-1)*topRowGap
		x := (ch.Width - rowW) / 2
		for _, n := range row {
			ch.Cards = append(ch.Cards, card(n, RoleTop, x, topRowY, sz))
			x += sz.NodeW + topRowGap
		}
		base = max(base, topRowY+sz.NodeH+12)
	}
	rootY := base + anc*step

	for i, a := range tree.Ancestors {
		y := rootY - (anc-float64(i))*step
		ch.Cards = append(ch.Cards, card(a, RoleAncestor, centerX, y, sz))
		ch.Edges = append(ch.Edges, connector(Edge{
			X1: centerX + sz.NodeW/2,
			Y1: y + sz.NodeH,
			X2: centerX + sz.NodeW/2,
			Y2: y + sz.NodeH + sz.VGap,
		}, connectors))
	}

	ch.Cards = append(ch.Cards, card(tree.Root, RoleRoot, centerX, rootY, sz))

	// Descendants keep the layout's shape with its root moved onto the chart root.
	dx := centerX - layout.RootX
	dy := rootY - layout.RootY
	for _, e := range layout.Edges {
		ch.Edges = append(ch.Edges, connector(e.Shift(dx, dy), connectors))
	}
	bottom := rootY + sz.NodeH
	for _, p := range layout.Nodes {
		if _, ok := drawn[strings.ToLower(p.Node.Email)]; ok {
			continue
		}
		ch.Cards = append(ch.Cards, card(p.Node, RoleDescendant, p.X+dx, p.Y+dy, sz))
		bottom = max(bottom, p.Y+dy+sz.NodeH)
	}

	ch.Height = max(layout.Height+40+anc*step+2*sz.Padding+140, bottom+40+sz.Padding)
	return ch, nil
}

func card(n *Node, role string, x, y float64, sz Sizes) Card {
	return Card{
		Email:         n.Email,
		Label:         n.Label(),
		Designation:   n.Designation,
		Sentiment:     n.Sentiment,
		Awareness:     n.Awareness,
		Type:          n.Type,
		DecisionMaker: n.DecisionMaker,
		Role:          role,
		X:             x,
		Y:             y,
		W:             sz.NodeW,
		H:             sz.NodeH,
	}
}

func connector(e Edge, style string) Connector {
	if style == ConnectorStraight {
		return Connector{Edge: e, Path: StraightPath(e.X1, e.Y1, e.X2, e.Y2)}
	}
	return Connector{Edge: e, Path: CubicPath(e.X1, e.Y1, e.X2, e.Y2)}
}
