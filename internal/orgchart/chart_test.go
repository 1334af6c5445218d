package orgchart_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/orgchart"

	"github.com/stretchr/testify/require"
)

func composeSample(t *testing.T, opts orgchart.Options) *orgchart.Chart {
	t.Helper()
	org := []domain.Customer{
		person("ceo@x.com", nil, "vp@x.com"),
		person("vp@x.com", []string{"ceo@x.com"}, "f@x.com"),
		person("f@x.com", []string{"vp@x.com"}, "a@x.com", "b@x.com"),
		person("a@x.com", []string{"f@x.com"}),
		person("b@x.com", []string{"f@x.com"}),
		person("solo@x.com", nil),
	}
	tree := orgchart.BuildScopedTree(org, "f@x.com", 1, -1)
	ch, err := orgchart.Compose(tree, orgchart.TopLevel(org), opts)
	require.NoError(t, err)
	return ch
}

func cardsByEmail(ch *orgchart.Chart) map[string]orgchart.Card {
	out := map[string]orgchart.Card{}
	for _, c := range ch.Cards {
		out[c.Email] = c
	}
	return out
}

func TestCompose_Positions(t *testing.T) {
	ch := composeSample(t, orgchart.Options{})

	require.Equal(t, "f@x.com", ch.Focus)
	require.Equal(t, "compact", ch.Variant)
	require.Equal(t, orgchart.ConnectorCurved, ch.Connectors)
	require.Equal(t, 776.0, ch.Width)
	require.Equal(t, 560.0, ch.Height)

	cards := cardsByEmail(ch)
	require.Len(t, cards, 6)

	require.Equal(t, orgchart.RoleTop, cards["ceo@x.com"].Role)
	require.Equal(t, 180.0, cards["ceo@x.com"].X)
	require.Equal(t, 16.0, cards["ceo@x.com"].Y)
	require.Equal(t, 396.0, cards["solo@x.com"].X)

	require.Equal(t, orgchart.RoleAncestor, cards["vp@x.com"].Role)
	require.Equal(t, 288.0, cards["vp@x.com"].X)
	require.Equal(t, 100.0, cards["vp@x.com"].Y)

	require.Equal(t, orgchart.RoleRoot, cards["f@x.com"].Role)
	require.Equal(t, 288.0, cards["f@x.com"].X)
	require.Equal(t, 216.0, cards["f@x.com"].Y)

	require.Equal(t, orgchart.RoleDescendant, cards["a@x.com"].Role)
	require.Equal(t, 178.0, cards["a@x.com"].X)
	require.Equal(t, 332.0, cards["a@x.com"].Y)
	require.Equal(t, 398.0, cards["b@x.com"].X)
}

func TestCompose_Edges(t *testing.T) {
	ch := composeSample(t, orgchart.Options{Connectors: orgchart.ConnectorStraight})

	require.Len(t, ch.Edges, 3)
	anc := ch.Edges[0]
	require.Equal(t, orgchart.Edge{X1: 388, Y1: 172, X2: 388, Y2: 216}, anc.Edge)
	require.Equal(t, "M 388 172 L 388 216", anc.Path)

	toA := ch.Edges[1]
	require.Equal(t, orgchart.Edge{X1: 388, Y1: 288, X2: 278, Y2: 332}, toA.Edge)

	// Descendant edges start at the root card's bottom-center.
	root := cardsByEmail(ch)["f@x.com"]
	for _, e := range ch.Edges[1:] {
		require.Equal(t, root.X+root.W/2, e.X1)
		require.Equal(t, root.Y+root.H, e.Y1)
	}
}

func TestCompose_RootIsTopLevel(t *testing.T) {
	org := []domain.Customer{
		person("ceo@x.com", nil, "a@x.com"),
		person("a@x.com", []string{"ceo@x.com"}),
	}
	tree := orgchart.BuildScopedTree(org, "ceo@x.com", 10, -1)
	ch, err := orgchart.Compose(tree, orgchart.TopLevel(org), orgchart.Options{Variant: "regular"})
	require.NoError(t, err)

	cards := cardsByEmail(ch)
	require.Len(t, ch.Cards, 2, "the root is not repeated in the top row")
	require.Equal(t, orgchart.RoleRoot, cards["ceo@x.com"].Role)
	require.Equal(t, 100.0, cards["ceo@x.com"].Y)
	require.Equal(t, 240.0, cards["ceo@x.com"].W)
}

func TestCompose_TopRowDoesNotOverlapRegular(t *testing.T) {
	org := []domain.Customer{
		person("ceo@x.com", nil),
		person("f@x.com", nil),
	}
	tree := orgchart.BuildScopedTree(org, "f@x.com", 10, -1)
	ch, err := orgchart.Compose(tree, orgchart.TopLevel(org), orgchart.Options{Variant: "regular"})
	require.NoError(t, err)

	cards := cardsByEmail(ch)
	top := cards["ceo@x.com"]
	require.Greater(t, cards["f@x.com"].Y, top.Y+top.H)
}

func TestCompose_EmptyAndInvalid(t *testing.T) {
	ch, err := orgchart.Compose(&orgchart.ScopedTree{}, nil, orgchart.Options{})
	require.NoError(t, err)
	require.Empty(t, ch.Cards)

	_, err = orgchart.Compose(&orgchart.ScopedTree{}, nil, orgchart.Options{Variant: "tiny"})
	require.Error(t, err)
	_, err = orgchart.Compose(&orgchart.ScopedTree{}, nil, orgchart.Options{Connectors: "zigzag"})
	require.Error(t, err)
}

func TestCompose_Deterministic(t *testing.T) {
	a := composeSample(t, orgchart.Options{})
	b := composeSample(t, orgchart.Options{})
	require.Equal(t, a, b)
}

func TestRenderSVG(t *testing.T) {
	ch := composeSample(t, orgchart.Options{})
	ch.Cards[0].Label = "R&D <lead>"

	var buf bytes.Buffer
	require.NoError(t, orgchart.RenderSVG(&buf, ch))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "<svg "))
	require.True(t, strings.HasSuffix(out, "</svg>\n"))
	require.Contains(t, out, `data-email="f@x.com"`)
	require.Contains(t, out, "R&amp;D &lt;lead&gt;")
	require.Equal(t, 3, strings.Count(out, "<path "))
	require.Equal(t, 6, strings.Count(out, `<g class="card`))
}

func TestRenderSVG_Straight(t *testing.T) {
	ch := composeSample(t, orgchart.Options{Connectors: orgchart.ConnectorStraight})

	var buf bytes.Buffer
	require.NoError(t, orgchart.RenderSVG(&buf, ch))
	require.Equal(t, 3, strings.Count(buf.String(), "<line "))
	require.NotContains(t, buf.String(), "<path ")
}

func TestRenderDOT(t *testing.T) {
	tree := orgchart.BuildScopedTree(sampleOrg(), "f@x.com", 10, -1)

	out, err := orgchart.RenderDOT(context.Background(), tree)
	require.NoError(t, err)

	dot := string(out)
	require.Contains(t, dot, "digraph")
	for _, e := range []string{"ceo@x.com", "vp@x.com", "f@x.com", "a@x.com", "c@x.com"} {
		require.Contains(t, dot, e)
	}
	require.Contains(t, dot, "->")
}
