package orgchart

import (
	"bufio"
	"fmt"
	"html"
	"io"
)

const (
	edgeColor   = "#CBD5E1"
	cardStroke  = "#E5E7EB"
	rootStroke  = "#2DD4BF"
	nameColor   = "#0F766E"
	detailColor = "#4B5563"
	emailColor  = "#6B7280"
)

var sentimentFill = map[string]string{
	"High":    "#F0FDF4",
	"Medium":  "#FEFCE8",
	"Low":     "#FEF2F2",
	"Unknown": "#F9FAFB",
}

// RenderSVG writes the chart as a standalone SVG document.
func RenderSVG(w io.Writer, ch *Chart) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="sans-serif">`+"\n",
		num(ch.Width), num(ch.Height), num(ch.Width), num(ch.Height))

	for _, e := range ch.Edges {
		if ch.Connectors == ConnectorStraight {
			fmt.Fprintf(bw, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="2"/>`+"\n",
				num(e.X1), num(e.Y1), num(e.X2), num(e.Y2), edgeColor)
			continue
		}
		fmt.Fprintf(bw, `<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`+"\n", e.Path, edgeColor)
	}

	pad := ch.Sizes.Padding
	for _, c := range ch.Cards {
		stroke, width := cardStroke, "1"
		if c.Role == RoleRoot {
			stroke, width = rootStroke, "2"
		}
		fmt.Fprintf(bw, `<g class="card %s" data-email="%s">`+"\n", c.Role, html.EscapeString(c.Email))
		fmt.Fprintf(bw, `<rect x="%s" y="%s" width="%s" height="%s" rx="10" fill="#FFFFFF" stroke="%s" stroke-width="%s"/>`+"\n",
			num(c.X), num(c.Y), num(c.W), num(c.H), stroke, width)

		sentiment := string(c.Sentiment)
		fill, ok := sentimentFill[sentiment]
		if !ok {
			fill = sentimentFill["Unknown"]
		}
		fmt.Fprintf(bw, `<rect x="%s" y="%s" width="52" height="16" rx="8" fill="%s" stroke="%s"/>`+"\n",
			num(c.X+c.W-pad-52), num(c.Y+pad), fill, cardStroke)
		fmt.Fprintf(bw, `<text x="%s" y="%s" font-size="10" text-anchor="middle" fill="%s">%s</text>`+"\n",
			num(c.X+c.W-pad-26), num(c.Y+pad+12), detailColor, html.EscapeString(sentiment))

		fmt.Fprintf(bw, `<text x="%s" y="%s" font-size="13" font-weight="600" fill="%s">%s</text>`+"\n",
			num(c.X+pad), num(c.Y+pad+13), nameColor, html.EscapeString(c.Label))
		if c.Role != RoleTop {
			fmt.Fprintf(bw, `<text x="%s" y="%s" font-size="11" fill="%s">%s</text>`+"\n",
				num(c.X+pad), num(c.Y+c.H/2+6), detailColor, html.EscapeString(dash(c.Designation)))
			fmt.Fprintf(bw, `<text x="%s" y="%s" font-size="10" fill="%s">%s</text>`+"\n",
				num(c.X+pad), num(c.Y+c.H-pad), emailColor, html.EscapeString(c.Email))
		} else {
			fmt.Fprintf(bw, `<text x="%s" y="%s" font-size="11" fill="%s">%s</text>`+"\n",
				num(c.X+pad), num(c.Y+c.H/2+10), detailColor, html.EscapeString(c.Designation))
		}
		bw.WriteString("</g>\n")
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
