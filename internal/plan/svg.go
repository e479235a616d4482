package plan

import (
	"fmt"
	"html"
	"strings"

	"drafted/internal/domain"
)

const defaultPxPerFt = 12.0

// RenderSVG draws the plan graph as a standalone SVG document. Rooms are
// white boxes with centered labels inside an inset outline border.
func RenderSVG(graph *domain.PlanGraph) string {
	return RenderSVGScaled(graph, defaultPxPerFt)
}

// RenderSVGScaled renders with an explicit feet-to-pixel scale.
func RenderSVGScaled(graph *domain.PlanGraph, pxPerFt float64) string {
	w := int(graph.Outline.W * pxPerFt)
	h := int(graph.Outline.H * pxPerFt)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	b.WriteString("\n")
	b.WriteString(`<rect width="100%" height="100%" fill="#f8fafc"/>`)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<rect x="8" y="8" width="%d" height="%d" fill="none" stroke="#0f172a" stroke-width="3"/>`, w-16, h-16)
	b.WriteString("\n")

	for _, room := range graph.Rooms {
		x := 8 + room.Rect.X*pxPerFt
		y := 8 + room.Rect.Y*pxPerFt
		rw := room.Rect.W * pxPerFt
		rh := room.Rect.H * pxPerFt
		fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="white" stroke="#0f172a" stroke-width="2"/>`, x, y, rw, rh)
		b.WriteString("\n")
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" font-family="ui-sans-serif, system-ui" font-size="14" fill="#0f172a">%s</text>`,
			x+rw/2, y+rh/2, html.EscapeString(room.Name))
		b.WriteString("\n")
	}

	b.WriteString("</svg>")
	return b.String()
}
