/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Placeholder is shown in every cell until its clue is activated.
const Placeholder = "?"

// Cell is one body cell of a rendered board, tagged with the coordinate
// that resolves it back to a clue.
type Cell struct {
	Category int    `json:"category"`
	Clue     int    `json:"clue"`
	Content  string `json:"content"`
}

// Presentation is a board projected into header titles and body rows.
type Presentation struct {
	Titles []string `json:"titles"`
	Rows   [][]Cell `json:"rows"`
}

// Render lays the board out as a header of titles and a fixed number of
// body rows. The row count does not depend on how many clues each category
// has, so cells past the end of a short category still carry a coordinate.
func Render(categories []Category, rows int) Presentation {
	p := Presentation{
		Titles: make([]string, 0, len(categories)),
		Rows:   make([][]Cell, 0, rows),
	}

	for _, c := range categories {
		p.Titles = append(p.Titles, c.Title)
	}

	for i := 0; i < rows; i++ {
		row := make([]Cell, 0, len(categories))
		for j := range categories {
			row = append(row, Cell{
				Category: j,
				Clue:     i,
				Content:  Placeholder,
			})
		}
		p.Rows = append(p.Rows, row)
	}

	return p
}

// HTML returns the table markup for the board: a thead with one title cell
// per category and a tbody of coordinate-tagged placeholder cells.
func (p Presentation) HTML() string {
	var b strings.Builder

	b.WriteString("<thead><tr>")
	for _, title := range p.Titles {
		b.WriteString("<td>")
		b.WriteString(html.EscapeString(DisplayText(title)))
		b.WriteString("</td>")
	}
	b.WriteString("</tr></thead><tbody>")

	for _, row := range p.Rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString(`<td data-category="`)
			b.WriteString(strconv.Itoa(cell.Category))
			b.WriteString(`" data-clue="`)
			b.WriteString(strconv.Itoa(cell.Clue))
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(cell.Content))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody>")

	return b.String()
}

// DisplayText strips markup from trivia text and decodes entities, so
// `<i>Hamlet</i> &amp; co` displays as `Hamlet & co`.
func DisplayText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var b strings.Builder

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimSpace(b.String())
			}
			return strings.TrimSpace(s)
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
