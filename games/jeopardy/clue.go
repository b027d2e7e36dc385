/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

// RawClue is a clue as returned by the trivia service.
type RawClue struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	InvalidCount *int   `json:"invalid_count"`
}

// RawCategory is the payload of GET /category?id=ID.
type RawCategory struct {
	ID    int       `json:"id"`
	Title string    `json:"title"`
	Clues []RawClue `json:"clues"`
}

type Clue struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Reveal   RevealState `json:"reveal"`
}

// Content returns what a cell displays for the clue's current state.
func (c Clue) Content() string {
	switch c.Reveal {
	case Question:
		return DisplayText(c.Question)
	case Answer:
		return DisplayText(c.Answer)
	default:
		return Placeholder
	}
}

type Category struct {
	Title string `json:"title"`
	Clues []Clue `json:"clues"`
}

// Normalize drops clues the service has flagged as invalid and resets the
// rest to Hidden. Input order is kept; short categories are not padded.
func Normalize(raw []RawClue) []Clue {
	clues := make([]Clue, 0, len(raw))

	for _, r := range raw {
		if r.InvalidCount != nil {
			continue
		}

		clues = append(clues, Clue{
			Question: r.Question,
			Answer:   r.Answer,
			Reveal:   Hidden,
		})
	}

	return clues
}
