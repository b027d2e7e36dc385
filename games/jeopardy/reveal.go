/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

// RevealState tracks how much of a clue has been disclosed.
// It only ever moves forward: Hidden, then Question, then Answer.
type RevealState int

const (
	Hidden RevealState = iota
	Question
	Answer
)

// Next returns the state following r. Answer is terminal.
func (r RevealState) Next() RevealState {
	switch r {
	case Hidden:
		return Question
	default:
		return Answer
	}
}

func (r RevealState) String() string {
	switch r {
	case Hidden:
		return "hidden"
	case Question:
		return "question"
	case Answer:
		return "answer"
	default:
		return "unknown"
	}
}

func (r RevealState) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
