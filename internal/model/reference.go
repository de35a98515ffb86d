package model

// Reference is one knowledge-base row returned by the similarity search.
type Reference struct {
	Question string  `json:"question" db:"question"`
	Answer   string  `json:"answer" db:"answer"`
	Score    float64 `json:"score" db:"score"`
}
