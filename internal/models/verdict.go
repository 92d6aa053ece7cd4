package models

// Classification is a predicted category for an expense description.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// VerdictRequest asks a spending question on behalf of a user.
type VerdictRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

// VerdictResponse is the answer plus the facts it was grounded on, nearest first.
type VerdictResponse struct {
	Verdict   string   `json:"verdict"`
	FactsUsed []string `json:"facts_used"`
	Question  string   `json:"question"`
}

// BuildRequest asks for a background knowledge base rebuild.
type BuildRequest struct {
	UserID string `json:"user_id"`
}
