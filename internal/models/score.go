package models

// Score is the bounded multi-dimension evaluation of a profile.
// Every field lies in [0,100].
type Score struct {
	Novelty  int    `json:"novelty"`
	Activity int    `json:"activity"`
	Quality  int    `json:"quality"`
	Impact   int    `json:"impact"`
	Total    int    `json:"total"`   // Weighted total
	Summary  string `json:"summary"` // Deterministic human-readable evaluation
}
