package models

// ErrorResponse is the body of every API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// GrantListResponse is a page of the grant audit trail
type GrantListResponse struct {
	Grants   []*Grant `json:"grants"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// EvaluationListResponse is a page of the evaluation audit trail
type EvaluationListResponse struct {
	Evaluations []*Evaluation `json:"evaluations"`
	Page        int           `json:"page"`
	PageSize    int           `json:"page_size"`
}
