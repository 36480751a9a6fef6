package dto

// QueryRequest mirrors the backend query schema. DocumentNames nil means
// "search all documents" and is sent as an explicit JSON null; a scoped
// query always carries a non-empty list.
type QueryRequest struct {
	Question      string   `json:"question" validate:"required,min=3"`
	DocumentNames []string `json:"document_names" validate:"omitempty,min=1"`
	NResults      int      `json:"n_results" validate:"min=1,max=20"`
}

type SourceDTO struct {
	Filename string  `json:"filename"`
	Page     int     `json:"page"`
	Type     string  `json:"type,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// QueryResponse is the blocking (non-streaming) query result.
type QueryResponse struct {
	Answer       string      `json:"answer"`
	Sources      []SourceDTO `json:"sources"`
	Question     string      `json:"question"`
	SearchedDocs []string    `json:"searched_docs"`
}
