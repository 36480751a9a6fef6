package dto

type DocumentInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Pages int    `json:"pages"`
}

type DocumentsListResponse struct {
	Documents      []DocumentInfo `json:"documents"`
	TotalDocuments int            `json:"total_documents"`
}

type DocumentStatsResponse struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Count  int    `json:"count"`
	Pages  int    `json:"pages"`
}

type UploadResponse struct {
	Filename       string `json:"filename"`
	CollectionName string `json:"collection_name"`
	Pages          int    `json:"pages"`
	TotalDocs      int    `json:"total_docs"`
	Message        string `json:"message"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}
