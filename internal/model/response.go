package model

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type AuditList struct {
	Items []AuditEntry `json:"items"`
	Meta  Meta         `json:"meta"`
}
