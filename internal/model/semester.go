package model

type Semester struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CreateSemesterRequest struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type UpdateSemesterRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}
