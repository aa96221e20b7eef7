package handler

import (
	"net/http"

	"teaching-workload/internal/model"
	"teaching-workload/internal/service"
)

type SemesterHandler struct {
	service *service.SemesterService
}

func NewSemesterHandler(service *service.SemesterService) *SemesterHandler {
	return &SemesterHandler{service: service}
}

func (h *SemesterHandler) List(w http.ResponseWriter, r *http.Request) {
	semesters, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, semesters)
}

func (h *SemesterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	semester, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, semester)
}

func (h *SemesterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateSemesterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	semester, err := h.service.Create(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, semester)
}

func (h *SemesterHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.UpdateSemesterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	semester, err := h.service.Update(r.Context(), id, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, semester)
}
