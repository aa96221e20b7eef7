package handler

import (
	"net/http"
	"strconv"
	"strings"

	"teaching-workload/internal/model"
	"teaching-workload/internal/service"
	"teaching-workload/pkg/apierror"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var actorID int64
	if raw := strings.TrimSpace(query.Get("actorId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, apierror.New(apierror.CodeBadRequest, "invalid actorId", raw, http.StatusBadRequest))
			return
		}
		actorID = parsed
	}

	list, err := h.service.Query(r.Context(), model.AuditQuery{
		Action:  strings.TrimSpace(query.Get("action")),
		Status:  strings.TrimSpace(query.Get("status")),
		ActorID: actorID,
		Page:    parseIntOrDefault(query.Get("page"), 1),
		Limit:   parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}
