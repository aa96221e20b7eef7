package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"teaching-workload/internal/model"
	"teaching-workload/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps store sentinels onto the error envelope. Anything it does
// not recognise is logged and sent as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierror.APIError

	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, model.ErrUserNotFound):
		apiErr = apierror.New(apierror.CodeNotFound, "User not found", "", http.StatusNotFound)
	case errors.Is(err, model.ErrUserAlreadyExists):
		apiErr = apierror.New(apierror.CodeAlreadyExists, "User already exists", "", http.StatusConflict)
	case errors.Is(err, model.ErrSemesterNotFound):
		apiErr = apierror.New(apierror.CodeNotFound, "Semester not found", "", http.StatusNotFound)
	case errors.Is(err, model.ErrSemesterAlreadyExists):
		apiErr = apierror.New(apierror.CodeAlreadyExists, "Semester already exists", "", http.StatusConflict)
	case errors.Is(err, model.ErrInvalidToken):
		apiErr = apierror.New(apierror.CodeInvalidToken, "invalid or expired token", "", http.StatusUnauthorized)
	case errors.Is(err, model.ErrInvalidInput):
		apiErr = apierror.New(apierror.CodeBadRequest, "Invalid input", "", http.StatusBadRequest)
	default:
		slog.Error("unhandled error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	}

	if apiErr == nil {
		apierror.Write(w, r, err)
		return
	}
	apierror.Write(w, r, apiErr)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return apierror.New(apierror.CodeBadRequest, "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New(apierror.CodeBadRequest, "invalid id", raw, http.StatusBadRequest)
	}
	return id, nil
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, apierror.New(apierror.CodeNotFound, "Route not found", "", http.StatusNotFound))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, r, apierror.New(apierror.CodeBadRequest, "Method not allowed", "", http.StatusMethodNotAllowed))
}
