package handler

import (
	"context"
	"net/http"

	"teaching-workload/internal/middleware"
	"teaching-workload/internal/model"
	"teaching-workload/internal/service"
	"teaching-workload/pkg/apierror"
)

// auditContext tags the request context with the caller address so audit
// entries written further down can record it.
func auditContext(r *http.Request) context.Context {
	return service.WithClientIP(r.Context(), middleware.ClientIP(r))
}

func currentIdentity(r *http.Request) (model.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return model.Identity{}, apierror.New(apierror.CodeInvalidToken, "authentication required", "", http.StatusUnauthorized)
	}
	return identity, nil
}
