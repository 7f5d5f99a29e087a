package server

import (
	"net/http"
	"strings"

	"github.com/jacksonlee411/payroll-engine/internal/routing"
)

// Identity headers are set by the authenticating gateway in front of this service.
const (
	headerWorkspaceID = "X-Workspace-ID"
	headerActorID     = "X-Actor-ID"
	headerActorRole   = "X-Actor-Role"

	maxIdentifierLen = 128
)

func withWorkspaceAndPrincipal(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		workspaceID := strings.TrimSpace(r.Header.Get(headerWorkspaceID))
		if workspaceID == "" {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "workspace_missing", "workspace missing")
			return
		}
		if len(workspaceID) > maxIdentifierLen || strings.ContainsAny(workspaceID, " \t") {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_workspace", "invalid workspace")
			return
		}
		r = r.WithContext(withWorkspace(r.Context(), workspaceID))

		if actorID := strings.TrimSpace(r.Header.Get(headerActorID)); actorID != "" {
			r = r.WithContext(withPrincipal(r.Context(), Principal{
				ID:          actorID,
				WorkspaceID: workspaceID,
				RoleSlug:    strings.ToLower(strings.TrimSpace(r.Header.Get(headerActorRole))),
			}))
		}

		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	return path == "/health" || path == "/healthz"
}
