package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gatehouse/internal/apperr"
	"gatehouse/internal/constants"
	"gatehouse/internal/etag"
)

const problemContentType = "application/problem+json"

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type          string              `json:"type"`
	Title         string              `json:"title"`
	Status        int                 `json:"status"`
	Detail        string              `json:"detail,omitempty"`
	Instance      string              `json:"instance,omitempty"`
	CorrelationID string              `json:"correlationId"`
	Timestamp     time.Time           `json:"timestamp"`
	Retryable     bool                `json:"retryable,omitempty"`
	Errors        map[string][]string `json:"errors,omitempty"`
	CurrentETag   string              `json:"currentETag,omitempty"`
	PresentedETag string              `json:"presentedETag,omitempty"`
}

type problemKind struct {
	status int
	slug   string
	title  string
}

var problemKinds = map[apperr.Kind]problemKind{
	apperr.KindValidation:         {http.StatusUnprocessableEntity, constants.ProblemValidation, "Validation Failed"},
	apperr.KindAuthentication:     {http.StatusUnauthorized, constants.ProblemAuthentication, "Authentication Failed"},
	apperr.KindAuthorization:      {http.StatusForbidden, constants.ProblemAuthorization, "Forbidden"},
	apperr.KindNotFound:           {http.StatusNotFound, constants.ProblemNotFound, "Not Found"},
	apperr.KindConflict:           {http.StatusConflict, constants.ProblemConflict, "Conflict"},
	apperr.KindPreconditionFailed: {http.StatusPreconditionFailed, constants.ProblemPreconditionFailed, "Precondition Failed"},
	apperr.KindTransient:          {http.StatusInternalServerError, constants.ProblemInternal, "Internal Server Error"},
	apperr.KindInternal:           {http.StatusInternalServerError, constants.ProblemInternal, "Internal Server Error"},
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeTagged sets the ETag and answers a GET with 304 when If-None-Match matches it.
func writeTagged(w http.ResponseWriter, r *http.Request, status int, tag string, data any) {
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "private, no-cache")

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		if etag.HandleConditionalRead(r.Header.Get("If-None-Match"), tag) == etag.ServeNotModified {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	writeJSON(w, status, data)
}

// writeError is the only place an error kind becomes an HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeProblem(w, r, Problem{
			Type:   problemType(r, constants.ProblemPayloadTooLarge),
			Title:  "Payload Too Large",
			Status: http.StatusRequestEntityTooLarge,
			Detail: "Request body is too large",
		})
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err)
	}

	kind, ok := problemKinds[appErr.Kind]
	if !ok {
		kind = problemKinds[apperr.KindInternal]
	}

	p := Problem{
		Type:   problemType(r, kind.slug),
		Title:  kind.title,
		Status: kind.status,
		Detail: appErr.Message,
		Errors: appErr.Fields,
	}

	switch appErr.Kind {
	case apperr.KindTransient:
		p.Detail = "A temporary error occurred, please retry"
		p.Retryable = true
	case apperr.KindInternal:
		p.Detail = "An internal error occurred"
	case apperr.KindPreconditionFailed:
		p.CurrentETag = appErr.CurrentTag
		p.PresentedETag = appErr.PresentedTag
		w.Header().Set("ETag", appErr.CurrentTag)
	case apperr.KindAuthentication:
		w.Header().Set("WWW-Authenticate", `Bearer realm="gatehouse"`)
	}

	if kind.status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"error", err,
			"kind", appErr.Kind.String(),
			"path", r.URL.Path,
		)
	}

	writeProblem(w, r, p)
}

func writeProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Instance == "" {
		p.Instance = r.URL.Path
	}
	p.CorrelationID = CorrelationID(r.Context())
	p.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", problemContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

func problemType(r *http.Request, slug string) string {
	base, _ := r.Context().Value(problemBaseKey).(string)
	if base == "" {
		base = "/problems"
	}
	return strings.TrimRight(base, "/") + "/" + slug
}

func forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, Problem{
		Type:   problemType(r, constants.ProblemAuthorization),
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Detail: detail,
	})
}

var errRouteNotFound = apperr.NotFound("The requested resource does not exist")

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, r, Problem{
		Type:   problemType(r, constants.ProblemMethodNotAllowed),
		Title:  "Method Not Allowed",
		Status: http.StatusMethodNotAllowed,
		Detail: "Method not allowed for this resource",
	})
}
