// Package gateway exposes the deploy surface over HTTP: PUT routing,
// credential screening, and error translation.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jarvault/jarvault/core/auth"
	"github.com/jarvault/jarvault/core/blob"
	"github.com/jarvault/jarvault/core/deploy"
	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/infra/logging"
	infraMetrics "github.com/jarvault/jarvault/core/infra/metrics"
)

// statusMessageHeader carries the short failure summary next to the
// response body.
const statusMessageHeader = "status-message"

// Server is the HTTP front of the deploy pipeline.
type Server struct {
	Deploys  *deploy.Service
	Tokens   auth.TokenSource
	Repo     *blob.FSStore
	Metrics  infraMetrics.GatewayMetrics
	Reporter Reporter
}

func (s *Server) reporter() Reporter {
	if s.Reporter != nil {
		return s.Reporter
	}
	return LogReporter{}
}

// Handler builds the route table with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("PUT /{path...}", s.instrumented("deploy", s.wrapErrors(s.handlePut)))
	mux.HandleFunc("GET /{path...}", s.instrumented("repo", s.handleGet))
	mux.HandleFunc("/{path...}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return rejectDotDot(mux)
}

// rejectDotDot refuses any URI containing a parent-directory reference
// before routing sees it.
func rejectDotDot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RequestURI(), "..") {
			statusMessage(w, http.StatusBadRequest, "relative paths are not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrumented wraps handlers to record metrics.
func (s *Server) instrumented(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		if s.Metrics != nil {
			s.Metrics.ObserveRequest(r.Method, route, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
		}
	}
}

// wrapErrors translates handler errors (and panics) into HTTP
// responses. Deploy rejections answer with their own status and are not
// reported; anything else gets a trace id and goes to the reporter.
func (s *Server) wrapErrors(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := uuid.NewString()
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				s.reporter().Report(err, r, traceID)
				statusMessage(w, http.StatusForbidden, "an unexpected error occurred (trace "+traceID+")")
			}
		}()
		if err := fn(w, r); err != nil {
			s.respondError(w, r, err, traceID)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, traceID string) {
	if de, ok := deploy.AsError(err); ok {
		statusMessage(w, de.Status, de.Message)
		return
	}
	s.reporter().Report(err, r, traceID)
	statusMessage(w, http.StatusForbidden, "an unexpected error occurred (trace "+traceID+")")
}

func statusMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set(statusMessageHeader, http.StatusText(status)+" - "+msg)
	http.Error(w, msg, status)
}

// handlePut authenticates the request, matches the deploy path shapes,
// and dispatches to the upload pipeline.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) error {
	ident, err := s.authenticate(r)
	if err != nil {
		return err
	}
	sess := sessionFromRequest(r)

	pathValue := strings.Trim(r.PathValue("path"), "/")
	segs := strings.Split(pathValue, "/")
	n := len(segs)
	if pathValue == "" || n < 3 {
		statusMessage(w, http.StatusBadRequest, "unrecognized deploy path")
		return nil
	}
	filename := segs[n-1]
	ctx := r.Context()

	switch {
	case isMetadataName(filename):
		penult := segs[n-2]
		if gav.IsSnapshot(penult) || gav.IsTimestampVersion(penult) {
			// Snapshot metadata lives under a version directory; the
			// trailing group segment is really the artifact.
			if n < 4 {
				statusMessage(w, http.StatusBadRequest, "unrecognized deploy path")
				return nil
			}
			group := strings.Join(segs[:n-3], "/")
			if err := s.Deploys.HandleVersionedUpload(ctx, ident, r.Body, sess, group, segs[n-3], penult, filename); err != nil {
				return err
			}
		} else if filename == "maven-metadata.xml" {
			group := strings.Join(segs[:n-2], "/")
			if err := s.Deploys.HandleMetadataUpload(ctx, ident, r.Body, sess, group, penult); err != nil {
				return err
			}
		}
		// Client-sent checksums for the metadata file are dropped; the
		// server regenerates its own during finalization.
		return created(w, sess)

	case hasDeployExt(filename) && n >= 4:
		group := strings.Join(segs[:n-3], "/")
		if strings.Contains(group, ".") {
			statusMessage(w, http.StatusBadRequest, "group paths must be slash-encoded")
			return nil
		}
		if err := s.Deploys.HandleVersionedUpload(ctx, ident, r.Body, sess, group, segs[n-3], segs[n-2], filename); err != nil {
			return err
		}
		return created(w, sess)

	default:
		statusMessage(w, http.StatusBadRequest, "unrecognized deploy path")
		return nil
	}
}

// authenticate screens credentials for the deploy surface: only tokens
// are acceptable, and password-shaped credentials are audit-logged.
func (s *Server) authenticate(r *http.Request) (*auth.Identity, error) {
	ident, err := auth.FromRequest(r.Context(), r, s.Tokens)
	switch {
	case err == nil:
		return ident, nil
	case errors.Is(err, auth.ErrPasswordAuth):
		user, _, _ := r.BasicAuth()
		logging.Audit(user, "deploy-password-rejected", "path", r.URL.Path)
		return nil, &deploy.Error{
			Tag:     deploy.TagPasswordRejection,
			Message: "a deploy token is required to deploy; passwords are not accepted",
			Status:  http.StatusUnauthorized,
		}
	case errors.Is(err, auth.ErrNoCredentials):
		return nil, &deploy.Error{
			Tag:     deploy.TagDeployForbidden,
			Message: "a deploy token is required to deploy",
			Status:  http.StatusUnauthorized,
		}
	default:
		return nil, &deploy.Error{
			Tag:     deploy.TagDeployForbidden,
			Message: "invalid deploy token",
			Status:  http.StatusUnauthorized,
		}
	}
}

func sessionFromRequest(r *http.Request) *deploy.Session {
	cookie, err := r.Cookie(deploy.CookieName)
	if err != nil {
		return &deploy.Session{}
	}
	return deploy.DecodeSession(cookie.Value)
}

func created(w http.ResponseWriter, sess *deploy.Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     deploy.CookieName,
		Value:    sess.Encode(),
		Path:     "/",
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusCreated)
	return nil
}

// handleGet serves artifacts from the local repository directory.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.Repo == nil {
		http.NotFound(w, r)
		return
	}
	key := strings.Trim(r.PathValue("path"), "/")
	rc, err := s.Repo.Open(r.Context(), key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		logging.Error("gateway", "artifact read failed", "key", key, "error", err)
	}
}

func isMetadataName(name string) bool {
	return name == "maven-metadata.xml" ||
		name == "maven-metadata.xml.md5" ||
		name == "maven-metadata.xml.sha1"
}

var deployExts = []string{".pom", ".jar", ".sha1", ".md5", ".asc"}

func hasDeployExt(name string) bool {
	for _, ext := range deployExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
