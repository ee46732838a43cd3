package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"pft/internal/apiclient"
	"pft/internal/chart"
	"pft/internal/dashboard"
	"pft/internal/log"
)

var (
	errNotFound = errors.New("not found")
	errBadForm  = errors.New("malformed form")
)

// handlerFunc is a handler whose errors all end in handleError.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (h handlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h(w, r); err != nil {
		handleError(w, r, err)
	}
}

// handleError is the dashboard's global error handler. API failures become
// 502, anything else 500. The alert region is left as it was: the failed
// action gets no visible feedback beyond the status.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := http.StatusInternalServerError
	var apiErr *apiclient.HTTPError
	switch {
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errBadForm):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}

	fields := []any{
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, status,
		log.FieldError, err,
	}
	if apiErr != nil {
		fields = append(fields, "api_status", apiErr.StatusCode, "api_body", apiErr.Body)
	}
	log.FromContext(ctx).ErrorContext(ctx, "Dashboard action failed", fields...)
	ErrorResponse(status).Write(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// handleIndex starts a new page session and renders the whole page. A
// session the browser held before is dropped.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if old, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Delete(old.Value)
	}

	id := uuid.NewString()
	sess, err := dashboard.NewSession(dashboard.Options{
		Backend: s.backend,
		Charts:  chart.NewSVG(),
		Views:   s.views,
		Logger:  s.logger.WithComponent(log.ComponentDashboard).With(log.FieldSessionID, id),
	})
	if err != nil {
		return err
	}
	var page bytes.Buffer
	_, err = sess.Do(func(sess *dashboard.Session) error { return sess.Init(ctx) })
	if err == nil {
		err = sess.WritePage(&page)
	}
	if err != nil {
		sess.Close()
		return err
	}
	// Rendered before it is published: once cached it may be evicted and closed.
	s.sessions.Set(id, sess)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err = page.WriteTo(w)
	return err
}

// sessionOp is one user action against a page session.
type sessionOp func(ctx context.Context, sess *dashboard.Session, r *http.Request) error

// sessionHandler runs op on the caller's page session. htmx requests get the
// changed regions as out-of-band swaps, plain requests the whole page. A
// missing, expired or closed session sends the browser back to /.
func (s *Server) sessionHandler(op sessionOp) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseForm(); err != nil {
			return errBadForm
		}

		sess, ok := s.lookupSession(r)
		if !ok {
			backToIndex(w, r)
			return nil
		}

		frags, err := sess.Do(func(sess *dashboard.Session) error {
			return op(r.Context(), sess, r)
		})
		if errors.Is(err, dashboard.ErrClosed) {
			backToIndex(w, r)
			return nil
		}
		if err != nil {
			return err
		}

		if isHTMX(r) {
			NewHTMXResponse().Fragments(frags).Write(w)
			return nil
		}
		var page bytes.Buffer
		if err := sess.WritePage(&page); err != nil {
			if errors.Is(err, dashboard.ErrClosed) {
				backToIndex(w, r)
				return nil
			}
			return err
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, err = page.WriteTo(w)
		return err
	}
}

// backToIndex sends the browser to / to start a new page session.
func backToIndex(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// lookupSession also renews the session's TTL.
func (s *Server) lookupSession(r *http.Request) (*dashboard.Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.sessions.Touch(c.Value)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errNotFound
	}
	return id, nil
}

func (s *Server) handleSubmitTransaction(ctx context.Context, sess *dashboard.Session, r *http.Request) error {
	return sess.SubmitTransaction(ctx, r.PostForm)
}

func (s *Server) handleSubmitBudget(ctx context.Context, sess *dashboard.Session, r *http.Request) error {
	return sess.SubmitBudget(ctx, r.PostForm)
}

func (s *Server) handleDeleteTransaction(ctx context.Context, sess *dashboard.Session, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	return sess.DeleteTransaction(ctx, id)
}

func (s *Server) handleDeleteBudget(ctx context.Context, sess *dashboard.Session, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	return sess.DeleteBudget(ctx, id)
}

func (s *Server) handleFilter(ctx context.Context, sess *dashboard.Session, r *http.Request) error {
	q := r.URL.Query()
	return sess.ApplyFilters(ctx, q.Get("month"), q.Get("year"))
}

func (s *Server) handleRefresh(ctx context.Context, sess *dashboard.Session, r *http.Request) error {
	sess.Refresh(ctx)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"uptime":              time.Since(s.started).Round(time.Second).String(),
		"sessions":            s.sessions.Stats(),
		"requests":            s.tracer.GetMetrics(),
		"suspicious_requests": s.detector.GetMetrics().SuspiciousRequests,
		"rate_limited":        s.limiter.GetMetrics().Rejected,
	})
}

// handleReady checks the templates and, when the backend supports it, the API.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"templates": "ok"}
	if s.views == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	if hc, ok := s.backend.(HealthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			checks["api"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["api"] = "ok"
		}
	} else {
		checks["api"] = "not_checked"
	}

	return writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
