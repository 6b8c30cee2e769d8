package server

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolmaps/overcrowding/pkg/capacity"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/heatmap"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
	"github.com/schoolmaps/overcrowding/pkg/scale"
	"github.com/schoolmaps/overcrowding/pkg/selection"
	"github.com/schoolmaps/overcrowding/pkg/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.dataset.Load() == nil {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// summaryResponse is the county view of the current dataset.
type summaryResponse struct {
	Year         string           `json:"year"`
	Summary      capacity.Summary `json:"summary"`
	Clusters     int              `json:"clusters"`
	Schools      int              `json:"schools"`
	ClusterScale *scale.Bounds    `json:"cluster_scale,omitempty"`
	BuiltAt      time.Time        `json:"built_at"`
}

func newSummary(ds *pipeline.Dataset) summaryResponse {
	resp := summaryResponse{
		Year:     ds.Year,
		Summary:  ds.Heatmap.Summary(),
		Clusters: len(ds.Clusters),
		Schools:  len(ds.Schools),
		BuiltAt:  ds.BuiltAt,
	}
	if b, ok := ds.Heatmap.ClusterBounds(); ok {
		resp.ClusterScale = &b
	}
	return resp
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSummary(s.Dataset()))
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	out := make([]heatmap.Stats, 0, len(ds.Clusters))
	for _, id := range ds.ClusterIDs() {
		st, err := ds.Heatmap.ClusterStats(id)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

type clusterResponse struct {
	heatmap.Stats
	Schools []heatmap.Stats `json:"schools"`
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	id := chi.URLParam(r, "id")
	st, err := ds.Heatmap.ClusterStats(id)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := ds.Selection().Schools(id)
	slices.Sort(ids)
	resp := clusterResponse{Stats: st, Schools: make([]heatmap.Stats, 0, len(ids))}
	for _, sid := range ids {
		if ss, err := ds.Heatmap.SchoolStats(sid); err == nil {
			resp.Schools = append(resp.Schools, ss)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type schoolResponse struct {
	heatmap.Stats
	Cluster string `json:"cluster,omitempty"`
}

func (s *Server) handleSchool(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	id := chi.URLParam(r, "id")
	st, err := ds.Heatmap.SchoolStats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schoolResponse{Stats: st, Cluster: ds.Membership[id]})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.renderMap(w, r, q.Get("cluster"), q.Get("school"))
}

// renderMap renders the current dataset as SVG with the given focus and the
// display toggles from the query string.
func (s *Server) renderMap(w http.ResponseWriter, r *http.Request, cluster, school string) {
	opts := s.opts
	opts.Formats = []string{pipeline.FormatSVG}
	opts.Cluster, opts.School = cluster, school

	q := r.URL.Query()
	for name, dst := range map[string]*bool{
		"all":    &opts.AllSchools,
		"legend": &opts.Legend,
		"stats":  &opts.Stats,
	} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, errors.New(errors.ErrCodeInvalidInput, "%s must be a boolean, got %q", name, v))
				return
			}
			*dst = b
		}
	}

	artifacts, err := s.runner.Render(r.Context(), s.Dataset(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSVG(w, artifacts[pipeline.FormatSVG])
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := s.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummary(ds))
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := session.New(s.cfg.SessionTTL)
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sid := chi.URLParam(r, "sid")
	if !session.ValidID(sid) {
		writeError(w, errors.New(errors.ErrCodeSessionNotFound, "unknown session %q", sid))
		return nil, false
	}
	sess, err := s.sessions.Get(r.Context(), sid)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.loadSession(w, r); ok {
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition applies one selection event to a stored session. A failed
// event leaves the stored state untouched.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, apply func(*selection.Controller) (selection.State, error)) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	ctrl := s.Dataset().Selection()
	if err := ctrl.Restore(sess.State); err != nil {
		// the session predates a reload that dropped its IDs
		ctrl.Reset()
	}
	state, err := apply(ctrl)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.State = state
	sess.Touch()
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSelectCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.transition(w, r, func(c *selection.Controller) (selection.State, error) {
		return c.SelectCluster(id)
	})
}

func (s *Server) handleSelectSchool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.transition(w, r, func(c *selection.Controller) (selection.State, error) {
		return c.SelectSchool(id)
	})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(c *selection.Controller) (selection.State, error) {
		return c.Reset(), nil
	})
}

func (s *Server) handleSessionMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	s.renderMap(w, r, sess.State.Cluster, sess.State.School)
}
