package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/reservoir/internal/platform/oar"
	"github.com/imamik/reservoir/internal/spec"
)

// codeInvalidRequest is the error code of malformed requests.
const codeInvalidRequest = "invalid_request"

// Options configure a Server.
type Options struct {
	Inventory *Inventory
	Store     *Store
	// Token, when set, is required as bearer token on every API call.
	Token string
	Now   func() time.Time
	Log   logr.Logger
}

// Server implements the testbed API.
type Server struct {
	inv   *Inventory
	store *Store
	token string
	now   func() time.Time
	log   logr.Logger

	// mu serializes scheduling decisions.
	mu sync.Mutex
}

// NewServer returns a server over opts.Inventory and opts.Store.
func NewServer(opts Options) (*Server, error) {
	if opts.Inventory == nil {
		return nil, errors.New("inventory is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log.GetSink() == nil {
		opts.Log = logr.Discard()
	}
	return &Server{
		inv:   opts.Inventory,
		store: opts.Store,
		token: opts.Token,
		now:   opts.Now,
		log:   opts.Log,
	}, nil
}

// Handler returns the HTTP handler of the API and of /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(instrument)
		r.Use(s.authenticate)

		r.Get("/sites", s.listSites)
		r.Route("/sites/{site}", func(r chi.Router) {
			r.Use(s.withSite)
			r.Get("/", s.getSite)
			r.Get("/status", s.getStatus)
			r.Get("/vlans/{id}", s.getVLAN)
			r.Put("/vlans/{id}/nodes", s.putVLANMembers)
			r.Get("/jobs", s.listJobs)
			r.Post("/jobs", s.submitJob)
			r.Get("/jobs/{id}", s.getJob)
			r.Delete("/jobs/{id}", s.deleteJob)
			r.Post("/deployments", s.submitDeployment)
			r.Get("/deployments/{id}", s.getDeployment)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.V(1).Info("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start), "id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type siteKey struct{}

func (s *Server) withSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site, ok := s.inv.Site(chi.URLParam(r, "site"))
		if !ok {
			writeError(w, http.StatusNotFound, "", "unknown site "+chi.URLParam(r, "site"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), siteKey{}, site)))
	})
}

func siteFrom(r *http.Request) *SiteSpec {
	return r.Context().Value(siteKey{}).(*SiteSpec)
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.inv.SiteNames())
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, siteFrom(r).API())
}

func (s *Server) getVLAN(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	v, ok := site.VLAN(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "", "unknown vlan "+chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, site.APIVLAN(v))
}

func (s *Server) putVLANMembers(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	id := chi.URLParam(r, "id")
	if _, ok := site.VLAN(id); !ok {
		writeError(w, http.StatusNotFound, "", "unknown vlan "+id)
		return
	}

	var members []oar.VLANMember
	if err := json.NewDecoder(r.Body).Decode(&members); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON")
		return
	}
	for _, m := range members {
		if !site.HasNode(m.Node) {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "unknown node "+m.Node)
			return
		}
		c, _ := site.Cluster(spec.ClusterOf(m.Node))
		if m.Interface != "" && !slices.Contains(c.Interfaces, m.Interface) {
			writeError(w, http.StatusBadRequest, codeInvalidRequest,
				fmt.Sprintf("node %s has no interface %s", m.Node, m.Interface))
			return
		}
	}

	for _, m := range members {
		if err := s.store.SetVLANMember(r.Context(), site.UID, id, m.Node, m.Interface); err != nil {
			s.internalError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	from, err1 := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
	to, err2 := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
	if err1 != nil || err2 != nil || to < from {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "start and end must be unix timestamps, start first")
		return
	}

	f, err := freeOver(r.Context(), s.store, site, from, to)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f.availability(from, to))
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	var req oar.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON")
		return
	}
	if msg := validateJob(site, req); msg != "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, msg)
		return
	}

	now := s.now().Unix()
	want := now
	if req.Reservation != 0 {
		if req.Reservation < now {
			jobsSubmittedTotal.WithLabelValues("too_old").Inc()
			writeError(w, http.StatusBadRequest, oar.CodeReservationTooOld, "reservation date is in the past")
			return
		}
		want = req.Reservation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok, err := place(r.Context(), s.store, site, req, want)
	if err != nil {
		s.internalError(w, err)
		return
	}
	switch {
	case !ok:
		jobsSubmittedTotal.WithLabelValues("refused").Inc()
		writeJSON(w, http.StatusBadRequest, oar.APIError{
			Code:    oar.CodeInvalidReservationTime,
			Message: "the request exceeds what the site can ever provide",
		})
		return
	case req.Reservation != 0 && p.start != want:
		jobsSubmittedTotal.WithLabelValues("refused").Inc()
		writeJSON(w, http.StatusBadRequest, oar.APIError{
			Code:    oar.CodeInvalidReservationTime,
			Message: "resources are not free over the requested interval",
			Hint:    p.start,
		})
		return
	}

	j := &jobRecord{
		Site:        site.UID,
		Name:        req.Name,
		Start:       p.start,
		End:         p.start + req.Walltime,
		Walltime:    req.Walltime,
		Types:       req.Types,
		Queue:       req.Queue,
		Project:     req.Project,
		SubmittedAt: now,
		Nodes:       p.nodes,
		Networks:    p.networks,
	}
	if err := s.store.CreateJob(r.Context(), j); err != nil {
		s.internalError(w, err)
		return
	}
	jobsSubmittedTotal.WithLabelValues("accepted").Inc()
	s.log.Info("job scheduled", "site", site.UID, "id", j.ID, "name", j.Name,
		"start", time.Unix(j.Start, 0).UTC(), "nodes", len(j.Nodes), "networks", len(j.Networks))
	writeJSON(w, http.StatusCreated, s.render(site, j))
}

func validateJob(site *SiteSpec, req oar.JobRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Walltime <= 0 {
		return "walltime must be positive"
	}
	for _, nr := range req.Nodes {
		for _, n := range nr.Servers {
			if !site.HasNode(n) {
				return "unknown node " + n
			}
		}
		if len(nr.Servers) > 0 {
			continue
		}
		if _, ok := site.Cluster(nr.Cluster); !ok {
			return "unknown cluster " + nr.Cluster
		}
		if nr.Count <= 0 || nr.Min > nr.Count {
			return fmt.Sprintf("cluster %s: count must be positive and at least min", nr.Cluster)
		}
	}
	for _, n := range req.Networks {
		kind := spec.NetworkKind(n.Kind)
		if kind == spec.KindProduction || !kind.Valid() || n.Count <= 0 {
			return fmt.Sprintf("cannot reserve %d %q networks", n.Count, n.Kind)
		}
	}
	return ""
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	jobs, err := s.store.Jobs(r.Context(), site.UID, r.URL.Query().Get("name"))
	if err != nil {
		s.internalError(w, err)
		return
	}

	var states []string
	if raw := r.URL.Query().Get("state"); raw != "" {
		states = strings.Split(raw, ",")
	}
	out := []*oar.Job{}
	for _, j := range jobs {
		job := s.render(site, j)
		if len(states) == 0 || slices.Contains(states, job.State) {
			out = append(out, job)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.render(site, j))
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	j, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteJob(r.Context(), site.UID, j.ID, s.now().Unix()); err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("job deleted", "site", site.UID, "id", j.ID)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*jobRecord, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid job id")
		return nil, false
	}
	j, err := s.store.Job(r.Context(), siteFrom(r).UID, id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "", err.Error())
		return nil, false
	}
	if err != nil {
		s.internalError(w, err)
		return nil, false
	}
	return j, true
}

// state derives the scheduler state of j at now.
func state(j *jobRecord, now int64) string {
	switch {
	case j.Deleted:
		return oar.StateTerminated
	case now < j.Start:
		return oar.StateWaiting
	case now < j.End:
		return oar.StateRunning
	default:
		return oar.StateTerminated
	}
}

func (s *Server) render(site *SiteSpec, j *jobRecord) *oar.Job {
	now := s.now().Unix()
	out := &oar.Job{
		ID:          j.ID,
		Name:        j.Name,
		Site:        j.Site,
		State:       state(j, now),
		ScheduledAt: j.Start,
		Walltime:    j.Walltime,
		Types:       j.Types,
		Nodes:       j.Nodes,
	}
	if out.State != oar.StateWaiting {
		out.StartedAt = j.Start
	}
	for _, n := range j.Networks {
		kind := spec.NetworkKind(n.Kind)
		if kind.IsVLAN() {
			out.VLANs = append(out.VLANs, n.Network)
		} else {
			out.Subnets = append(out.Subnets, site.subnets(kind, n.Network)...)
		}
	}
	return out
}

func (s *Server) submitDeployment(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	var req oar.DeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON")
		return
	}
	if len(req.Nodes) == 0 || req.Environment == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "nodes and environment are required")
		return
	}
	for _, n := range req.Nodes {
		if !site.HasNode(n) {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "unknown node "+n)
			return
		}
	}
	if req.VLAN != "" {
		if _, ok := site.VLAN(req.VLAN); !ok {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "unknown vlan "+req.VLAN)
			return
		}
	}

	d := &deploymentRecord{
		ID:          uuid.NewString(),
		Site:        site.UID,
		Nodes:       req.Nodes,
		Environment: req.Environment,
		VLAN:        req.VLAN,
		Status:      oar.DeploymentProcessing,
		Result:      map[string]string{},
	}
	if err := s.store.CreateDeployment(r.Context(), d); err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("deployment started", "site", site.UID, "id", d.ID, "environment", d.Environment, "nodes", len(d.Nodes))
	writeJSON(w, http.StatusCreated, renderDeployment(d))
}

// getDeployment finishes a processing deployment on its first poll.
func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	site := siteFrom(r)
	d, err := s.store.Deployment(r.Context(), site.UID, chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "", err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	if d.Status == oar.DeploymentProcessing {
		failed := 0
		for _, n := range d.Nodes {
			if s.inv.FailsDeploy(n) {
				d.Result[n] = oar.NodeKO
				failed++
			} else {
				d.Result[n] = oar.NodeOK
			}
		}
		d.Status = oar.DeploymentTerminated
		if failed == len(d.Nodes) {
			d.Status = oar.DeploymentError
		}
		if d.VLAN != "" {
			for _, n := range d.Nodes {
				if err := s.store.SetVLANMember(r.Context(), site.UID, d.VLAN, n, ""); err != nil {
					s.internalError(w, err)
					return
				}
			}
		}
		if err := s.store.FinishDeployment(r.Context(), d.ID, d.Status, d.Result); err != nil {
			s.internalError(w, err)
			return
		}
		s.log.Info("deployment finished", "site", site.UID, "id", d.ID, "status", d.Status, "failed", failed)
	}
	writeJSON(w, http.StatusOK, renderDeployment(d))
}

func renderDeployment(d *deploymentRecord) *oar.Deployment {
	return &oar.Deployment{ID: d.ID, Site: d.Site, Status: d.Status, Nodes: d.Nodes, Result: d.Result}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error(err, "request failed")
	writeError(w, http.StatusInternalServerError, "", "internal error")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, oar.APIError{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
