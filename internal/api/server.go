package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"northpole/internal/domain"
	"northpole/internal/metrics"
	"northpole/internal/route"
	"northpole/internal/scheduler"
	"northpole/internal/store"
	"northpole/internal/worker"
	"northpole/internal/workshop"
)

type Options struct {
	Repo      store.Repository // optional; state is saved after every mutation when set
	Pool      *worker.Pool
	RateLimit rate.Limit // mutating routes; 0 disables limiting
	Burst     int
	Rand      *rand.Rand // coordinate generator
	Debug     bool
}

type Server struct {
	r       *chi.Mux
	ws      *workshop.Workshop
	repo    store.Repository
	pool    *worker.Pool
	limiter *rate.Limiter

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewServer(ws *workshop.Workshop, opts Options) http.Handler {
	metrics.RegisterDefault()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLog, middleware.Recoverer)

	s := &Server{r: r, ws: ws, repo: opts.Repo, pool: opts.Pool, rng: opts.Rand}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(opts.RateLimit, max(opts.Burst, 1))
	}

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.With(s.limit).Get("/ws", s.simulationStream)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.state)
		r.Get("/estimate", s.estimate)
		r.Get("/orders/top", s.topOrders)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)

		r.Group(func(r chi.Router) {
			r.Use(s.limit)
			r.Post("/toys", s.addToy)
			r.Delete("/toys/{name}", s.removeToy)
			r.Post("/elves", s.addElf)
			r.Post("/orders", s.addOrder)
			r.Delete("/orders/{index}", s.cancelOrder)
			r.Post("/assign", s.assign)
			r.Post("/capacity/reset", s.resetCapacity)
			r.Post("/reserve", s.reserve)
			r.Post("/route", s.planRoute)
			r.Post("/simulate", s.simulate)
		})
	})

	// Debug routes (pprof)
	if opts.Debug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Snapshot())
}

type addToyReq struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	BuildTime *int   `json:"build_time"`
	Stock     *int   `json:"stock"`
}

func (s *Server) addToy(w http.ResponseWriter, r *http.Request) {
	var req addToyReq
	if !decode(w, r, &req) {
		return
	}
	if req.Category == "" {
		req.Category = "General"
	}
	toy, err := domain.NewToy(req.Name, req.Category, intOr(req.BuildTime, 10), intOr(req.Stock, 1))
	if err == nil {
		err = s.ws.AddToy(toy)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r)
	writeJSON(w, http.StatusCreated, toy)
}

func (s *Server) removeToy(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.RemoveToy(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

type addElfReq struct {
	Name     string          `json:"name"`
	Skills   json.RawMessage `json:"skills"`
	Capacity *int            `json:"capacity"`
}

func (s *Server) addElf(w http.ResponseWriter, r *http.Request) {
	var req addElfReq
	if !decode(w, r, &req) {
		return
	}
	skills, err := parseSkills(req.Skills)
	if err != nil {
		writeError(w, err)
		return
	}
	elf, err := domain.NewElf(req.Name, skills, intOr(req.Capacity, 120))
	if err == nil {
		err = s.ws.AddElf(elf)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r)
	writeJSON(w, http.StatusCreated, elf)
}

// parseSkills accepts a JSON list or a comma-separated string.
func parseSkills(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var csv string
	if err := json.Unmarshal(raw, &csv); err != nil {
		return nil, domain.Invalid("skills", "skills must be a list or a comma-separated string")
	}
	return strings.Split(csv, ","), nil
}

type addOrderReq struct {
	Child    string `json:"child"`
	Toy      string `json:"toy"`
	Priority *int   `json:"priority"`
	Address  string `json:"address"`
	Message  string `json:"message"`
}

func (s *Server) addOrder(w http.ResponseWriter, r *http.Request) {
	var req addOrderReq
	if !decode(w, r, &req) {
		return
	}
	o, err := domain.NewOrder(req.Child, req.Toy, intOr(req.Priority, 3), req.Address, req.Message)
	if err == nil {
		err = s.ws.AddOrder(o)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r)
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, domain.Invalid("index", "order index must be an integer"))
		return
	}
	o, err := s.ws.CancelOrder(idx)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persist(r)
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) topOrders(w http.ResponseWriter, r *http.Request) {
	n := 3
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, domain.Invalid("n", "n must be a non-negative integer"))
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.ws.TopPriority(n))
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"minutes": s.ws.EstimateBuildTime()})
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	res := s.runPass(r)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) runPass(r *http.Request) scheduler.Result {
	res := s.ws.Assign()
	metrics.ObservePass(res)
	s.persist(r)
	return res
}

func (s *Server) resetCapacity(w http.ResponseWriter, r *http.Request) {
	s.ws.ResetCapacity()
	s.persist(r)
	writeJSON(w, http.StatusOK, s.ws.Elves())
}

func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	out := s.ws.ReserveStock()
	s.persist(r)
	writeJSON(w, http.StatusOK, out)
}

type routeReq struct {
	Stops []domain.Stop `json:"stops"`
}

type routeResp struct {
	Stops []domain.Stop `json:"stops"`
	route.Plan
}

func (s *Server) planRoute(w http.ResponseWriter, r *http.Request) {
	var req routeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	stops := req.Stops
	seen := make(map[string]struct{}, len(stops))
	for _, st := range stops {
		if _, dup := seen[st.Address]; dup {
			writeError(w, domain.Invalidf("stops", "duplicate address %q", st.Address))
			return
		}
		seen[st.Address] = struct{}{}
	}
	if len(stops) == 0 {
		s.rngMu.Lock()
		stops = route.Generate(s.ws.Addresses(), s.rng)
		s.rngMu.Unlock()
	}
	plan := route.Nearest(stops)
	if math.IsInf(plan.Distance, 0) {
		writeError(w, domain.Invalid("stops", "coordinates are too far apart to measure"))
		return
	}
	metrics.RouteDistance.Observe(plan.Distance)
	writeJSON(w, http.StatusOK, routeResp{Stops: stops, Plan: plan})
}

type simulateResp struct {
	RunID  string              `json:"run_id,omitempty"`
	Events []domain.BuildEvent `json:"events"`
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	events, err := s.pool.Simulate(r.Context(), s.ws.Elves())
	for _, ev := range events {
		metrics.ObserveEvent(ev)
	}
	runID := s.recordRun(r, started, events, err)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.BuildEvent{}
	}
	writeJSON(w, http.StatusOK, simulateResp{RunID: runID, Events: events})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeJSON(w, http.StatusOK, []store.Run{})
		return
	}
	runs, err := s.repo.ListRecentRuns(r.Context(), 50)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, store.ErrNotFound)
		return
	}
	run, events, err := s.repo.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "events": events})
}

// persist saves the workshop after a mutation. A failed save is logged; the
// in-memory state stays authoritative.
func (s *Server) persist(r *http.Request) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveSnapshot(r.Context(), s.ws.Snapshot()); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("save workshop state")
	}
}

func (s *Server) recordRun(r *http.Request, started time.Time, events []domain.BuildEvent, runErr error) string {
	if s.repo == nil {
		return ""
	}
	run := store.Run{State: store.RunSucceeded, StartedAt: started, FinishedAt: time.Now()}
	if runErr != nil {
		run.State, run.Error = store.RunFailed, runErr.Error()
		if errors.Is(runErr, context.Canceled) {
			run.State = store.RunCanceled
		}
	}
	// The request context may already be done when the simulation was cut short.
	id, err := s.repo.RecordRun(context.WithoutCancel(r.Context()), run, events)
	if err != nil {
		log.Error().Err(err).Msg("record build run")
		return ""
	}
	return id
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResp{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResp struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	}
	writeJSON(w, code, errorResp{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return false
	}
	return true
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
