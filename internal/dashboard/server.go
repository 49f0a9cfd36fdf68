// Package dashboard serves the interactive analysis page and its JSON,
// GeoJSON, and XLSX endpoints.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/mapview"
	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/internal/report"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Analyzer runs one analysis.
type Analyzer interface {
	Run(ctx context.Context, req model.Request) (*model.Analysis, error)
}

// Options configures the dashboard handler.
type Options struct {
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// RequestTimeout bounds each request; zero disables the limit.
	RequestTimeout time.Duration
}

type server struct {
	svc Analyzer
}

// NewHandler returns the dashboard router.
func NewHandler(svc Analyzer, opts Options) http.Handler {
	s := &server{svc: svc}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/analysis.geojson", s.handleGeoJSON)
		r.Get("/analysis.xlsx", s.handleXLSX)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("dashboard: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analyze(w, r)
	if !ok {
		return
	}
	data, err := mapview.Marshal(a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	a, ok := s.analyze(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, a); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="analisis-`+a.ID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type indexData struct {
	Request  model.Request
	Analysis *model.Analysis
	GeoJSON  any
	Error    string
	// Query reproduces the form values for the download links.
	Query template.URL
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{Request: model.DefaultRequest()}

	req, err := parseRequest(r)
	if err == nil {
		data.Request = req
		data.Query = template.URL(queryString(req)) //nolint:gosec // built from parsed, encoded values
		a, runErr := s.svc.Run(r.Context(), req)
		if runErr != nil {
			err = runErr
		} else {
			data.Analysis = a
			data.GeoJSON = mapview.Build(a)
		}
	}
	if err != nil {
		data.Error = err.Error()
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		zap.L().Error("dashboard: render index", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// analyze parses and runs the request, writing an error response on failure.
func (s *server) analyze(w http.ResponseWriter, r *http.Request) (*model.Analysis, bool) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	a, err := s.svc.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if eris.Is(err, model.ErrInvalidRequest) {
			status = http.StatusBadRequest
		} else {
			zap.L().Error("dashboard: analysis failed", zap.Error(err))
		}
		writeError(w, status, err)
		return nil, false
	}
	return a, true
}

// parseRequest reads the form parameters over the default request. Missing
// parameters keep their defaults; malformed numbers are rejected.
func parseRequest(r *http.Request) (model.Request, error) {
	req := model.DefaultRequest()
	q := r.URL.Query()

	if q.Has("country") {
		req.Country = strings.TrimSpace(q.Get("country"))
	}
	if q.Has("city") {
		req.City = strings.TrimSpace(q.Get("city"))
	}

	var err error
	if req.Latitude, err = floatParam(q.Get("lat"), req.Latitude, "lat"); err != nil {
		return req, err
	}
	if req.Longitude, err = floatParam(q.Get("lon"), req.Longitude, "lon"); err != nil {
		return req, err
	}
	if req.RadiusKM, err = intParam(q.Get("radius"), req.RadiusKM, "radius"); err != nil {
		return req, err
	}
	if req.YearsBack, err = intParam(q.Get("years"), req.YearsBack, "years"); err != nil {
		return req, err
	}
	if v := q.Get("no_geocode"); v != "" {
		req.SkipGeocode, err = strconv.ParseBool(v)
		if err != nil {
			return req, eris.Wrapf(model.ErrInvalidRequest, "no_geocode: %q is not a boolean", v)
		}
	}
	return req, nil
}

// queryString encodes req as dashboard query parameters.
func queryString(req model.Request) string {
	v := url.Values{}
	v.Set("country", req.Country)
	v.Set("city", req.City)
	v.Set("lat", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	v.Set("radius", strconv.Itoa(req.RadiusKM))
	v.Set("years", strconv.Itoa(req.YearsBack))
	if req.SkipGeocode {
		v.Set("no_geocode", "true")
	}
	return v.Encode()
}

func floatParam(raw string, def float64, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidRequest, "%s: %q is not a number", name, raw)
	}
	return v, nil
}

func intParam(raw string, def int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidRequest, "%s: %q is not an integer", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
