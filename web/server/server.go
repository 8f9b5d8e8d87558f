package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/df07/go-stochastic-viz/pkg/pipeline"
)

// Request limits
const (
	minImageSize   = 64
	maxImageSize   = 2000
	maxRepetitions = 1024
	maxClusters    = 64
)

// Server handles web requests for the stochastic viewer
type Server struct {
	port    int
	dataDir string // directory scanned for importable files
}

// NewServer creates a new web server
func NewServer(port int, dataDir string) *Server {
	return &Server{port: port, dataDir: dataDir}
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Options pipeline.Options // Pipeline built for the render
	Width   int              // Image width
	Height  int              // Image height
}

// Handler returns the routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir("static/")))
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/datasets", s.handleDatasets)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("Starting web server on http://localhost%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDatasets lists the built-in datasets and the files in the data
// directory
func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	response, err := pipeline.ListAllDatasets(s.dataDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleConfig returns the default request parameters and their limits
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	defaults := pipeline.DefaultOptions()
	response := map[string]interface{}{
		"defaults": map[string]interface{}{
			"dataset":     defaults.Input,
			"mapper":      defaults.Mapper,
			"normals":     defaults.Normals,
			"clusters":    defaults.Clusters,
			"minClusters": defaults.MinClusters,
			"clustering":  defaults.Clustering,
			"seeding":     defaults.Seeding,
			"pointSize":   defaults.PointSize,
			"repetitions": defaults.Repetitions,
			"seed":        defaults.Seed,
			"shading":     defaults.Shading,
			"width":       400,
			"height":      400,
		},
		"limits": map[string]interface{}{
			"width":       map[string]int{"min": minImageSize, "max": maxImageSize},
			"height":      map[string]int{"min": minImageSize, "max": maxImageSize},
			"repetitions": map[string]int{"min": 1, "max": maxRepetitions},
			"clusters":    map[string]int{"min": 1, "max": maxClusters},
		},
		"mappers":  []string{pipeline.MapperNone, pipeline.MapperIsosurface, pipeline.MapperKMeans, pipeline.MapperVertices},
		"shadings": []string{"none", "lambert", "phong", "blinn-phong"},
	}
	writeJSON(w, http.StatusOK, response)
}

// resolveDataset accepts built-in dataset ids and files listed from the
// data directory, so requests cannot import arbitrary paths
func (s *Server) resolveDataset(id string) (string, error) {
	if pipeline.IsDataset(id) {
		return id, nil
	}
	files, err := pipeline.ListFileDatasets(s.dataDir)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.ID == id {
			return f.FilePath, nil
		}
	}
	return "", fmt.Errorf("unknown dataset: %s", id)
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	query := r.URL.Query()
	req := &RenderRequest{Options: pipeline.DefaultOptions()}
	o := &req.Options

	dataset := query.Get("dataset")
	if dataset == "" {
		dataset = o.Input
	}
	input, err := s.resolveDataset(dataset)
	if err != nil {
		return nil, err
	}
	o.Input = input

	o.Mapper = stringParam(query, "mapper", o.Mapper)
	o.Normals = stringParam(query, "normals", o.Normals)
	o.Clustering = stringParam(query, "clustering", o.Clustering)
	o.Seeding = stringParam(query, "seeding", o.Seeding)
	o.Shading = stringParam(query, "shading", o.Shading)

	if req.Width, err = parseIntParam(query, "width", 400, minImageSize, maxImageSize); err != nil {
		return nil, err
	}
	if req.Height, err = parseIntParam(query, "height", 400, minImageSize, maxImageSize); err != nil {
		return nil, err
	}
	if o.Repetitions, err = parseIntParam(query, "repetitions", o.Repetitions, 1, maxRepetitions); err != nil {
		return nil, err
	}
	if o.Clusters, err = parseIntParam(query, "clusters", o.Clusters, 1, maxClusters); err != nil {
		return nil, err
	}
	if o.MinClusters, err = parseIntParam(query, "minClusters", o.MinClusters, 1, maxClusters); err != nil {
		return nil, err
	}
	if o.PointSize, err = parseFloatParam(query, "pointSize", o.PointSize, 0.1, 64); err != nil {
		return nil, err
	}
	seed, err := parseIntParam(query, "seed", int(o.Seed), 0, 1<<31-1)
	if err != nil {
		return nil, err
	}
	o.Seed = uint64(seed)
	if query.Has("isolevel") {
		v, err := strconv.ParseFloat(query.Get("isolevel"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid isolevel: %s", query.Get("isolevel"))
		}
		o.Isolevel = &v
	}
	if o.Duplication, err = parseBoolParam(query, "duplication", o.Duplication); err != nil {
		return nil, err
	}
	if o.AdjustRange, err = parseBoolParam(query, "adjustRange", o.AdjustRange); err != nil {
		return nil, err
	}
	if o.Shuffle, err = parseBoolParam(query, "shuffle", o.Shuffle); err != nil {
		return nil, err
	}
	if o.Zooming, err = parseBoolParam(query, "zooming", o.Zooming); err != nil {
		return nil, err
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}

	// Performance warning
	if req.Width*req.Height > 800*600 && o.Repetitions > 100 {
		log.Printf("Render warning: Large image with many repetitions may render slowly")
	}
	return req, nil
}

func stringParam(values url.Values, key, defaultValue string) string {
	if value := values.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %f and %f, got: %f", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
