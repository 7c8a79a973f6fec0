// Package server exposes the operator web UI: the removable-device
// inventory, and inject/flash jobs with per-device state and progress.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ufgtools/fwcard/internal/devices"
	"github.com/ufgtools/fwcard/internal/flash"
	"github.com/ufgtools/fwcard/internal/history"
	"github.com/ufgtools/fwcard/internal/inject"
	"github.com/ufgtools/fwcard/internal/platform"
)

// DeviceLister produces the removable-device inventory.
type DeviceLister func(ctx context.Context) ([]devices.Device, error)

// Job is the state of one inject or flash invocation, keyed the way the
// operator thinks about it: by target device (flash) or package (inject).
type Job struct {
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	Image    string `json:"image"`
	State    string `json:"state"` // running, done, failed
	Progress int    `json:"progress"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler manages HTTP requests for the web UI
type Handler struct {
	listDevices DeviceLister
	ops         platform.DiskOps
	store       *history.Store // nil disables run recording
	log         *logrus.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// New creates a new web UI handler.
func New(lister DeviceLister, ops platform.DiskOps, store *history.Store, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		listDevices: lister,
		ops:         ops,
		store:       store,
		log:         log,
		jobs:        make(map[string]*Job),
	}
}

// Routes returns the router serving the web UI API.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/devices", h.DevicesHandler).Methods("GET")
	r.HandleFunc("/api/jobs", h.JobsHandler).Methods("GET")
	r.HandleFunc("/api/flash", h.FlashHandler).Methods("POST")
	r.HandleFunc("/api/inject", h.InjectHandler).Methods("POST")
	r.HandleFunc("/api/health", h.HealthHandler).Methods("GET")
	return r
}

// DevicesHandler returns the current removable-device inventory.
func (h *Handler) DevicesHandler(w http.ResponseWriter, r *http.Request) {
	found, err := h.listDevices(r.Context())
	if err != nil {
		h.log.Errorf("device inventory failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	rows := make([]map[string]string, 0, len(found))
	for _, d := range found {
		rows = append(rows, map[string]string{
			"path":         d.Path,
			"size":         d.Size,
			"manufacturer": d.Manufacturer,
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

// JobsHandler returns all known jobs keyed by target.
func (h *Handler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	snapshot := make(map[string]Job, len(h.jobs))
	for k, j := range h.jobs {
		snapshot[k] = *j
	}
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

type flashRequest struct {
	Device string `json:"device"`
	Image  string `json:"image"`
}

// FlashHandler starts a flash job for a device. A device runs at most one
// job at a time.
func (h *Handler) FlashHandler(w http.ResponseWriter, r *http.Request) {
	var req flashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Device == "" || req.Image == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device and image are required"})
		return
	}

	job, ok := h.beginJob(req.Device, &Job{Kind: "flash", Target: req.Device, Image: req.Image, State: "running"})
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a job is already running for " + req.Device})
		return
	}

	go h.runFlash(job, req.Device, req.Image)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": req.Device})
}

type injectRequest struct {
	BaseImage string `json:"base_image"`
	Package   string `json:"package"`
}

// InjectHandler starts an injection job producing a prepared image.
func (h *Handler) InjectHandler(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BaseImage == "" || req.Package == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "base_image and package are required"})
		return
	}

	job, ok := h.beginJob(req.Package, &Job{Kind: "inject", Target: req.Package, Image: req.BaseImage, State: "running"})
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a job is already running for " + req.Package})
		return
	}

	go h.runInject(job, req.BaseImage, req.Package)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": req.Package})
}

// HealthHandler provides a health check endpoint
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// beginJob registers a job unless one is already running for the key.
func (h *Handler) beginJob(key string, job *Job) (*Job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.jobs[key]; ok && existing.State == "running" {
		return nil, false
	}
	h.jobs[key] = job
	return job, true
}

func (h *Handler) runFlash(job *Job, device, image string) {
	ctx := context.Background()
	runID := h.recordStart(ctx, "flash", device, image)

	p := flash.New(h.ops)
	p.Log = h.log
	p.Out = logWriter{h.log}
	p.Progress = nil
	p.ProgressInterval = time.Second
	p.OnProgress = func(written, total int64) {
		percent := 0
		if total > 0 {
			percent = int(written * 100 / total)
		}
		h.mu.Lock()
		job.Progress = percent
		h.mu.Unlock()
	}

	err := p.Run(ctx, device, image)
	h.finishJob(job, "", err)
	h.recordFinish(ctx, runID, err)
}

func (h *Handler) runInject(job *Job, baseImage, pkg string) {
	ctx := context.Background()
	runID := h.recordStart(ctx, "inject", pkg, baseImage)

	p := inject.New(h.ops)
	p.Log = h.log
	result, err := p.Run(ctx, baseImage, pkg)
	h.finishJob(job, result, err)
	h.recordFinish(ctx, runID, err)
}

func (h *Handler) finishJob(job *Job, result string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		job.State = "failed"
		job.Error = err.Error()
		return
	}
	job.State = "done"
	job.Progress = 100
	job.Result = result
}

func (h *Handler) recordStart(ctx context.Context, kind, target, image string) string {
	if h.store == nil {
		return ""
	}
	id, err := h.store.Start(ctx, kind, target, image)
	if err != nil {
		h.log.Warnf("history: %v", err)
	}
	return id
}

func (h *Handler) recordFinish(ctx context.Context, id string, runErr error) {
	if h.store == nil || id == "" {
		return
	}
	if err := h.store.Finish(ctx, id, runErr); err != nil {
		h.log.Warnf("history: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// logWriter routes the pipeline's machine-readable lines into the daemon
// log instead of stdout.
type logWriter struct {
	log *logrus.Logger
}

func (lw logWriter) Write(p []byte) (int, error) {
	lw.log.Info(string(p))
	return len(p), nil
}
