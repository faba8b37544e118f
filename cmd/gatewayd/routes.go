package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/comfygw/gateway/internal/gwerrors"

	"github.com/comfygw/gateway/internal/api"
)

// newRouter wires the demo HTTP surface over the Gateway façade. Template
// CRUD, API-key management, and admin login are out of scope per
// SPEC_FULL.md's Non-goals; they get a single stub handler so the mux
// wiring itself is exercised without implementing their business logic.
func newRouter(gw *api.Gateway) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/prompt", handleSubmit(gw)).Methods(http.MethodPost)
	r.HandleFunc("/status/{prompt_id}", handleStatus(gw)).Methods(http.MethodGet)
	r.HandleFunc("/gateway_status/{gateway_job_id}", handleGatewayStatus(gw)).Methods(http.MethodGet)
	r.HandleFunc("/view/{prompt_id}", handleView(gw)).Methods(http.MethodGet)
	r.HandleFunc("/queue", handleAggregatedQueue(gw)).Methods(http.MethodGet)

	r.HandleFunc("/workers", handleListWorkers(gw)).Methods(http.MethodGet)
	r.HandleFunc("/workers", handleRegisterWorker(gw)).Methods(http.MethodPost)
	r.HandleFunc("/workers/{worker_id}", handleDeleteWorker(gw)).Methods(http.MethodDelete)
	r.HandleFunc("/workers/{worker_id}/health", handleManualHealth(gw)).Methods(http.MethodPost)

	r.HandleFunc("/settings/worker_auth", handleGetGlobalWorkerAuth(gw)).Methods(http.MethodGet)
	r.HandleFunc("/settings/worker_auth", handleSetGlobalWorkerAuth(gw)).Methods(http.MethodPut)

	r.HandleFunc("/templates/{template_id}/submit", notImplemented).Methods(http.MethodPost)
	r.HandleFunc("/api_keys", notImplemented).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/admin/login", notImplemented).Methods(http.MethodPost)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gwerrors.ErrNoCapacity):
		status = http.StatusServiceUnavailable
	case errors.Is(err, gwerrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gwerrors.ErrTransport), errors.Is(err, gwerrors.ErrProtocol):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// notImplemented demonstrates the mux route registration for collaborators
// that remain out of scope per SPEC_FULL.md's Non-goals.
func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "not implemented"})
}

type submitRequest struct {
	Prompt   json.RawMessage `json:"prompt"`
	ClientID string          `json:"client_id"`
	Priority *int            `json:"priority,omitempty"`
}

func handleSubmit(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		result, err := gw.Submit(r.Context(), req.Prompt, req.ClientID, req.Priority)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleStatus(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promptID := mux.Vars(r)["prompt_id"]
		result, err := gw.Status(r.Context(), promptID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleGatewayStatus(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gatewayJobID := mux.Vars(r)["gateway_job_id"]
		result, err := gw.GatewayStatus(r.Context(), gatewayJobID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleView(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promptID := mux.Vars(r)["prompt_id"]
		contentType, status, err := gw.View(r.Context(), promptID, r.URL.Query(), w)
		if err != nil {
			writeError(w, err)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
	}
}

func handleAggregatedQueue(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gw.AggregatedQueue(r.Context()))
	}
}

func handleListWorkers(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gw.ListWorkers())
	}
}

type registerWorkerRequest struct {
	BaseURL     string `json:"base_url"`
	DisplayName string `json:"display_name"`
	Weight      int    `json:"weight"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	SkipHealth  bool   `json:"skip_health"`
}

func handleRegisterWorker(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerWorkerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.Weight <= 0 {
			req.Weight = 1
		}
		worker, err := gw.RegisterWorker(r.Context(), req.BaseURL, req.DisplayName, req.Weight, req.Username, req.Password, req.SkipHealth)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, worker)
	}
}

func handleDeleteWorker(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID := mux.Vars(r)["worker_id"]
		if err := gw.DeleteWorker(r.Context(), workerID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleManualHealth(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID := mux.Vars(r)["worker_id"]
		healthy, err := gw.ManualHealth(r.Context(), workerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"healthy": healthy})
	}
}

func handleGetGlobalWorkerAuth(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, err := gw.GetGlobalWorkerAuth(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, auth)
	}
}

type setGlobalWorkerAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleSetGlobalWorkerAuth(gw *api.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setGlobalWorkerAuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if err := gw.SetGlobalWorkerAuth(r.Context(), req.Username, req.Password); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
