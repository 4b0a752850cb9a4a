package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/sheria-labs/registries/pkg/kit"
)

// maxUploadBytes caps one CSV upload (32 MiB).
const maxUploadBytes = 32 << 20

// NewRouter returns an http.Handler with all registry API routes.
func NewRouter(svc *Service) http.Handler {
	mux := http.NewServeMux()
	h := &handler{
		svc:            svc,
		importCSV:      instrumented(svc, importEndpoint(svc)),
		search:         instrumented(svc, searchEndpoint(svc)),
		listRegistries: instrumented(svc, listRegistriesEndpoint(svc)),
		batchStatus:    instrumented(svc, batchStatusEndpoint(svc)),
	}

	mux.HandleFunc("GET /v1/registries", h.handleListRegistries)
	mux.HandleFunc("POST /v1/registries/{registry}/import", h.handleImport)
	mux.HandleFunc("GET /v1/registries/{registry}/import", methodNotAllowed)
	mux.HandleFunc("GET /v1/registries/{registry}/template", h.handleTemplate)
	mux.HandleFunc("GET /v1/registries/{registry}/records", h.handleSearch)
	mux.HandleFunc("GET /v1/batches", h.handleListBatches)
	mux.HandleFunc("GET /v1/batches/{id}", h.handleGetBatch)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(withTransport(mux))
}

type handler struct {
	svc            *Service
	importCSV      kit.Endpoint
	search         kit.Endpoint
	listRegistries kit.Endpoint
	batchStatus    kit.Endpoint
}

// --- import upload ---

// handleImport accepts either a multipart form with a "file" part or the
// raw CSV as the request body. Optional query params: file (name used for
// provenance when the body is raw), charset.
func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	registry := r.PathValue("registry")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	req := &importReq{
		Registry: registry,
		FileName: r.URL.Query().Get("file"),
		Charset:  r.URL.Query().Get("charset"),
	}

	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing multipart part 'file'")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
		req.Data = data
		if req.FileName == "" {
			req.FileName = header.Filename
		}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
		req.Data = data
	}
	if req.FileName == "" {
		req.FileName = "upload.csv"
	}

	resp, err := h.importCSV(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- template download ---

func (h *handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	desc, err := h.svc.registry.Get(r.PathValue("registry"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+desc.ID+`_template.csv"`)
	w.Write(desc.Template())
}

// --- record search ---

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := h.search(r.Context(), &searchReq{
		Registry: r.PathValue("registry"),
		Query:    r.URL.Query().Get("q"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- registries / batches ---

func (h *handler) handleListRegistries(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listRegistries(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := h.batchStatus(r.Context(), &batchReq{Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	resp, err := h.batchStatus(r.Context(), &batchReq{ID: r.PathValue("id")})
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status       string `json:"status"`
	Registries   int    `json:"registries"`
	TotalRecords int    `json:"total_records"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Registries:   h.svc.registry.Count(),
		TotalRecords: h.svc.TotalRecords(r.Context()),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// withTransport tags request contexts so the audit middleware can tell the
// REST surface apart from MCP tool calls.
func withTransport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(kit.WithTransport(r.Context(), "http")))
	})
}

// cors is a simple CORS middleware for the portal frontend.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
