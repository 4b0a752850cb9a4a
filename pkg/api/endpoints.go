package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sheria-labs/registries/pkg/importer"
	"github.com/sheria-labs/registries/pkg/kit"
	"github.com/sheria-labs/registries/pkg/schema"
	"github.com/sheria-labs/registries/pkg/store"
)

// Service owns the shared state behind every transport: the descriptor
// registry, the store, and one import engine per registry.
type Service struct {
	registry *schema.Registry
	store    *store.Store
	logger   *slog.Logger
}

func NewService(reg *schema.Registry, st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: reg, store: st, logger: logger}
}

// Shared request/response types used by both HTTP and MCP transports.

type importReq struct {
	Registry string
	FileName string
	Charset  string
	Data     []byte
}

type searchReq struct {
	Registry string
	Query    string
	Limit    int
}

type searchResponse struct {
	Registry string               `json:"registry"`
	Records  []store.StoredRecord `json:"records"`
}

type registryInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	KeyField string `json:"key_field"`
	Fields   int    `json:"fields"`
	Records  int    `json:"records"`
}

type registriesResponse struct {
	Registries []registryInfo `json:"registries"`
}

type batchReq struct {
	ID    string
	Limit int
}

type batchesResponse struct {
	Batches []store.Batch `json:"batches"`
}

// Import runs one upload through the pipeline and persists the audit batch.
// The returned Result carries all row-level failures; the error return is
// reserved for an unknown registry or a structurally invalid file.
func (s *Service) Import(ctx context.Context, req *importReq) (*importer.Result, error) {
	desc, err := s.registry.Get(req.Registry)
	if err != nil {
		return nil, err
	}
	if err := s.store.EnsureRegistry(desc); err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	if err := s.store.CreateBatch(ctx, batchID, desc.ID, req.FileName); err != nil {
		return nil, err
	}
	if err := s.store.MarkProcessing(ctx, batchID); err != nil {
		return nil, err
	}
	ctx = kit.WithBatchID(ctx, batchID)

	eng := importer.New(desc, s.store, s.logger)
	res, err := eng.Import(ctx, importer.Request{
		FileName: req.FileName,
		Data:     req.Data,
		Charset:  req.Charset,
		BatchID:  batchID,
		Progress: s.logProgress(desc.ID, batchID),
	})
	if err != nil {
		// Structural failure: the batch never processed any rows.
		finErr := s.store.FinishBatch(context.WithoutCancel(ctx), batchID, store.BatchFailed, 0, 0, 0, 1)
		if finErr != nil {
			s.logger.Error("finish batch", "batch", batchID, "error", finErr)
		}
		return nil, err
	}

	status := store.BatchCompleted
	switch {
	case res.Cancelled:
		status = store.BatchCancelled
	case !res.Success:
		status = store.BatchFailed
	}
	finErr := s.store.FinishBatch(context.WithoutCancel(ctx), batchID, status,
		res.Imported, res.Skipped, res.Duplicates, len(res.Errors))
	if finErr != nil {
		s.logger.Error("finish batch", "batch", batchID, "error", finErr)
	}
	return res, nil
}

func (s *Service) logProgress(registry, batchID string) importer.ProgressFunc {
	return func(progress int, message string, current, total int) {
		s.logger.Debug("import progress",
			"registry", registry, "batch", batchID,
			"progress", progress, "message", message,
			"current", current, "total", total)
	}
}

// Endpoints (transport-agnostic).

// instrumented wraps an endpoint with the shared middleware stack: a
// correlation ID for calls that arrive without one, then an audit log line
// carrying transport, ID and duration.
func instrumented(s *Service, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(requestID(), audit(s.logger))(e)
}

func requestID() kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			if kit.GetRequestID(ctx) == "" {
				ctx = kit.WithRequestID(ctx, uuid.NewString())
			}
			return next(ctx, request)
		}
	}
}

func audit(logger *slog.Logger) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			if err != nil {
				logger.Warn("endpoint failed",
					"transport", kit.GetTransport(ctx),
					"request", kit.GetRequestID(ctx),
					"duration", time.Since(start),
					"error", err)
				return resp, err
			}
			logger.Debug("endpoint served",
				"transport", kit.GetTransport(ctx),
				"request", kit.GetRequestID(ctx),
				"duration", time.Since(start))
			return resp, err
		}
	}
}

func importEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*importReq)
		if len(req.Data) == 0 {
			return nil, fmt.Errorf("empty upload")
		}
		return s.Import(ctx, req)
	}
}

func searchEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*searchReq)
		desc, err := s.registry.Get(req.Registry)
		if err != nil {
			return nil, err
		}
		if err := s.store.EnsureRegistry(desc); err != nil {
			return nil, err
		}
		recs, err := s.store.Search(ctx, desc, req.Query, req.Limit)
		if err != nil {
			return nil, err
		}
		return searchResponse{Registry: desc.ID, Records: recs}, nil
	}
}

func listRegistriesEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		var infos []registryInfo
		for _, d := range s.registry.All() {
			info := registryInfo{
				ID:       d.ID,
				Title:    d.Title,
				KeyField: d.Key.Field,
				Fields:   len(d.Fields),
			}
			if err := s.store.EnsureRegistry(d); err == nil {
				if n, err := s.store.Count(ctx, d); err == nil {
					info.Records = n
				}
			}
			infos = append(infos, info)
		}
		return registriesResponse{Registries: infos}, nil
	}
}

func batchStatusEndpoint(s *Service) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*batchReq)
		if req.ID != "" {
			return s.store.GetBatch(ctx, req.ID)
		}
		batches, err := s.store.ListBatches(ctx, req.Limit)
		if err != nil {
			return nil, err
		}
		return batchesResponse{Batches: batches}, nil
	}
}

// TotalRecords sums the persisted record counts across registries, for the
// health endpoint.
func (s *Service) TotalRecords(ctx context.Context) int {
	total := 0
	for _, d := range s.registry.All() {
		if err := s.store.EnsureRegistry(d); err != nil {
			continue
		}
		if n, err := s.store.Count(ctx, d); err == nil {
			total += n
		}
	}
	return total
}
