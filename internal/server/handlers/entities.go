package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/server/storage"
	"github.com/iudanet/stocksync/internal/validation"
	"github.com/iudanet/stocksync/pkg/api"
)

// maxSnapshotIDs ограничение размера запроса снимков
const maxSnapshotIDs = 500

// Publisher рассылает закоммиченные изменения подписчикам области
type Publisher interface {
	Publish(ev models.ChangeEvent)
}

// validationError ошибка содержимого сущности, отдается клиенту как 422
type validationError struct {
	err error
}

func (e *validationError) Error() string {
	return e.err.Error()
}

func (e *validationError) Unwrap() error {
	return e.err
}

// EntityHandler обрабатывает мутации и чтение сущностей
type EntityHandler struct {
	logger    *slog.Logger
	store     storage.EntityStorage
	publisher Publisher
	now       func() time.Time
}

// NewEntityHandler создает handler сущностей. publisher может быть nil.
func NewEntityHandler(logger *slog.Logger, store storage.EntityStorage, publisher Publisher) *EntityHandler {
	return &EntityHandler{
		logger:    logger,
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create обрабатывает POST /api/v1/entities
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateEntityID(req.ID); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if err := validation.ValidateScopeID(req.ScopeID); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if err := validation.ValidateEntity(req.Type, req.Data); err != nil {
		SendError(w, h.logger, http.StatusUnprocessableEntity, api.CodeValidation, err.Error())
		return
	}

	m, ok := h.mutation(w, r)
	if !ok {
		return
	}

	res, err := h.store.CreateEntity(ctx, m, &models.EntityState{
		ID:      req.ID,
		Type:    req.Type,
		ScopeID: req.ScopeID,
		Data:    req.Data,
	})
	if err != nil {
		h.sendStorageError(w, r, "create", req.ID, err)
		return
	}

	h.committed(r, models.ChangeInsert, req.ScopeID, req.ID, res)
	SendJSON(w, h.logger, toMutationResponse(res), http.StatusCreated)
}

// Update обрабатывает PATCH /api/v1/entities/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := validation.ValidateEntityID(id); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	var req api.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "invalid request body")
		return
	}
	if req.BaseVersion < 1 {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "base_version must be positive")
		return
	}

	m, ok := h.mutation(w, r)
	if !ok {
		return
	}
	m.Check = func(current *models.EntityState, patch models.Fields) error {
		if err := validation.ValidatePatch(current.Type, current.Data, patch); err != nil {
			return &validationError{err: err}
		}
		return nil
	}

	res, err := h.store.UpdateEntity(ctx, m, id, req.Patch, req.BaseVersion)
	if err != nil {
		h.sendStorageError(w, r, "update", id, err)
		return
	}

	scopeID := ""
	if res.Entity != nil {
		scopeID = res.Entity.ScopeID
	}
	h.committed(r, models.ChangeUpdate, scopeID, id, res)
	SendJSON(w, h.logger, toMutationResponse(res), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/entities/{id}?base_version=N
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := validation.ValidateEntityID(id); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	var baseVersion int64
	if raw := r.URL.Query().Get("base_version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "invalid base_version")
			return
		}
		baseVersion = v
	}

	m, ok := h.mutation(w, r)
	if !ok {
		return
	}

	// Область нужна для рассылки, читаем ее до удаления
	scopeID := ""
	if states, err := h.store.GetEntities(ctx, []string{id}); err == nil && len(states) == 1 {
		scopeID = states[0].ScopeID
	}

	res, err := h.store.DeleteEntity(ctx, m, id, baseVersion)
	if err != nil {
		h.sendStorageError(w, r, "delete", id, err)
		return
	}

	h.committed(r, models.ChangeDelete, scopeID, id, res)
	SendJSON(w, h.logger, toMutationResponse(res), http.StatusOK)
}

// Snapshots обрабатывает POST /api/v1/entities/snapshots
func (h *EntityHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) > maxSnapshotIDs {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest,
			"too many ids, at most "+strconv.Itoa(maxSnapshotIDs)+" per request")
		return
	}

	states, err := h.store.GetEntities(ctx, req.IDs)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get entities", slog.Any("error", err))
		SendError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	found := make(map[string]bool, len(states))
	resp := api.SnapshotResponse{Entities: make([]api.Entity, 0, len(states))}
	for _, s := range states {
		found[s.ID] = true
		resp.Entities = append(resp.Entities, toEntity(s))
	}
	for _, id := range req.IDs {
		if !found[id] {
			resp.Missing = append(resp.Missing, id)
		}
	}

	SendJSON(w, h.logger, resp, http.StatusOK)
}

// ListScope обрабатывает GET /api/v1/scopes/{scope}/entities
func (h *EntityHandler) ListScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scopeID := r.PathValue("scope")
	if err := validation.ValidateScopeID(scopeID); err != nil {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	states, asOf, err := h.store.ListScope(ctx, scopeID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list scope", slog.String("scope_id", scopeID), slog.Any("error", err))
		SendError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
		return
	}

	resp := api.ScopeResponse{
		ScopeID:  scopeID,
		Entities: make([]api.Entity, 0, len(states)),
		AsOfSeq:  asOf,
	}
	for _, s := range states {
		resp.Entities = append(resp.Entities, toEntity(s))
	}
	SendJSON(w, h.logger, resp, http.StatusOK)
}

// mutation собирает общие параметры записи из запроса
func (h *EntityHandler) mutation(w http.ResponseWriter, r *http.Request) (storage.Mutation, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		SendError(w, h.logger, http.StatusUnauthorized, api.CodeUnauthorized, "missing user")
		return storage.Mutation{}, false
	}
	key := r.Header.Get(api.IdempotencyKeyHeader)
	if len(key) > 128 {
		SendError(w, h.logger, http.StatusBadRequest, api.CodeBadRequest, "idempotency key is too long")
		return storage.Mutation{}, false
	}
	return storage.Mutation{At: h.now(), UserID: userID, IdempotencyKey: key}, true
}

// committed логирует запись и рассылает изменение, повтор не рассылается
func (h *EntityHandler) committed(r *http.Request, kind models.ChangeKind, scopeID, id string, res *storage.Result) {
	userID, _ := GetUserID(r.Context())
	h.logger.InfoContext(r.Context(), "entity mutated",
		slog.String("kind", string(kind)),
		slog.String("entity_id", id),
		slog.String("user_id", userID),
		slog.Int64("seq", res.Seq),
		slog.Bool("replayed", res.Replayed))

	if res.Replayed || h.publisher == nil || scopeID == "" {
		return
	}
	h.publisher.Publish(models.ChangeEvent{
		Entity:   res.Entity,
		ScopeID:  scopeID,
		EntityID: id,
		Kind:     kind,
		Seq:      res.Seq,
	})
}

func (h *EntityHandler) sendStorageError(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		SendError(w, h.logger, http.StatusUnprocessableEntity, api.CodeValidation, verr.Error())
	case errors.Is(err, storage.ErrVersionMismatch):
		SendError(w, h.logger, http.StatusConflict, api.CodeVersionMismatch, err.Error())
	case errors.Is(err, storage.ErrEntityExists):
		SendError(w, h.logger, http.StatusConflict, api.CodeAlreadyExists, "entity "+id+" already exists")
	case errors.Is(err, storage.ErrEntityNotFound):
		SendError(w, h.logger, http.StatusNotFound, api.CodeNotFound, "entity "+id+" not found")
	default:
		h.logger.ErrorContext(r.Context(), "failed to mutate entity",
			slog.String("op", op),
			slog.String("entity_id", id),
			slog.Any("error", err))
		SendError(w, h.logger, http.StatusInternalServerError, api.CodeInternal, "internal server error")
	}
}

func toEntity(s *models.EntityState) api.Entity {
	return api.Entity{
		UpdatedAt: s.UpdatedAt,
		Data:      s.Data,
		ID:        s.ID,
		Type:      s.Type,
		ScopeID:   s.ScopeID,
		Version:   s.Version,
		Seq:       s.Seq,
	}
}

func toMutationResponse(res *storage.Result) api.MutationResponse {
	resp := api.MutationResponse{Seq: res.Seq, Deleted: res.Deleted}
	if res.Entity != nil {
		e := toEntity(res.Entity)
		resp.Entity = &e
	}
	return resp
}
