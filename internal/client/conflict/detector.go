package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
)

//go:generate moq -out mocks_test.go . SnapshotFetcher

// SnapshotFetcher получает авторитетные состояния сущностей с сервера
type SnapshotFetcher interface {
	FetchSnapshots(ctx context.Context, ids []string) (map[string]*models.EntityState, error)
}

// LocalState дает доступ к локальному кэшу и операциям сущности
type LocalState interface {
	GetEntry(ctx context.Context, entityID string) (*models.CacheEntry, error)
	ListByEntity(ctx context.Context, entityID string) ([]*models.Operation, error)
}

// Detection результат проверки одной операции
type Detection struct {
	Server  *models.EntityState      // Server состояние сервера, nil если сущности там нет
	Records []*models.ConflictRecord // Records найденные конфликты
}

// Missing возвращает true, если на сервере нет сущности
func (d *Detection) Missing() bool {
	return d.Server == nil
}

// Detector сравнивает локальное состояние сущности с серверным
type Detector struct {
	remote SnapshotFetcher
	local  LocalState
	now    func() time.Time
	policy Policy
}

// NewDetector создает детектор
func NewDetector(remote SnapshotFetcher, local LocalState, policy Policy) *Detector {
	return &Detector{
		remote: remote,
		local:  local,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock подменяет источник времени
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Detect проверяет первую активную операцию сущности
func (d *Detector) Detect(ctx context.Context, entityID string) ([]*models.ConflictRecord, error) {
	ops, err := d.local.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	for _, op := range ops {
		if !op.Active() {
			continue
		}
		det, err := d.DetectOperation(ctx, op)
		if err != nil {
			return nil, err
		}
		return det.Records, nil
	}
	return nil, nil
}

// DetectOperation получает снимок сервера только для сущности op и классифицирует расхождение
func (d *Detector) DetectOperation(ctx context.Context, op *models.Operation) (*Detection, error) {
	states, err := d.remote.FetchSnapshots(ctx, []string{op.EntityID})
	if err != nil {
		return nil, err
	}
	server := states[op.EntityID]

	local, err := d.local.GetEntry(ctx, op.EntityID)
	if err != nil && !errors.Is(err, storage.ErrEntryNotFound) {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	ops, err := d.local.ListByEntity(ctx, op.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	return &Detection{
		Server:  server,
		Records: d.Compare(op, local, server, patchedByActive(ops)),
	}, nil
}

// Compare классифицирует расхождение по приоритету: version, timestamp, content.
// patched содержит поля, которые меняют активные операции сущности, они не дают content конфликтов.
func (d *Detector) Compare(op *models.Operation, local *models.CacheEntry, server *models.EntityState, patched map[string]bool) []*models.ConflictRecord {
	// create не проверяется: повтор после потерянного ответа закрывает ключ идемпотентности
	if op.Kind == models.KindCreate {
		return nil
	}

	if server == nil {
		// Удалять нечего, delete завершается без отправки
		if op.Kind == models.KindDelete {
			return nil
		}
		return []*models.ConflictRecord{d.record(op, local, nil, models.ConflictVersion, "")}
	}

	if server.Version != op.BaseVersion {
		return []*models.ConflictRecord{d.record(op, local, server, models.ConflictVersion, "")}
	}

	if local != nil && server.UpdatedAt.Sub(local.UpdatedAt) > d.policy.ClockSkew {
		return []*models.ConflictRecord{d.record(op, local, server, models.ConflictTimestamp, "")}
	}

	if op.Kind != models.KindUpdate || local == nil {
		return nil
	}

	var records []*models.ConflictRecord
	for _, field := range d.policy.significant(op.EntityType) {
		if patched[field] {
			continue
		}
		if !local.Data.FieldEqual(server.Data, field) {
			records = append(records, d.record(op, local, server, models.ConflictContent, field))
		}
	}
	return records
}

func (d *Detector) record(op *models.Operation, local *models.CacheEntry, server *models.EntityState, kind models.ConflictType, field string) *models.ConflictRecord {
	var localSnap *models.Snapshot
	if local != nil {
		localSnap = local.Snapshot()
	} else {
		localSnap = &models.Snapshot{Data: op.Payload.Clone(), Version: op.BaseVersion}
	}

	return &models.ConflictRecord{
		ID:             uuid.New().String(),
		EntityID:       op.EntityID,
		EntityType:     op.EntityType,
		ScopeID:        op.ScopeID,
		OperationID:    op.ID,
		ConflictType:   kind,
		Field:          field,
		LocalSnapshot:  localSnap,
		ServerSnapshot: models.SnapshotFromState(server),
		DetectedAt:     d.now(),
	}
}

func patchedByActive(ops []*models.Operation) map[string]bool {
	patched := make(map[string]bool)
	for _, op := range ops {
		if !op.Active() {
			continue
		}
		for _, f := range op.PatchedFields() {
			patched[f] = true
		}
	}
	return patched
}
