// Package audit records who did what after a workflow transaction commits.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/logger"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

const (
	CompressionNone = "none"
	CompressionZstd = "zstd"

	DefaultCompressThreshold = 4 * 1024
)

// Recorder writes audit_logs entries in their own transaction. Delivery is
// at most once: a failed write is logged and dropped.
type Recorder struct {
	store             store.Store
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
	log               *logger.Logger
	now               func() time.Time
}

func NewRecorder(s store.Store, compressThreshold int, log *logger.Logger) (*Recorder, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}
	if log == nil {
		log = logger.Default()
	}
	return &Recorder{
		store:             s,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
		log:               log.WithComponent("audit"),
		now:               time.Now,
	}, nil
}

// Entry builds the audit document, compressing large details.
func (r *Recorder) Entry(actor domain.Actor, action string, entityType string, entityID string, detail string) domain.AuditLog {
	if actor.Username == "" {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	entry := domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		Compression:   CompressionNone,
		CreatedAt:     r.now().UTC(),
	}
	if len(detail) > r.compressThreshold {
		entry.DetailZstd = r.encoder.EncodeAll([]byte(detail), nil)
		entry.Detail = ""
		entry.Compression = CompressionZstd
	}
	return entry
}

// Record is called after the business transaction committed.
func (r *Recorder) Record(ctx context.Context, actor domain.Actor, action string, entityType string, entityID string, detail string) {
	entry := r.Entry(actor, action, entityType, entityID, detail)
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Journal().AddAuditLog(ctx, entry)
	})
	if err != nil {
		r.log.Warnw("failed to write audit log", "action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// List returns the newest entries with details decompressed.
func (r *Recorder) List(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		entries, err = tx.Journal().ListAuditLogs(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if err := r.expand(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r *Recorder) expand(entry *domain.AuditLog) error {
	if entry.Compression != CompressionZstd || len(entry.DetailZstd) == 0 {
		return nil
	}
	raw, err := r.decoder.DecodeAll(entry.DetailZstd, nil)
	if err != nil {
		return fmt.Errorf("decompress audit %s: %w", entry.ID, err)
	}
	entry.Detail = string(raw)
	entry.DetailZstd = nil
	return nil
}
