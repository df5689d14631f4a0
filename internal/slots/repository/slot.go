package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	sloterrors "turfbook/internal/slots/errors"
	"turfbook/pkg/config"
	mongotx "turfbook/pkg/db/mongo"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

// SlotRepository exposes reads and conditional writes against the slot
// collection. Every mutation is a single filtered update so that the
// precondition check and the write are one indivisible store operation;
// a matched count of zero means the slot was not in the expected state.
type SlotRepository interface {
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, error)
	CountByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus) (int64, error)
	Reserve(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error)
	Release(ctx context.Context, id string) (bool, error)
	MarkBooked(ctx context.Context, id string, holderID string, now time.Time) (*model.Slot, error)
	BookDirect(ctx context.Context, id string, now time.Time) (bool, error)
	ForceAvailable(ctx context.Context, id string, now time.Time) error
	Block(ctx context.Context, id string, blockedBy string, reason string, now time.Time) (bool, error)
	Unblock(ctx context.Context, id string, now time.Time) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// wrapStoreError classifies a driver error into the structured kinds the
// retry layer switches on. Connectivity and timeout failures come back as
// Transient; anything else is wrapped for the service layer to report.
func wrapStoreError(msg string, err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return apperrors.Transient(msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sloterrors.ErrNotFound
		}
		return nil, wrapStoreError("failed to find slot", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := r.buildSearchFilter(turfID, date, status)

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}, {Key: "net_number", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapStoreError("failed to find slots", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, wrapStoreError("failed to decode slots", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) CountByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildSearchFilter(turfID, date, status))
	if err != nil {
		return 0, wrapStoreError("failed to count slots", err)
	}
	return count, nil
}

func (r *mongoSlotRepository) buildSearchFilter(turfID string, date string, status model.SlotStatus) bson.M {
	filter := bson.M{"turf_id": turfID}
	if date != "" {
		filter["date"] = date
	}
	if status != "" {
		filter["status"] = status
	}
	return filter
}

// reservableFilter matches a slot that is available, or reserved under a
// hold that has already expired. Expiry is checked here, inside the
// conditional write, so an expired hold is taken over in the same
// operation that observes it.
func reservableFilter(objectID primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"_id": objectID,
		"$or": []bson.M{
			{"status": model.SlotAvailable},
			{"status": model.SlotReserved, "reserved_until": bson.M{"$lte": now}},
		},
	}
}

func (r *mongoSlotRepository) Reserve(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"status":         model.SlotReserved,
			"reserved_by":    holderID,
			"reserved_until": until,
			"updated_at":     now,
		},
		"$inc": bson.M{"version": 1},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.Slot
	err = r.collection.FindOneAndUpdate(ctx, reservableFilter(objectID, now), update, opts).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sloterrors.ErrUnavailable
		}
		return nil, wrapStoreError("failed to reserve slot", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) Release(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.SlotReserved}
	update := bson.M{
		"$set":   bson.M{"status": model.SlotAvailable, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reserved_by": "", "reserved_until": ""},
		"$inc":   bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, wrapStoreError("failed to release slot", err)
	}

	return result.ModifiedCount > 0, nil
}

// MarkBooked commits the slot to booked state. The filter admits an
// available slot, a hold owned by holderID, or an expired hold; a booked
// or blocked slot, or someone else's live hold, never matches. Returns
// the post-update document so the caller can snapshot schedule fields
// into the booking row inside the same transaction.
func (r *mongoSlotRepository) MarkBooked(ctx context.Context, id string, holderID string, now time.Time) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id": objectID,
		"$or": []bson.M{
			{"status": model.SlotAvailable},
			{"status": model.SlotReserved, "reserved_by": holderID},
			{"status": model.SlotReserved, "reserved_until": bson.M{"$lte": now}},
		},
	}
	update := bson.M{
		"$set":   bson.M{"status": model.SlotBooked, "updated_at": now},
		"$unset": bson.M{"reserved_by": "", "reserved_until": ""},
		"$inc":   bson.M{"version": 1},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.Slot
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sloterrors.ErrUnavailable
		}
		return nil, wrapStoreError("failed to mark slot booked", err)
	}

	return &slot, nil
}

// BookDirect is the ledger-less available-to-booked transition kept for
// callers that predate the atomic booking path.
//
// Deprecated: new callers should go through the booking service, which
// records a ledger entry in the same transaction.
func (r *mongoSlotRepository) BookDirect(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set":   bson.M{"status": model.SlotBooked, "updated_at": now},
		"$unset": bson.M{"reserved_by": "", "reserved_until": ""},
		"$inc":   bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, reservableFilter(objectID, now), update)
	if err != nil {
		return false, wrapStoreError("failed to book slot", err)
	}

	return result.ModifiedCount > 0, nil
}

// ForceAvailable unconditionally reopens the slot. Used by cancellation,
// which must free the slot even if an external edit moved it off booked
// state in the meantime.
func (r *mongoSlotRepository) ForceAvailable(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set":   bson.M{"status": model.SlotAvailable, "updated_at": now},
		"$unset": bson.M{"reserved_by": "", "reserved_until": ""},
		"$inc":   bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return wrapStoreError("failed to reopen slot", err)
	}

	if result.MatchedCount == 0 {
		return sloterrors.ErrNotFound
	}

	return nil
}

func (r *mongoSlotRepository) Block(ctx context.Context, id string, blockedBy string, reason string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"status":       model.SlotBlocked,
			"blocked_by":   blockedBy,
			"block_reason": reason,
			"updated_at":   now,
		},
		"$unset": bson.M{"reserved_by": "", "reserved_until": ""},
		"$inc":   bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, reservableFilter(objectID, now), update)
	if err != nil {
		return false, wrapStoreError("failed to block slot", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *mongoSlotRepository) Unblock(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", sloterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.SlotBlocked}
	update := bson.M{
		"$set":   bson.M{"status": model.SlotAvailable, "updated_at": now},
		"$unset": bson.M{"blocked_by": "", "block_reason": ""},
		"$inc":   bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, wrapStoreError("failed to unblock slot", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
