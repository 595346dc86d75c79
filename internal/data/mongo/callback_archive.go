// Package mongo stores the raw gateway notification archive. Every callback
// body is kept verbatim, matched or not, as an immutable audit record for
// reconciliation against gateway statements.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// CallbackCollectionName is the name of the callback archive collection in MongoDB
	CallbackCollectionName = "gateway_callbacks"
)

// CallbackArchive implements the escrow.CallbackArchive interface for MongoDB
type CallbackArchive struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewCallbackArchive creates a new MongoDB callback archive
func NewCallbackArchive(logger *slog.Logger, db *mongo.Database) *CallbackArchive {
	return &CallbackArchive{
		db:     db,
		logger: logger,
	}
}

// Archive stores one raw notification body with its arrival time. Bodies are
// written as-is: malformed payloads are archived the same as valid ones.
func (a *CallbackArchive) Archive(ctx context.Context, receivedAt time.Time, raw []byte) error {
	collection := a.db.Collection(CallbackCollectionName)

	doc := bson.M{
		"received_at": receivedAt,
		"payload":     string(raw),
	}

	_, err := collection.InsertOne(ctx, doc)
	if err != nil {
		a.logger.Error("Failed to archive gateway callback", "error", err)
		return fmt.Errorf("failed to archive gateway callback: %w", err)
	}

	return nil
}
