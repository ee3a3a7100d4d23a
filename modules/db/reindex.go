package db

import (
	"context"
	"log/slog"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// REINDEX_ID is bumped whenever the projection document layout changes.
var REINDEX_ID = 1

// IMMUTABLE_COLLECTIONS survive a reindex; everything else is rebuilt.
var IMMUTABLE_COLLECTIONS = []string{
	"journal",
	"metadata",
}

type DbReindex struct {
	*DbInstance
	log *slog.Logger
}

func NewReindex(db *DbInstance, log *slog.Logger) *DbReindex {
	if log == nil {
		log = slog.Default()
	}
	return &DbReindex{db, log.With("service", "db-reindex")}
}

type SearchResult struct {
	ReindexId *uint64 `json:"reindex_id,omitempty" bson:"reindex_id,omitempty"`
}

// Init clears the projection collections when the stored reindex id differs
// from REINDEX_ID.
func (dbr *DbReindex) Init() error {
	ctx := context.Background()
	col := dbr.Collection("metadata")
	result := SearchResult{}
	err := col.FindOne(ctx, bson.M{"type": "metadata"}).Decode(&result)

	var indexId uint64
	if err == nil && result.ReindexId != nil {
		indexId = *result.ReindexId
	}
	if indexId == uint64(REINDEX_ID) {
		return nil
	}

	dbr.log.Info("reindexing database", "from", indexId, "to", REINDEX_ID)
	cols, err := dbr.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}
	for _, name := range cols {
		if slices.Contains(IMMUTABLE_COLLECTIONS, name) {
			continue
		}
		if _, err := dbr.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
	}

	_, err = col.UpdateOne(ctx, bson.M{
		"type": "metadata",
	}, bson.M{
		"$set": bson.M{
			"reindex_id": REINDEX_ID,
		},
	}, options.Update().SetUpsert(true))
	return err
}
