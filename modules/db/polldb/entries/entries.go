package entries

import (
	"context"
	"errors"
	"fmt"
	"sync"

	a "poll-node/modules/aggregate"
	"poll-node/modules/db"
	"poll-node/modules/db/polldb"
	"poll-node/modules/journal"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type journalDb struct {
	*db.Collection

	mu     sync.Mutex
	head   uint64
	loaded bool
}

var _ a.Plugin = &journalDb{}
var _ journal.Journal = &journalDb{}

func New(d *polldb.PollDb) *journalDb {
	return &journalDb{Collection: db.NewCollection(d.DbInstance, "journal").WithIndexes(
		mongo.IndexModel{
			Keys:    bson.D{{Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)}
}

func (j *journalDb) loadHead(ctx context.Context) error {
	if j.loaded {
		return nil
	}
	var last journal.Entry
	err := j.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		j.head = 0
	} else if err != nil {
		return err
	} else {
		j.head = last.Seq
	}
	j.loaded = true
	return nil
}

func (j *journalDb) Append(ctx context.Context, entry *journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.loadHead(ctx); err != nil {
		return err
	}
	next := j.head + 1
	if err := journal.Seal(entry, next); err != nil {
		return err
	}
	if _, err := j.InsertOne(ctx, entry); err != nil {
		// another writer may have advanced the journal
		if mongo.IsDuplicateKeyError(err) {
			j.loaded = false
		}
		return fmt.Errorf("failed to write entry %d: %w", next, err)
	}
	j.head = next
	return nil
}

func (j *journalDb) Head(ctx context.Context) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.loadHead(ctx); err != nil {
		return 0, err
	}
	return j.head, nil
}

func (j *journalDb) Replay(ctx context.Context, fromSeq uint64, fn func(journal.Entry) error) error {
	if fromSeq == 0 {
		fromSeq = 1
	}
	cur, err := j.Find(ctx,
		bson.M{"seq": bson.M{"$gte": fromSeq}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	expected := fromSeq
	for cur.Next(ctx) {
		var entry journal.Entry
		if err := cur.Decode(&entry); err != nil {
			return fmt.Errorf("%w: %w", journal.ErrCorrupt, err)
		}
		if entry.Seq != expected {
			return fmt.Errorf("%w: expected seq %d, found %d", journal.ErrSeqGap, expected, entry.Seq)
		}
		if err := journal.Verify(entry); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
		expected++
	}
	return cur.Err()
}
