package polls

import (
	"context"

	a "poll-node/modules/aggregate"
	"poll-node/modules/db"
	"poll-node/modules/db/polldb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Polls interface {
	a.Plugin
	SavePoll(ctx context.Context, record PollRecord) error
	GetPoll(ctx context.Context, id uint64) (*PollRecord, error)
	FindPolls(ctx context.Context, creator string, offset int64, limit int64) ([]PollRecord, error)
}

type PollRecord struct {
	Id         uint64   `json:"id" bson:"id"`
	Question   string   `json:"question" bson:"question"`
	Options    []string `json:"options" bson:"options"`
	Votes      []uint64 `json:"votes" bson:"votes"`
	TotalVotes uint64   `json:"total_votes" bson:"total_votes"`
	EndTime    int64    `json:"end_time" bson:"end_time"`
	Creator    string   `json:"creator" bson:"creator"`
	CreatedAt  int64    `json:"created_at" bson:"created_at"`
}

type polls struct {
	*db.Collection
}

var _ Polls = &polls{}

func New(d *polldb.PollDb) Polls {
	return &polls{db.NewCollection(d.DbInstance, "polls").WithIndexes(
		mongo.IndexModel{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "creator", Value: 1}},
		},
	)}
}

// SavePoll replaces the stored copy of the poll with record.
func (p *polls) SavePoll(ctx context.Context, record PollRecord) error {
	_, err := p.ReplaceOne(ctx, bson.M{"id": record.Id}, record, options.Replace().SetUpsert(true))
	return err
}

// GetPoll returns nil when the poll is not indexed.
func (p *polls) GetPoll(ctx context.Context, id uint64) (*PollRecord, error) {
	var record PollRecord
	err := p.FindOne(ctx, bson.M{"id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *polls) FindPolls(ctx context.Context, creator string, offset int64, limit int64) ([]PollRecord, error) {
	filter := bson.M{}
	if creator != "" {
		filter["creator"] = creator
	}
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}}).SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := p.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]PollRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
