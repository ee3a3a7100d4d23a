package votes

import (
	"context"

	a "poll-node/modules/aggregate"
	"poll-node/modules/db"
	"poll-node/modules/db/polldb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type VoteRecords interface {
	a.Plugin
	SaveVote(ctx context.Context, record VoteRecord) error
	GetVote(ctx context.Context, pollId uint64, voter string) (*VoteRecord, error)
	FindVotes(ctx context.Context, pollId uint64) ([]VoteRecord, error)
	CountByVoter(ctx context.Context, voter string) (int64, error)
}

type VoteRecord struct {
	PollId    uint64 `json:"poll_id" bson:"poll_id"`
	Voter     string `json:"voter" bson:"voter"`
	OptionId  uint64 `json:"option_id" bson:"option_id"`
	Relayer   string `json:"relayer,omitempty" bson:"relayer,omitempty"`
	TxId      string `json:"tx_id" bson:"tx_id"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

type voteRecords struct {
	*db.Collection
}

var _ VoteRecords = &voteRecords{}

func New(d *polldb.PollDb) VoteRecords {
	return &voteRecords{db.NewCollection(d.DbInstance, "vote_records").WithIndexes(
		mongo.IndexModel{
			Keys:    bson.D{{Key: "poll_id", Value: 1}, {Key: "voter", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys: bson.D{{Key: "voter", Value: 1}},
		},
	)}
}

// SaveVote is idempotent on (poll_id, voter).
func (v *voteRecords) SaveVote(ctx context.Context, record VoteRecord) error {
	_, err := v.ReplaceOne(ctx, bson.M{
		"poll_id": record.PollId,
		"voter":   record.Voter,
	}, record, options.Replace().SetUpsert(true))
	return err
}

func (v *voteRecords) GetVote(ctx context.Context, pollId uint64, voter string) (*VoteRecord, error) {
	var record VoteRecord
	err := v.FindOne(ctx, bson.M{"poll_id": pollId, "voter": voter}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (v *voteRecords) FindVotes(ctx context.Context, pollId uint64) ([]VoteRecord, error) {
	cur, err := v.Find(ctx, bson.M{"poll_id": pollId}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]VoteRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *voteRecords) CountByVoter(ctx context.Context, voter string) (int64, error) {
	return v.CountDocuments(ctx, bson.M{"voter": voter})
}
