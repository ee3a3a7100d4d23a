package creators

import (
	"context"

	a "poll-node/modules/aggregate"
	"poll-node/modules/db"
	"poll-node/modules/db/polldb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Creators interface {
	a.Plugin
	AddCreator(ctx context.Context, record CreatorRecord) error
	IsCreator(ctx context.Context, account string) (bool, error)
	ListCreators(ctx context.Context) ([]CreatorRecord, error)
}

type CreatorRecord struct {
	Account   string `json:"account" bson:"account"`
	TxId      string `json:"tx_id" bson:"tx_id"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

type creators struct {
	*db.Collection
}

var _ Creators = &creators{}

func New(d *polldb.PollDb) Creators {
	return &creators{db.NewCollection(d.DbInstance, "poll_creators").WithIndexes(
		mongo.IndexModel{
			Keys:    bson.D{{Key: "account", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)}
}

// AddCreator keeps the first record for an account.
func (c *creators) AddCreator(ctx context.Context, record CreatorRecord) error {
	_, err := c.UpdateOne(ctx,
		bson.M{"account": record.Account},
		bson.M{"$setOnInsert": record},
		options.Update().SetUpsert(true),
	)
	return err
}

func (c *creators) IsCreator(ctx context.Context, account string) (bool, error) {
	n, err := c.CountDocuments(ctx, bson.M{"account": account}, options.Count().SetLimit(1))
	return n > 0, err
}

func (c *creators) ListCreators(ctx context.Context) ([]CreatorRecord, error) {
	cur, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]CreatorRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
