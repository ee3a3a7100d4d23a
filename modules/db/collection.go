package db

import (
	"context"
	"fmt"

	a "poll-node/modules/aggregate"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collection struct {
	*mongo.Collection

	db      *DbInstance
	name    string
	indexes []mongo.IndexModel
	opts    []*options.CollectionOptions
}

var _ a.Plugin = &Collection{}

func NewCollection(db *DbInstance, name string, opts ...*options.CollectionOptions) *Collection {
	return &Collection{
		nil,
		db,
		name,
		nil,
		opts,
	}
}

// WithIndexes registers indexes created during Init.
func (c *Collection) WithIndexes(indexes ...mongo.IndexModel) *Collection {
	c.indexes = append(c.indexes, indexes...)
	return c
}

func (c *Collection) Name() string {
	return c.name
}

// Init implements aggregate.Plugin.
func (c *Collection) Init() error {
	c.Collection = c.db.Collection(c.name, c.opts...)
	if len(c.indexes) == 0 {
		return nil
	}
	_, err := c.Collection.Indexes().CreateMany(context.Background(), c.indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", c.name, err)
	}
	return nil
}

// Start implements aggregate.Plugin.
func (c *Collection) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		resolve(nil)
	})
}

// Stop implements aggregate.Plugin.
func (c *Collection) Stop() error {
	return nil
}
