package db

import (
	"context"

	a "poll-node/modules/aggregate"

	"github.com/chebyrash/promise"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DbInstance struct {
	*mongo.Database

	db   Db
	conf DbConfig
	opts []*options.DatabaseOptions
}

var _ a.Plugin = &DbInstance{}

func NewDbInstance(db Db, conf DbConfig, opts ...*options.DatabaseOptions) *DbInstance {
	return &DbInstance{nil, db, conf, opts}
}

// Init implements aggregate.Plugin.
func (d *DbInstance) Init() error {
	d.Database = d.db.Database(d.conf.DatabaseName(), d.opts...)
	return nil
}

// Start implements aggregate.Plugin.
func (d *DbInstance) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		resolve(nil)
	})
}

// Stop implements aggregate.Plugin.
func (d *DbInstance) Stop() error {
	return nil
}

// Nuke empties every collection. Test only.
func (d *DbInstance) Nuke() error {
	ctx := context.Background()

	colsNames, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}

	for _, colName := range colsNames {
		_, err := d.Collection(colName).DeleteMany(ctx, bson.M{})
		if err != nil {
			return err
		}
	}

	return nil
}
