package polldb

import (
	a "poll-node/modules/aggregate"
	"poll-node/modules/db"
)

type PollDb struct {
	*db.DbInstance
}

var _ a.Plugin = &PollDb{}

func New(d db.Db, conf db.DbConfig) *PollDb {
	return &PollDb{db.NewDbInstance(d, conf)}
}
