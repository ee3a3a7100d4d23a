package db

import (
	"os"

	"poll-node/modules/config"
)

type dbConfig struct {
	DbURI  string `validate:"required"`
	DbName string `validate:"required"`
}

type dbConfigStruct struct {
	*config.Config[dbConfig]
	suffix string
}

type DbConfig = *dbConfigStruct

func NewDbConfig(dataDir ...string) DbConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}
	return &dbConfigStruct{config.New(dbConfig{
		DbURI:  "mongodb://localhost:27017",
		DbName: "poll-node",
	}, dataDirPtr), ""}
}

// SetSuffix appends suffix to the database name without persisting it. Used
// to run several nodes against one mongo.
func (dc *dbConfigStruct) SetSuffix(suffix string) {
	dc.suffix = suffix
}

func (dc *dbConfigStruct) DatabaseName() string {
	return dc.Get().DbName + dc.suffix
}

// URI prefers MONGO_URL from the environment over the config file.
func (dc *dbConfigStruct) URI() string {
	if env := os.Getenv("MONGO_URL"); env != "" {
		return env
	}
	return dc.Get().DbURI
}
