package api

import "poll-node/modules/config"

type apiConfig struct {
	HostAddr       string   `validate:"required"`
	AllowedOrigins []string `validate:"dive,required"`
}

type ApiConfig = *config.Config[apiConfig]

func NewApiConfig(dataDir ...string) ApiConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return config.New(apiConfig{
		HostAddr:       "0.0.0.0:8080",
		AllowedOrigins: []string{"*"},
	}, dataDirPtr)
}
