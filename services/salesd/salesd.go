// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"
	"net/http"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/bakelog-tech/bakelog/core/backend"
	"github.com/bakelog-tech/bakelog/core/logger"
	"github.com/bakelog-tech/bakelog/core/mdb"
)

var configurationJSON string = `
{
	"tables": [
	  {
		"table": "Users",
		"description": "bakery owners and staff"
	  },
	  {
		"table": "MenuItems",
		"description": "sellable bakery products with per-size prices"
	  },
	  {
		"table": "SaleRecords",
		"description": "individual sale transactions"
	  }
	]
}
`

// Service holds the configuration for this service
//
// DATABASE is informational only: every route carries its tenant database
// in the path, the option merely names the tenant clients use by default.
type Service struct {
	MongoDB    string `env:"MONGODB,default=mongodb://localhost:27017" description:"the connection URI for the MongoDB server"`
	Database   string `env:"DATABASE,default=business-sales-db" description:"the default tenant database name (informational, routes carry the tenant in the path)"`
	Port       string `env:"PORT,default=3000" description:"the listening port"`
	CORSOrigin string `env:"CORS_ORIGIN,default=*" description:"the allowed cross-origin"`
	LogLevel   string `env:"LOG_LEVEL,default=info" description:"the log level"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	level, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.InitLogger(level)

	resolver := mdb.NewResolver(service.MongoDB)
	defer resolver.Close(context.Background())

	router := mux.NewRouter()
	backend.New(&backend.Builder{
		Config:     configurationJSON,
		Resolver:   resolver,
		Router:     router,
		CORSOrigin: service.CORSOrigin,
	})

	logger.Default().Infoln("default database:", service.Database)
	logger.Default().Infoln("listen on port :" + service.Port)
	logger.Default().Fatal(http.ListenAndServe(":"+service.Port, router))
}
