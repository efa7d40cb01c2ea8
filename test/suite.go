package test

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bakelog-tech/bakelog/core/backend"
	"github.com/bakelog-tech/bakelog/core/client"
	"github.com/bakelog-tech/bakelog/core/mdb"
)

var configurationJSON string = `{
	"tables": [
	  {
		"table": "Users"
	  },
	  {
		"table": "MenuItems"
	  },
	  {
		"table": "SaleRecords"
	  }
	]
}
`

// IntegrationTestSuite starts one MongoDB container for the whole suite and
// drives the backend in-process through the mux router.
type IntegrationTestSuite struct {
	suite.Suite
	*backend.Backend

	mongoContainer testcontainers.Container
	resolver       *mdb.Resolver
	router         *mux.Router
	client         client.Client
}

// envelope mirrors the uniform response of every route
type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       interface{}         `json:"data"`
	Error      string              `json:"error"`
	Details    interface{}         `json:"details"`
	Pagination *backend.Pagination `json:"pagination"`
}

func (e envelope) record() map[string]interface{} {
	record, _ := e.Data.(map[string]interface{})
	return record
}

func (e envelope) records() []interface{} {
	records, _ := e.Data.([]interface{})
	return records
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}
	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.mongoContainer = mongoC

	host, err := mongoC.Host(ctx)
	s.Require().NoError(err)
	port, err := mongoC.MappedPort(ctx, "27017")
	s.Require().NoError(err)

	s.resolver = mdb.NewResolver(fmt.Sprintf("mongodb://%s:%s", host, port.Port()))
	s.router = mux.NewRouter()
	s.Backend = backend.New(&backend.Builder{
		Config:   configurationJSON,
		Resolver: s.resolver,
		Router:   s.router,
	})
	s.client = client.NewWithRouter(s.router)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.resolver != nil {
		s.resolver.Close(ctx)
	}
	if s.mongoContainer != nil {
		s.mongoContainer.Terminate(ctx)
	}
}
