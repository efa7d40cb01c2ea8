// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/bakelog-tech/bakelog/core/logger"
	"github.com/bakelog-tech/bakelog/core/mdb"
	"github.com/bakelog-tech/bakelog/core/schema"
	"go.mongodb.org/mongo-driver/mongo"
)

// Version is the reported API version
const Version = "1.0.0"

// Backend is the generic sales rest backend
type Backend struct {
	config     Configuration
	tables     map[string]tableConfiguration
	resolver   *mdb.Resolver
	router     *mux.Router
	corsOrigin string
	// Registry is the table shape registry for this backend
	Registry *schema.Registry
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON description of all exposed tables. This is mandatory.
	Config string
	// Resolver yields per-tenant database handles. This is mandatory.
	Resolver *mdb.Resolver
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// CORSOrigin is the allowed cross-origin. Optional, defaults to "*".
	CORSOrigin string
}

// New realizes the actual backend. It compiles the schema registry and adds
// the actual routes to the router.
func New(bb *Builder) *Backend {

	var config Configuration
	err := json.Unmarshal([]byte(bb.Config), &config)
	if err != nil {
		panic(fmt.Errorf("parse error in backend configuration: %s", err))
	}

	if bb.Resolver == nil {
		panic("Resolver is missing")
	}

	if bb.Router == nil {
		panic("Router is missing")
	}

	registry, err := schema.NewRegistry()
	if err != nil {
		panic(fmt.Errorf("cannot compile schema registry: %s", err))
	}

	tables := make(map[string]tableConfiguration)
	for _, rc := range config.Tables {
		if _, err := registry.ShapeOf(rc.Table); err != nil {
			panic(fmt.Errorf("invalid configuration: %s", err))
		}
		tables[rc.Table] = rc
	}

	b := &Backend{
		config:     config,
		tables:     tables,
		resolver:   bb.Resolver,
		router:     bb.Router,
		corsOrigin: bb.CORSOrigin,
		Registry:   registry,
	}

	b.handleCORS()
	logger.AddRequestID(b.router)
	b.handleRoutes(b.router)
	return b
}

// handleRoutes adds all necessary handlers for the specified configuration
func (b *Backend) handleRoutes(router *mux.Router) {

	nillog := logger.FromContext(nil)
	nillog.Debugln("backend: handle routes")
	for _, rc := range b.config.Tables {
		nillog.Debugln("  expose table:", rc.Table)
		if rc.Description != "" {
			nillog.Debugln("    description:", rc.Description)
		}
	}

	router.HandleFunc("/", b.banner).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/health", b.health).Methods(http.MethodOptions, http.MethodGet)

	router.Handle("/{database}/searchresource/{table}",
		handlers.CompressHandler(http.HandlerFunc(b.searchResource))).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/{database}/searchresource/{table}/{id}", b.getResource).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/{database}/createresource/{table}", b.createResource).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/{database}/updateresource/{table}/{id}", b.updateResource).Methods(http.MethodOptions, http.MethodPut)
	router.HandleFunc("/{database}/deleteresource/{table}/{id}", b.deleteResource).Methods(http.MethodOptions, http.MethodDelete)
	router.Handle("/{database}/aggregatetable/{table}",
		handlers.CompressHandler(http.HandlerFunc(b.aggregateTable))).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/{database}/removekeys/{table}/{id}", b.removeKeys).Methods(http.MethodOptions, http.MethodPatch)

	router.HandleFunc("/{database}/getmenuitem/{id}", b.getMenuItem).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/{database}/getsalesbymenu/{id}", b.getSalesByMenu).Methods(http.MethodOptions, http.MethodGet)
	router.Handle("/{database}/getbusinessanalytics",
		handlers.CompressHandler(http.HandlerFunc(b.getBusinessAnalytics))).Methods(http.MethodOptions, http.MethodGet)
	router.Handle("/{database}/getcrosscollectionanalysis",
		handlers.CompressHandler(http.HandlerFunc(b.getCrossCollectionAnalysis))).Methods(http.MethodOptions, http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(b.notFound)
}

// store resolves the tenant database and the table shape for one request.
// Unknown and unexposed table names are terminal not-found errors.
func (b *Backend) store(ctx context.Context, database, table string) (*mongo.Collection, schema.Shape, error) {
	if _, ok := b.tables[table]; !ok {
		return nil, schema.Shape{}, NotFoundError{Message: fmt.Sprintf("no schema for table: %s", table)}
	}
	shape, err := b.Registry.ShapeOf(table)
	if err != nil {
		return nil, schema.Shape{}, NotFoundError{Message: err.Error()}
	}
	db, err := b.resolver.Resolve(ctx, database)
	if err != nil {
		return nil, schema.Shape{}, err
	}
	return db.Collection(table), shape, nil
}

func (b *Backend) banner(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Business Sales Tracker API is running!",
		Data: map[string]interface{}{
			"version":   Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"endpoints": map[string]string{
				"health":            "/health",
				"search":            "/{database}/searchresource/{table}",
				"businessAnalytics": "/{database}/getbusinessanalytics",
			},
		},
	})
}

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	database := "connected"
	if err := b.resolver.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warnln("store is not reachable")
		database = "disconnected"
	}
	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Message: "Server is healthy",
		Data: map[string]interface{}{
			"database":  database,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (b *Backend) notFound(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusNotFound, Response{
		Success: false,
		Message: "Endpoint not found",
		Error:   "The requested resource was not found",
	})
}
