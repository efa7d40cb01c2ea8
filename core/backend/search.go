// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/bakelog-tech/bakelog/core/coerce"
	"github.com/bakelog-tech/bakelog/core/logger"
	"github.com/bakelog-tech/bakelog/core/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// searchQuery is the declarative request body of the search route. Sort and
// custom stages are kept as raw JSON so that key order survives into the
// pipeline, a plain Go map would scramble it.
type searchQuery struct {
	Filter       map[string]interface{}   `json:"filter"`
	Sort         json.RawMessage          `json:"sort"`
	Project      map[string]interface{}   `json:"project"`
	Lookups      []map[string]interface{} `json:"lookups"`
	Unwind       interface{}              `json:"unwind"`
	AddFields    map[string]interface{}   `json:"addFields"`
	CustomStages []json.RawMessage        `json:"customStages"`
	Page         int                      `json:"page"`
	PageSize     int                      `json:"pageSize"`
}

type facetResult struct {
	Data  []bson.M `bson:"data"`
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
}

// buildSearchPipeline assembles the aggregation pipeline in its fixed stage
// order: match, addFields, lookups, unwind, sort, project, custom stages and
// the terminal facet that pages and counts over one identical row set.
func buildSearchPipeline(query searchQuery, shape schema.Shape, page, pageSize int) (mongo.Pipeline, error) {
	pipeline := mongo.Pipeline{}

	if len(query.Filter) > 0 {
		coerce.Document(query.Filter, shape)
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: query.Filter}})
	}
	if len(query.AddFields) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: query.AddFields}})
	}
	for _, lookup := range query.Lookups {
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: lookup}})
	}
	switch unwind := query.Unwind.(type) {
	case string:
		pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: unwind}})
	case []interface{}:
		for _, u := range unwind {
			pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: u}})
		}
	}

	sort := bson.D{{Key: "_id", Value: -1}}
	if len(query.Sort) > 0 {
		sort = bson.D{}
		if err := bson.UnmarshalExtJSON(query.Sort, false, &sort); err != nil {
			return nil, ValidationError{Message: "invalid sort", Details: err.Error()}
		}
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})

	if len(query.Project) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: query.Project}})
	}
	for _, raw := range query.CustomStages {
		stage := bson.D{}
		if err := bson.UnmarshalExtJSON(raw, false, &stage); err != nil {
			return nil, ValidationError{Message: "invalid custom stage", Details: err.Error()}
		}
		coerce.Stage(stage, shape)
		pipeline = append(pipeline, stage)
	}

	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.M{
		"data": bson.A{
			bson.M{"$skip": (page - 1) * pageSize},
			bson.M{"$limit": pageSize},
		},
		"total": bson.A{
			bson.M{"$count": "count"},
		},
	}}})
	return pipeline, nil
}

func (b *Backend) searchResource(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	page, pageSize, err := paginationFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	var query searchQuery
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			writeError(w, r, ValidationError{Message: "invalid JSON body", Details: err.Error()})
			return
		}
	}
	// query parameters win over the body
	if page == 0 {
		page = query.Page
	}
	if pageSize == 0 {
		pageSize = query.PageSize
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	pipeline, err := buildSearchPipeline(query, shape, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cursor, err := coll.Aggregate(r.Context(), pipeline)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var results []facetResult
	if err := cursor.All(r.Context(), &results); err != nil {
		writeError(w, r, err)
		return
	}

	var total int64
	rows := []bson.M{}
	if len(results) > 0 {
		rows = results[0].Data
		if len(results[0].Total) > 0 {
			total = results[0].Total[0].Count
		}
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    renderRows(rows, shape.Table),
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// aggregateTable runs a caller-supplied pipeline verbatim, after string
// identifiers and dates in stage values have been replaced with their native
// counterparts.
func (b *Backend) aggregateTable(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	// the body is a bare JSON array of stages
	var stages []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&stages); err != nil {
		writeError(w, r, ValidationError{Message: "invalid JSON body", Details: err.Error()})
		return
	}

	pipeline := mongo.Pipeline{}
	for _, raw := range stages {
		stage := bson.D{}
		if err := bson.UnmarshalExtJSON(raw, false, &stage); err != nil {
			writeError(w, r, ValidationError{Message: "invalid pipeline stage", Details: err.Error()})
			return
		}
		coerce.Stage(stage, shape)
		pipeline = append(pipeline, stage)
	}

	cursor, err := coll.Aggregate(r.Context(), pipeline)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var rows []bson.M
	if err := cursor.All(r.Context(), &rows); err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    renderRows(rows, shape.Table),
	})
}
