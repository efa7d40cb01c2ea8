// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/bakelog-tech/bakelog/core/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pagination describes one page of a paginated result
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// Response is the uniform envelope returned by every route
type Response struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// NotFoundError reports an unknown table or a record that does not exist
type NotFoundError struct {
	Message string
}

func (e NotFoundError) Error() string {
	return e.Message
}

// ValidationError reports a constraint violation with field-level details
type ValidationError struct {
	Message string
	Details interface{}
}

func (e ValidationError) Error() string {
	return e.Message
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, response Response) {
	jsonData, err := json.MarshalWithOption(response, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("cannot marshal response")
		http.Error(w, "cannot marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// writeError maps an error onto the envelope taxonomy: not-found, validation
// with details, or a generic failure carrying the underlying message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rlog := logger.FromContext(r.Context())

	var notFound NotFoundError
	if errors.As(err, &notFound) {
		rlog.Infoln(notFound.Message)
		writeResponse(w, r, http.StatusNotFound, Response{Success: false, Error: notFound.Message})
		return
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		rlog.Infoln(validation.Message)
		writeResponse(w, r, http.StatusBadRequest, Response{
			Success: false,
			Error:   validation.Message,
			Details: validation.Details,
		})
		return
	}
	rlog.WithError(err).Errorln("request failed")
	writeResponse(w, r, http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
}

// render converts driver-native values into their JSON representation:
// ObjectIDs become hex strings, BSON datetimes become UTC times and ordered
// documents become plain maps.
func render(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	case primitive.Decimal128:
		return v.String()
	case bson.D:
		object := make(map[string]interface{}, len(v))
		for _, e := range v {
			object[e.Key] = render(e.Value)
		}
		return object
	case bson.M:
		object := make(map[string]interface{}, len(v))
		for key, value := range v {
			object[key] = render(value)
		}
		return object
	case map[string]interface{}:
		object := make(map[string]interface{}, len(v))
		for key, value := range v {
			object[key] = render(value)
		}
		return object
	case bson.A:
		array := make([]interface{}, len(v))
		for i, e := range v {
			array[i] = render(e)
		}
		return array
	case []interface{}:
		array := make([]interface{}, len(v))
		for i, e := range v {
			array[i] = render(e)
		}
		return array
	}
	return value
}

// transformRecord renders a stored document the way records are serialized:
// the external id takes the place of the native _id, and credentials never
// leave the Users table.
func transformRecord(doc bson.M, table string) map[string]interface{} {
	object, ok := render(doc).(map[string]interface{})
	if !ok {
		return nil
	}
	if _, ok := object["id"]; !ok {
		if hex, ok := object["_id"].(string); ok {
			object["id"] = hex
		}
	}
	delete(object, "_id")
	if table == "Users" {
		delete(object, "password")
	}
	return object
}

// renderRow renders one aggregation or list row. Unlike transformRecord it
// keeps the internal _id, matching the raw pipeline output, but credentials
// are still suppressed.
func renderRow(doc bson.M, table string) interface{} {
	object, ok := render(doc).(map[string]interface{})
	if !ok {
		return doc
	}
	if table == "Users" {
		delete(object, "password")
	}
	return object
}

func renderRows(docs []bson.M, table string) []interface{} {
	rows := make([]interface{}, 0, len(docs)) // do not return null in json, but empty array
	for _, doc := range docs {
		rows = append(rows, renderRow(doc, table))
	}
	return rows
}
