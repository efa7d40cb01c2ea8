// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/bakelog-tech/bakelog/core/coerce"
	"github.com/bakelog-tech/bakelog/core/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// identifierQuery locates a record by path id: a syntactically valid ObjectID
// literal queries the native _id, anything else falls back to the table's
// external identifier field.
func (b *Backend) identifierQuery(table, id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{b.tables[table].externalIndex(): id}
}

func paginationFromRequest(r *http.Request) (page int, pageSize int, err error) {
	for key, array := range r.URL.Query() {
		value := array[0]
		var err error
		switch key {
		case "page":
			page, err = strconv.Atoi(value)
			if err == nil && page < 1 {
				err = fmt.Errorf("out of range")
			}
		case "pageSize":
			pageSize, err = strconv.Atoi(value)
			if err == nil && (pageSize < 1 || pageSize > 1000) {
				err = fmt.Errorf("out of range")
			}
		}
		if err != nil {
			return 0, 0, ValidationError{Message: "parameter '" + key + "': " + err.Error()}
		}
	}
	return page, pageSize, nil
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize < 1 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}

func (b *Backend) createResource(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, r, ValidationError{Message: "invalid JSON body", Details: err.Error()})
		return
	}
	if doc == nil { // the JSON literal null decodes without error
		writeError(w, r, ValidationError{Message: "invalid JSON body", Details: "expected a JSON object"})
		return
	}

	applyCreateDefaults(shape.Table, doc)
	if details := b.Registry.Validate(shape.Table, doc); details != nil {
		writeError(w, r, ValidationError{Message: "Validation failed", Details: details})
		return
	}
	if shape.Table == "SaleRecords" {
		if err := checkSaleTotals(doc); err != nil {
			writeError(w, r, err)
			return
		}
	}

	coerce.Document(doc, shape)
	now := time.Now().UTC()
	if shape.Table == "SaleRecords" {
		if _, ok := doc["timestamp"]; !ok {
			doc["timestamp"] = now
		}
	}
	doc["createdAt"] = now
	doc["updatedAt"] = now

	result, err := coll.InsertOne(r.Context(), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc["_id"] = result.InsertedID

	writeResponse(w, r, http.StatusCreated, Response{
		Success: true,
		Data:    transformRecord(bson.M(doc), shape.Table),
	})
}

func (b *Backend) getResource(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	var doc bson.M
	err = coll.FindOne(r.Context(), b.identifierQuery(shape.Table, params["id"])).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		writeError(w, r, NotFoundError{Message: fmt.Sprintf("Resource not found with id: %s", params["id"])})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    transformRecord(doc, shape.Table),
	})
}

func (b *Backend) updateResource(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, ValidationError{Message: "invalid JSON body", Details: err.Error()})
		return
	}
	if body == nil {
		writeError(w, r, ValidationError{Message: "invalid JSON body", Details: "expected a JSON object"})
		return
	}

	query := b.identifierQuery(shape.Table, params["id"])
	var existing bson.M
	err = coll.FindOne(r.Context(), query).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		writeError(w, r, NotFoundError{Message: fmt.Sprintf("Resource not found with id: %s", params["id"])})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	// merge-assign onto the stored record and re-validate the result
	rendered, _ := render(existing).(map[string]interface{})
	merged := mergeRecord(rendered, body)
	delete(merged, "_id")
	if details := b.Registry.Validate(shape.Table, merged); details != nil {
		writeError(w, r, ValidationError{Message: "Validation failed", Details: details})
		return
	}
	if shape.Table == "SaleRecords" {
		if err := checkSaleTotals(merged); err != nil {
			writeError(w, r, err)
			return
		}
		// a recomputed total must reach the store as well
		body["totalAmount"] = merged["totalAmount"]
	}

	coerce.Document(body, shape)
	body["updatedAt"] = time.Now().UTC()

	var updated bson.M
	err = coll.FindOneAndUpdate(r.Context(), query, bson.M{"$set": body},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		writeError(w, r, NotFoundError{Message: fmt.Sprintf("Resource not found with id: %s", params["id"])})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    transformRecord(updated, shape.Table),
	})
}

func (b *Backend) deleteResource(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	var removed bson.M
	err = coll.FindOneAndDelete(r.Context(), b.identifierQuery(shape.Table, params["id"])).Decode(&removed)
	if err == mongo.ErrNoDocuments {
		writeError(w, r, NotFoundError{Message: fmt.Sprintf("Resource not found with id: %s", params["id"])})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    transformRecord(removed, shape.Table),
	})
}

func (b *Backend) removeKeys(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], params["table"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, ValidationError{Message: "invalid JSON body", Details: err.Error()})
		return
	}
	if len(body) == 0 {
		writeError(w, r, ValidationError{Message: "no fields to remove"})
		return
	}
	unset := bson.M{}
	for field := range body {
		unset[field] = ""
	}

	// the resulting shape is not re-validated, that is the caller's responsibility
	var updated bson.M
	err = coll.FindOneAndUpdate(r.Context(), b.identifierQuery(shape.Table, params["id"]), bson.M{"$unset": unset},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		writeError(w, r, NotFoundError{Message: fmt.Sprintf("Resource not found with id: %s", params["id"])})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    transformRecord(updated, shape.Table),
	})
}

func (b *Backend) getMenuItem(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, shape, err := b.store(r.Context(), params["database"], "MenuItems")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var doc bson.M
	err = coll.FindOne(r.Context(), bson.M{b.tables[shape.Table].externalIndex(): params["id"]}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		writeError(w, r, NotFoundError{Message: fmt.Sprintf("Menu item not found with id: %s", params["id"])})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    transformRecord(doc, shape.Table),
	})
}

func (b *Backend) getSalesByMenu(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	page, pageSize, err := paginationFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}

	coll, shape, err := b.store(r.Context(), params["database"], "SaleRecords")
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := bson.M{"menuItemId": params["id"]}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := coll.Find(r.Context(), filter, findOptions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var docs []bson.M
	if err := cursor.All(r.Context(), &docs); err != nil {
		writeError(w, r, err)
		return
	}

	total, err := coll.CountDocuments(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeResponse(w, r, http.StatusOK, Response{
		Success: true,
		Data:    renderRows(docs, shape.Table),
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		},
	})
}
