// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package schema holds the static table registry of the backend.

Every logical table the API exposes is described by a Shape, the set of field
names with their native kinds. Shapes are compiled once at process start and
immutable afterwards; the coercion engine and the resource operations are pure
functions over them. Constraint validation (required fields, enums, lengths,
numeric bounds) is handled by JSON schemas embedded next to this package.
*/
package schema

import (
	"embed"
	"errors"
	"fmt"
	"sort"
)

//go:embed schemas
var schemasFS embed.FS

// FieldKind is the native kind a table field is stored as.
type FieldKind int

// all supported field kinds
const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindDate
	KindIdentifier
	KindIdentifierArray
	KindObject
	KindMap
)

// Shape describes one logical table: its field kinds and the $id of the
// JSON schema carrying its validation constraints.
type Shape struct {
	Table    string
	SchemaID string
	Fields   map[string]FieldKind
}

// KindOf returns the declared kind of a field. The second return value is
// false for fields the shape does not know about.
func (s Shape) KindOf(field string) (FieldKind, bool) {
	kind, ok := s.Fields[field]
	return kind, ok
}

// ErrUnknownTable is returned by ShapeOf for table names the registry
// does not know. Callers map it to a not-found response.
var ErrUnknownTable = errors.New("no schema for table")

// Registry is the immutable set of table shapes plus their constraint validator.
type Registry struct {
	shapes    map[string]Shape
	validator *Validator
}

const (
	// SchemaIDUsers is the $id of the Users constraint schema
	SchemaIDUsers = "https://bakelog.tech/schemas/users.json"
	// SchemaIDMenuItems is the $id of the MenuItems constraint schema
	SchemaIDMenuItems = "https://bakelog.tech/schemas/menuitems.json"
	// SchemaIDSaleRecords is the $id of the SaleRecords constraint schema
	SchemaIDSaleRecords = "https://bakelog.tech/schemas/salerecords.json"
)

// NewRegistry compiles the embedded constraint schemas and builds the shape table.
func NewRegistry() (*Registry, error) {
	validator, err := NewValidatorFromFS(schemasFS, "schemas")
	if err != nil {
		return nil, err
	}

	shapes := map[string]Shape{
		"Users": {
			Table:    "Users",
			SchemaID: SchemaIDUsers,
			Fields: map[string]FieldKind{
				"_id":          KindIdentifier,
				"id":           KindString,
				"firstName":    KindString,
				"lastName":     KindString,
				"email":        KindString,
				"phone":        KindString,
				"password":     KindString,
				"role":         KindString,
				"businessName": KindString,
				"businessType": KindString,
				"isActive":     KindBool,
				"address":      KindObject,
				"preferences":  KindObject,
				"lastLoginAt":  KindDate,
				"createdAt":    KindDate,
				"updatedAt":    KindDate,
			},
		},
		"MenuItems": {
			Table:    "MenuItems",
			SchemaID: SchemaIDMenuItems,
			Fields: map[string]FieldKind{
				"_id":         KindIdentifier,
				"id":          KindString,
				"name":        KindString,
				"category":    KindString,
				"prices":      KindMap,
				"description": KindString,
				"isAvailable": KindBool,
				"userId":      KindIdentifier,
				"createdAt":   KindDate,
				"updatedAt":   KindDate,
			},
		},
		"SaleRecords": {
			Table:    "SaleRecords",
			SchemaID: SchemaIDSaleRecords,
			Fields: map[string]FieldKind{
				"_id":         KindIdentifier,
				"id":          KindString,
				"menuItemId":  KindString,
				"itemName":    KindString,
				"category":    KindString,
				"size":        KindString,
				"unitPrice":   KindNumber,
				"quantity":    KindNumber,
				"totalAmount": KindNumber,
				"timestamp":   KindDate,
				"notes":       KindString,
				"userId":      KindIdentifier,
				"createdAt":   KindDate,
				"updatedAt":   KindDate,
			},
		},
	}

	for table, shape := range shapes {
		if !validator.HasSchema(shape.SchemaID) {
			return nil, fmt.Errorf("table %s references unknown schema %s", table, shape.SchemaID)
		}
	}

	return &Registry{shapes: shapes, validator: validator}, nil
}

// ShapeOf returns the shape of the named table, or ErrUnknownTable.
func (r *Registry) ShapeOf(table string) (Shape, error) {
	shape, ok := r.shapes[table]
	if !ok {
		return Shape{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return shape, nil
}

// Tables returns the known table names in stable order.
func (r *Registry) Tables() []string {
	var tables sort.StringSlice
	for table := range r.shapes {
		tables = append(tables, table)
	}
	tables.Sort()
	return tables
}

// Validate checks doc against the constraint schema of the named table.
// It returns per-field messages, or nil if the document is valid.
func (r *Registry) Validate(table string, doc interface{}) map[string]string {
	shape, err := r.ShapeOf(table)
	if err != nil {
		return map[string]string{"": err.Error()}
	}
	return r.validator.FieldErrors(doc, shape.SchemaID)
}
