// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// saleTotalTolerance allows for small floating point differences between
// totalAmount and unitPrice*quantity
const saleTotalTolerance = 0.01

// applyCreateDefaults fills the JSON-native defaults of a table before
// validation: a generated external id plus the per-table field defaults.
func applyCreateDefaults(table string, doc map[string]interface{}) {
	setDefault := func(field string, value interface{}) {
		if _, ok := doc[field]; !ok {
			doc[field] = value
		}
	}
	setDefault("id", primitive.NewObjectID().Hex())
	switch table {
	case "Users":
		setDefault("role", "owner")
		setDefault("businessType", "bakery")
		setDefault("isActive", true)
	case "MenuItems":
		setDefault("isAvailable", true)
	}
}

// checkSaleTotals enforces the sale record total invariant. A missing or zero
// totalAmount is computed from unitPrice and quantity; any other value must
// match the product within the tolerance. A totalAmount explicitly set to 0 is
// therefore recomputed rather than validated, matching the behavior the
// clients of this API rely on.
func checkSaleTotals(doc map[string]interface{}) error {
	unitPrice := asFloat(doc["unitPrice"])
	quantity := asFloat(doc["quantity"])
	totalAmount := asFloat(doc["totalAmount"])

	if totalAmount == 0 {
		doc["totalAmount"] = unitPrice * quantity
		return nil
	}
	if math.Abs(totalAmount-unitPrice*quantity) > saleTotalTolerance {
		return ValidationError{
			Message: "Validation failed",
			Details: map[string]string{
				"totalAmount": "total amount must equal unit price times quantity",
			},
		}
	}
	return nil
}

func asFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// mergeRecord merge-assigns the update body onto the existing record,
// top-level key by top-level key. The result is used for revalidation only;
// the store update itself is a $set of the body.
func mergeRecord(existing map[string]interface{}, body map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(existing)+len(body))
	for key, value := range existing {
		merged[key] = value
	}
	for key, value := range body {
		merged[key] = value
	}
	return merged
}
