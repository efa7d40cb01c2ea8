// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bakelog-tech/bakelog/core/coerce"
	"github.com/bakelog-tech/bakelog/core/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// getBusinessAnalytics computes four grouped views over the sale records in a
// single fan-out: revenue per category, the ten best-selling items, daily
// revenue trends and the overall totals. An optional startDate/endDate pair
// narrows the pipeline with a leading match on the sale timestamp.
func (b *Backend) getBusinessAnalytics(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, _, err := b.store(r.Context(), params["database"], "SaleRecords")
	if err != nil {
		writeError(w, r, err)
		return
	}

	timeRange := bson.M{}
	for key, operator := range map[string]string{"startDate": "$gte", "endDate": "$lte"} {
		value := r.URL.Query().Get(key)
		if value == "" {
			continue
		}
		t, ok := coerce.ParseTime(value)
		if !ok {
			writeError(w, r, ValidationError{Message: "parameter '" + key + "': invalid date"})
			return
		}
		timeRange[operator] = t
	}

	pipeline := mongo.Pipeline{}
	if len(timeRange) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"timestamp": timeRange}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.M{
		"revenueByCategory": bson.A{
			bson.M{"$group": bson.M{
				"_id":          "$category",
				"totalRevenue": bson.M{"$sum": "$totalAmount"},
				"salesCount":   bson.M{"$sum": 1},
				"itemsSold":    bson.M{"$sum": "$quantity"},
			}},
		},
		"topSellingItems": bson.A{
			bson.M{"$group": bson.M{
				"_id":           "$itemName",
				"totalQuantity": bson.M{"$sum": "$quantity"},
				"totalRevenue":  bson.M{"$sum": "$totalAmount"},
				"salesCount":    bson.M{"$sum": 1},
			}},
			bson.M{"$sort": bson.M{"totalQuantity": -1}},
			bson.M{"$limit": 10},
		},
		"dailyTrends": bson.A{
			bson.M{"$group": bson.M{
				"_id": bson.M{
					"year":  bson.M{"$year": "$timestamp"},
					"month": bson.M{"$month": "$timestamp"},
					"day":   bson.M{"$dayOfMonth": "$timestamp"},
				},
				"revenue": bson.M{"$sum": "$totalAmount"},
				"sales":   bson.M{"$sum": 1},
				"items":   bson.M{"$sum": "$quantity"},
			}},
			bson.M{"$sort": bson.D{
				{Key: "_id.year", Value: 1},
				{Key: "_id.month", Value: 1},
				{Key: "_id.day", Value: 1},
			}},
		},
		"overallStats": bson.A{
			bson.M{"$group": bson.M{
				"_id":           nil,
				"totalRevenue":  bson.M{"$sum": "$totalAmount"},
				"totalSales":    bson.M{"$sum": 1},
				"totalItems":    bson.M{"$sum": "$quantity"},
				"avgSaleAmount": bson.M{"$avg": "$totalAmount"},
			}},
		},
	}}})

	cursor, err := coll.Aggregate(r.Context(), pipeline)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var results []struct {
		RevenueByCategory []bson.M `bson:"revenueByCategory"`
		TopSellingItems   []bson.M `bson:"topSellingItems"`
		DailyTrends       []bson.M `bson:"dailyTrends"`
		OverallStats      []bson.M `bson:"overallStats"`
	}
	if err := cursor.All(r.Context(), &results); err != nil {
		writeError(w, r, err)
		return
	}

	data := bson.M{
		"revenueByCategory": []interface{}{},
		"topSellingItems":   []interface{}{},
		"dailyTrends":       []interface{}{},
		"overallStats":      emptyOverallStats(),
	}
	if len(results) > 0 {
		result := results[0]
		data["revenueByCategory"] = renderRows(result.RevenueByCategory, "SaleRecords")
		data["topSellingItems"] = renderRows(result.TopSellingItems, "SaleRecords")
		data["dailyTrends"] = renderRows(result.DailyTrends, "SaleRecords")
		if len(result.OverallStats) > 0 {
			stats := render(result.OverallStats[0]).(map[string]interface{})
			delete(stats, "_id")
			data["overallStats"] = stats
		}
	}

	writeResponse(w, r, http.StatusOK, Response{Success: true, Data: data})
}

func emptyOverallStats() map[string]interface{} {
	return map[string]interface{}{
		"totalRevenue":  0,
		"totalSales":    0,
		"totalItems":    0,
		"avgSaleAmount": 0,
	}
}

// getCrossCollectionAnalysis joins each sale record to its menu item by the
// external identifier, keeping sales whose menu item has been deleted, and
// groups the result per category and item name sorted by revenue.
func (b *Backend) getCrossCollectionAnalysis(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	params := mux.Vars(r)
	coll, _, err := b.store(r.Context(), params["database"], "SaleRecords")
	if err != nil {
		writeError(w, r, err)
		return
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "MenuItems",
			"localField":   "menuItemId",
			"foreignField": "id",
			"as":           "menuItemDetails",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$menuItemDetails",
			"preserveNullAndEmptyArrays": true,
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"category": "$category",
				"itemName": "$itemName",
			},
			"totalRevenue":  bson.M{"$sum": "$totalAmount"},
			"totalQuantity": bson.M{"$sum": "$quantity"},
			"salesCount":    bson.M{"$sum": 1},
			"avgPrice":      bson.M{"$avg": "$unitPrice"},
			"isAvailable":   bson.M{"$first": "$menuItemDetails.isAvailable"},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"totalRevenue": -1}}},
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
		Data:    renderRows(rows, "SaleRecords"),
	})
}
