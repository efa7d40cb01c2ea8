package test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type BackendTestSuite struct {
	IntegrationTestSuite
}

func TestBackendTestSuite(t *testing.T) {
	suite.Run(t, &BackendTestSuite{})
}

// tenant returns a fresh tenant database name, so tests do not see each
// other's data
func (s *BackendTestSuite) tenant() string {
	return "tenant_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

const testUserID = "64b5f0c2a2f4e1d3c4b5a697"

func (s *BackendTestSuite) createMenuItem(tenant, name, category string, price float64) map[string]interface{} {
	var created envelope
	_, err := s.client.RawPost("/"+tenant+"/createresource/MenuItems", map[string]interface{}{
		"name":     name,
		"category": category,
		"prices":   map[string]interface{}{"regular": price},
		"userId":   testUserID,
	}, &created)
	s.Require().NoError(err)
	s.Require().True(created.Success)
	return created.record()
}

func (s *BackendTestSuite) createSale(tenant, menuItemID, itemName, category string, price float64, quantity int, timestamp string) map[string]interface{} {
	sale := map[string]interface{}{
		"menuItemId":  menuItemID,
		"itemName":    itemName,
		"category":    category,
		"size":        "regular",
		"unitPrice":   price,
		"quantity":    quantity,
		"totalAmount": price * float64(quantity),
		"userId":      testUserID,
	}
	if timestamp != "" {
		sale["timestamp"] = timestamp
	}
	var created envelope
	_, err := s.client.RawPost("/"+tenant+"/createresource/SaleRecords", sale, &created)
	s.Require().NoError(err)
	s.Require().True(created.Success)
	return created.record()
}

func (s *BackendTestSuite) TestMenuItemSaleFlow() {
	tenant := s.tenant()

	item := s.createMenuItem(tenant, "Oreo", "milkCakes", 99)
	menuItemID, _ := item["id"].(string)
	s.NotEmpty(menuItemID)
	s.Equal(true, item["isAvailable"])
	s.NotContains(item, "_id")
	s.Equal(map[string]interface{}{"regular": float64(99)}, item["prices"])

	sale := s.createSale(tenant, menuItemID, "Oreo", "milkCakes", 99, 2, "")
	s.Equal(float64(198), sale["totalAmount"])

	var result envelope
	_, err := s.client.RawGet("/"+tenant+"/getsalesbymenu/"+menuItemID+"?page=1&pageSize=20", &result)
	s.Require().NoError(err)
	s.True(result.Success)
	s.Len(result.records(), 1)
	s.Require().NotNil(result.Pagination)
	s.Equal(int64(1), result.Pagination.Total)
	s.Equal(int64(1), result.Pagination.TotalPages)
}

func (s *BackendTestSuite) TestSaleTotalRecomputed() {
	tenant := s.tenant()

	var created envelope
	_, err := s.client.RawPost("/"+tenant+"/createresource/SaleRecords", map[string]interface{}{
		"menuItemId": "m1",
		"itemName":   "Oreo",
		"category":   "milkCakes",
		"size":       "regular",
		"unitPrice":  49.5,
		"quantity":   3,
		"userId":     testUserID,
	}, &created)
	s.Require().NoError(err)
	s.Equal(148.5, created.record()["totalAmount"])
}

func (s *BackendTestSuite) TestGetUpdateDelete() {
	tenant := s.tenant()
	item := s.createMenuItem(tenant, "Basque", "cheeseCakes", 120)
	id := item["id"].(string)

	var fetched envelope
	_, err := s.client.RawGet("/"+tenant+"/searchresource/MenuItems/"+id, &fetched)
	s.Require().NoError(err)
	s.Equal("Basque", fetched.record()["name"])

	var updated envelope
	_, err = s.client.RawPut("/"+tenant+"/updateresource/MenuItems/"+id, map[string]interface{}{
		"description": "burnt, the way it should be",
		"isAvailable": false,
	}, &updated)
	s.Require().NoError(err)
	s.Equal("burnt, the way it should be", updated.record()["description"])
	s.Equal(false, updated.record()["isAvailable"])
	s.Equal("Basque", updated.record()["name"])

	var deleted envelope
	_, err = s.client.RawDelete("/"+tenant+"/deleteresource/MenuItems/"+id, &deleted)
	s.Require().NoError(err)
	s.Equal("Basque", deleted.record()["name"])

	status, err := s.client.RawGet("/"+tenant+"/searchresource/MenuItems/"+id, nil)
	s.Error(err)
	s.Equal(http.StatusNotFound, status)
	s.Contains(err.Error(), "Resource not found with id: "+id)
}

func (s *BackendTestSuite) TestUpdateRejectsBadTotal() {
	tenant := s.tenant()
	sale := s.createSale(tenant, "m1", "Oreo", "milkCakes", 99, 2, "")
	id := sale["id"].(string)

	status, err := s.client.RawPut("/"+tenant+"/updateresource/SaleRecords/"+id, map[string]interface{}{
		"quantity": 3,
	}, nil)
	s.Error(err)
	s.Equal(http.StatusBadRequest, status)
}

func (s *BackendTestSuite) TestRemoveKeys() {
	tenant := s.tenant()
	item := s.createMenuItem(tenant, "Lotus", "cheeseCakes", 110)
	id := item["id"].(string)

	var updated envelope
	_, err := s.client.RawPut("/"+tenant+"/updateresource/MenuItems/"+id, map[string]interface{}{
		"description": "temporary",
	}, &updated)
	s.Require().NoError(err)
	s.Equal("temporary", updated.record()["description"])

	var patched envelope
	_, err = s.client.RawPatch("/"+tenant+"/removekeys/MenuItems/"+id, map[string]interface{}{
		"description": 1,
	}, &patched)
	s.Require().NoError(err)
	s.NotContains(patched.record(), "description")
	s.Equal("Lotus", patched.record()["name"])
}

func (s *BackendTestSuite) TestGetMenuItem() {
	tenant := s.tenant()
	item := s.createMenuItem(tenant, "Nutella", "chocolateBrownie", 85)
	id := item["id"].(string)

	var fetched envelope
	_, err := s.client.RawGet("/"+tenant+"/getmenuitem/"+id, &fetched)
	s.Require().NoError(err)
	s.Equal("Nutella", fetched.record()["name"])

	status, err := s.client.RawGet("/"+tenant+"/getmenuitem/doesnotexist", nil)
	s.Error(err)
	s.Equal(http.StatusNotFound, status)
	s.Contains(err.Error(), "Menu item not found with id: doesnotexist")
}

func (s *BackendTestSuite) TestUserPasswordSuppressed() {
	tenant := s.tenant()

	var created envelope
	_, err := s.client.RawPost("/"+tenant+"/createresource/Users", map[string]interface{}{
		"firstName": "Mona",
		"lastName":  "Lindqvist",
		"email":     "mona@bakelog.tech",
		"password":  "secret99",
	}, &created)
	s.Require().NoError(err)
	s.True(created.Success)
	s.Equal("owner", created.record()["role"])
	s.NotContains(created.record(), "password")

	var result envelope
	_, err = s.client.RawPostOK("/"+tenant+"/searchresource/Users", map[string]interface{}{}, &result)
	s.Require().NoError(err)
	s.Require().Len(result.records(), 1)
	row := result.records()[0].(map[string]interface{})
	s.NotContains(row, "password")
}

func (s *BackendTestSuite) TestSearchFilterCoercion() {
	tenant := s.tenant()
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 99, 1, "2024-03-01T10:00:00Z")
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 99, 1, "2024-06-01T10:00:00Z")
	s.createSale(tenant, "m2", "Basque", "cheeseCakes", 120, 1, "2024-06-15T10:00:00Z")

	var result envelope
	_, err := s.client.RawPostOK("/"+tenant+"/searchresource/SaleRecords", map[string]interface{}{
		"filter": map[string]interface{}{
			"timestamp": map[string]interface{}{"$gte": "2024-05-01"},
		},
	}, &result)
	s.Require().NoError(err)
	s.Equal(int64(2), result.Pagination.Total)

	_, err = s.client.RawPostOK("/"+tenant+"/searchresource/SaleRecords", map[string]interface{}{
		"filter": map[string]interface{}{"userId": testUserID},
	}, &result)
	s.Require().NoError(err)
	s.Equal(int64(3), result.Pagination.Total)
}

func (s *BackendTestSuite) TestSearchPaginationIdempotence() {
	tenant := s.tenant()
	for i := 0; i < 25; i++ {
		s.createSale(tenant, "m1", "Oreo", "milkCakes", 10, 1, fmt.Sprintf("2024-01-%02dT09:00:00Z", i%28+1))
	}

	query := func(page int) envelope {
		var result envelope
		_, err := s.client.RawPostOK(fmt.Sprintf("/%s/searchresource/SaleRecords?page=%d&pageSize=10", tenant, page),
			map[string]interface{}{}, &result)
		s.Require().NoError(err)
		return result
	}

	first, last := query(1), query(3)
	s.Equal(int64(25), first.Pagination.Total)
	s.Equal(int64(25), last.Pagination.Total)
	s.Equal(int64(3), first.Pagination.TotalPages)
	s.Len(first.records(), 10)
	s.Len(last.records(), 5)
}

func (s *BackendTestSuite) TestSearchSortAndProject() {
	tenant := s.tenant()
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 99, 1, "2024-03-01T10:00:00Z")
	s.createSale(tenant, "m2", "Basque", "cheeseCakes", 120, 1, "2024-03-02T10:00:00Z")

	var result envelope
	_, err := s.client.RawPostOK("/"+tenant+"/searchresource/SaleRecords", map[string]interface{}{
		"sort":    map[string]interface{}{"timestamp": 1},
		"project": map[string]interface{}{"itemName": 1, "_id": 0},
	}, &result)
	s.Require().NoError(err)
	s.Require().Len(result.records(), 2)
	s.Equal(map[string]interface{}{"itemName": "Oreo"}, result.records()[0])
	s.Equal(map[string]interface{}{"itemName": "Basque"}, result.records()[1])
}

func (s *BackendTestSuite) TestTenantIsolation() {
	first, second := s.tenant(), s.tenant()
	s.createMenuItem(first, "Oreo", "milkCakes", 99)

	var result envelope
	_, err := s.client.RawPostOK("/"+second+"/searchresource/MenuItems", map[string]interface{}{}, &result)
	s.Require().NoError(err)
	s.Empty(result.records())
	s.Equal(int64(0), result.Pagination.Total)
}

func (s *BackendTestSuite) TestUnknownTable() {
	status, err := s.client.RawPostOK("/"+s.tenant()+"/searchresource/Recipes", map[string]interface{}{}, nil)
	s.Error(err)
	s.Equal(http.StatusNotFound, status)
}
