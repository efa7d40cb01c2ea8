package test

func (s *BackendTestSuite) analytics(tenant, query string) map[string]interface{} {
	var result envelope
	_, err := s.client.RawGet("/"+tenant+"/getbusinessanalytics"+query, &result)
	s.Require().NoError(err)
	s.Require().True(result.Success)
	return result.record()
}

func (s *BackendTestSuite) TestBusinessAnalyticsEmptyRange() {
	tenant := s.tenant()
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 99, 2, "2024-03-01T10:00:00Z")

	data := s.analytics(tenant, "?startDate=2020-01-01&endDate=2020-12-31")
	s.Empty(data["revenueByCategory"])
	s.Empty(data["topSellingItems"])
	s.Empty(data["dailyTrends"])

	stats := data["overallStats"].(map[string]interface{})
	s.Equal(float64(0), stats["totalRevenue"])
	s.Equal(float64(0), stats["totalSales"])
	s.Equal(float64(0), stats["totalItems"])
	s.Equal(float64(0), stats["avgSaleAmount"])
	s.NotContains(stats, "_id")
}

func (s *BackendTestSuite) TestBusinessAnalytics() {
	tenant := s.tenant()
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 100, 2, "2024-03-01T10:00:00Z")
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 100, 1, "2024-03-01T15:00:00Z")
	s.createSale(tenant, "m2", "Basque", "cheeseCakes", 120, 1, "2024-03-02T11:00:00Z")

	data := s.analytics(tenant, "")

	byCategory := map[string]map[string]interface{}{}
	for _, row := range data["revenueByCategory"].([]interface{}) {
		group := row.(map[string]interface{})
		byCategory[group["_id"].(string)] = group
	}
	s.Equal(float64(300), byCategory["milkCakes"]["totalRevenue"])
	s.Equal(float64(2), byCategory["milkCakes"]["salesCount"])
	s.Equal(float64(3), byCategory["milkCakes"]["itemsSold"])
	s.Equal(float64(120), byCategory["cheeseCakes"]["totalRevenue"])

	top := data["topSellingItems"].([]interface{})
	s.Require().NotEmpty(top)
	best := top[0].(map[string]interface{})
	s.Equal("Oreo", best["_id"])
	s.Equal(float64(3), best["totalQuantity"])

	trends := data["dailyTrends"].([]interface{})
	s.Require().Len(trends, 2)
	firstDay := trends[0].(map[string]interface{})["_id"].(map[string]interface{})
	s.Equal(float64(1), firstDay["day"])

	stats := data["overallStats"].(map[string]interface{})
	s.Equal(float64(420), stats["totalRevenue"])
	s.Equal(float64(3), stats["totalSales"])
	s.Equal(float64(4), stats["totalItems"])
	s.Equal(float64(140), stats["avgSaleAmount"])
}

func (s *BackendTestSuite) TestBusinessAnalyticsDateRange() {
	tenant := s.tenant()
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 100, 1, "2024-03-01T10:00:00Z")
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 100, 1, "2024-06-01T10:00:00Z")

	data := s.analytics(tenant, "?startDate=2024-05-01&endDate=2024-07-01")
	stats := data["overallStats"].(map[string]interface{})
	s.Equal(float64(100), stats["totalRevenue"])
	s.Equal(float64(1), stats["totalSales"])
}

func (s *BackendTestSuite) TestCrossCollectionAnalysis() {
	tenant := s.tenant()
	item := s.createMenuItem(tenant, "Oreo", "milkCakes", 99)
	menuItemID := item["id"].(string)
	s.createSale(tenant, menuItemID, "Oreo", "milkCakes", 99, 2, "2024-03-01T10:00:00Z")
	// a sale whose menu item was never created still shows up
	s.createSale(tenant, "ghost", "Mystery", "cheeseCakes", 50, 1, "2024-03-01T11:00:00Z")

	var result envelope
	_, err := s.client.RawGet("/"+tenant+"/getcrosscollectionanalysis", &result)
	s.Require().NoError(err)
	s.Require().Len(result.records(), 2)

	// sorted by revenue descending
	first := result.records()[0].(map[string]interface{})
	s.Equal(float64(198), first["totalRevenue"])
	s.Equal(true, first["isAvailable"])
	group := first["_id"].(map[string]interface{})
	s.Equal("Oreo", group["itemName"])

	second := result.records()[1].(map[string]interface{})
	s.Equal(float64(50), second["totalRevenue"])
	s.Nil(second["isAvailable"])
}

func (s *BackendTestSuite) TestAggregateTable() {
	tenant := s.tenant()
	s.createSale(tenant, "m1", "Oreo", "milkCakes", 99, 1, "2024-03-01T10:00:00Z")
	s.createSale(tenant, "m2", "Basque", "cheeseCakes", 120, 1, "2024-03-02T10:00:00Z")

	var result envelope
	_, err := s.client.RawPostOK("/"+tenant+"/aggregatetable/SaleRecords", []interface{}{
		map[string]interface{}{"$match": map[string]interface{}{
			"timestamp": map[string]interface{}{"$gte": "2024-03-02"},
		}},
		map[string]interface{}{"$count": "sales"},
	}, &result)
	s.Require().NoError(err)
	s.Require().Len(result.records(), 1)
	row := result.records()[0].(map[string]interface{})
	s.Equal(float64(1), row["sales"])
}
