// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

// Configuration holds a complete backend configuration
type Configuration struct {
	Tables []tableConfiguration `json:"tables"`
}

// tableConfiguration describes one logical table exposed by the backend.
// The table name must exist in the schema registry. ExternalIndex is the
// unique external identifier field used when a path id is not a native
// ObjectID literal; it defaults to "id".
type tableConfiguration struct {
	Table         string `json:"table"`
	ExternalIndex string `json:"external_index"`
	Description   string `json:"description"`
}

func (rc tableConfiguration) externalIndex() string {
	if rc.ExternalIndex == "" {
		return "id"
	}
	return rc.ExternalIndex
}
