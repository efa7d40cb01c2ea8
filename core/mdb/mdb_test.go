// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package mdb

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// the driver connects lazily, so handle resolution needs no live server

func TestResolveCachesHandles(t *testing.T) {
	resolver := NewResolver("mongodb://localhost:27777")
	defer resolver.Close(context.Background())

	first, err := resolver.Resolve(context.Background(), "tenant-one")
	assert.NoError(t, err)
	again, err := resolver.Resolve(context.Background(), "tenant-one")
	assert.NoError(t, err)
	assert.Same(t, first, again)

	other, err := resolver.Resolve(context.Background(), "tenant-two")
	assert.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, "tenant-one", first.Name())
	assert.Equal(t, "tenant-two", other.Name())
}

func TestResolveConcurrent(t *testing.T) {
	resolver := NewResolver("mongodb://localhost:27777")
	defer resolver.Close(context.Background())

	var wg sync.WaitGroup
	handles := make([]interface{}, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := resolver.Resolve(context.Background(), "tenant")
			assert.NoError(t, err)
			handles[i] = db
		}(i)
	}
	wg.Wait()

	for _, handle := range handles[1:] {
		assert.Same(t, handles[0], handle)
	}
}
