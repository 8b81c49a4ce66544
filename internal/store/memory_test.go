package store_test

import (
	"testing"

	"github.com/danmuck/expertmesh/internal/store"
	"github.com/danmuck/expertmesh/internal/store/storetest"
	"github.com/danmuck/expertmesh/internal/testutil/testlog"
)

func TestMemoryStoreContract(t *testing.T) {
	testlog.Start(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemory()
	})
}
