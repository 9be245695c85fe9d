package memory_test

import (
	"testing"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/content/memory"
	storetest "github.com/marmos91/dittodrive/pkg/store/content/testing"
)

func TestMemoryContentStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func() content.ContentStore {
			return memory.NewMemoryContentStore()
		},
	}
	suite.Run(t)
}
