package memorykv

import (
	"testing"

	"github.com/ledgerstate/ledgerstate/internal/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, New())
}
