package memory_test

import (
	"testing"

	"github.com/aretw0/ivrflow/pkg/adapters/memory"
	"github.com/aretw0/ivrflow/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunFlowRepositoryContract(t, store)
}
