package metadata

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fluxionlabs/fluxion/model"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	for scenario, storage := range map[string]Storage{
		"in memory storage": NewInMemoryStorage(),
		"redis storage":     NewRedisStorage(Config{Addrs: []string{mr.Addr()}, Namespace: "test"}),
	} {
		t.Run(scenario, func(t *testing.T) {
			testRoundTrip(t, storage)
		})
	}
}

func testRoundTrip(t *testing.T, storage Storage) {
	def := model.FlowDefinition{
		ID:           "review-flow",
		StartBlockID: "start",
		Blocks: []model.BlockDefinition{
			{ID: "start", Type: model.BlockCompute, Expression: "1+1", OutputPath: "x", NextBlock: "end"},
			{ID: "end", Type: model.BlockTerminate},
		},
	}
	require.NoError(t, storage.SaveFlowDefinition(def))

	got, err := storage.GetFlowDefinition("review-flow")
	require.NoError(t, err)
	require.Equal(t, def.ID, got.ID)
	require.Len(t, got.Blocks, 2)

	_, err = storage.GetFlowDefinition("missing")
	require.Error(t, err)
	var notFound NotFoundError
	if errors.As(err, &notFound) {
		require.Equal(t, "missing", notFound.FlowID)
	}

	require.NoError(t, storage.DeleteFlowDefinition("review-flow"))
	_, err = storage.GetFlowDefinition("review-flow")
	require.Error(t, err)
}
