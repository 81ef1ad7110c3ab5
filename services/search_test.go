package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardapp/models"
)

func uintptr2(v uint) *uint { return &v }

func TestSearchBody(t *testing.T) {
	body, err := searchBody(3, "hello")
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(body, &parsed))

	boolQuery := parsed["query"].(map[string]any)["bool"].(map[string]any)
	match := boolQuery["must"].(map[string]any)["match"].(map[string]any)
	term := boolQuery["filter"].(map[string]any)["term"].(map[string]any)

	assert.Equal(t, "hello", match["content"])
	assert.Equal(t, float64(3), term["board_id"])
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	require.NoError(t, index.Index(ctx, &models.Article{
		Lifecycle: models.Lifecycle{ID: 1},
		Title:     "Hi",
		Content:   "Hello world",
		BoardID:   uintptr2(3),
	}))
	require.NoError(t, index.Index(ctx, &models.Article{
		Lifecycle: models.Lifecycle{ID: 2},
		Title:     "Other board",
		Content:   "Hello again",
		BoardID:   uintptr2(4),
	}))

	// Matches are scoped to the requested board.
	ids, err := index.Search(ctx, 3, "hello")
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids)

	ids, err = index.Search(ctx, 3, "absent")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, index.Remove(ctx, 1))
	ids, err = index.Search(ctx, 3, "hello")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
