//go:build cgo

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "brandium.db"))
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// =============================================================================
// Posts
// =============================================================================

func TestStore_Posts(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	n, err := s.SavePosts(ctx, []types.HistoricalPost{
		{Content: "Oldest post", PublishedAt: date(2024, 1, 1)},
		{Content: "Undated post"},
		{Content: "Newest post", PublishedAt: date(2024, 6, 1), Engagement: &types.Engagement{Likes: 40, Comments: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := s.CountPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	posts, err := s.ListPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, "Newest post", posts[0].Content)
	require.NotNil(t, posts[0].Engagement)
	assert.Equal(t, 40, posts[0].Engagement.Likes)
	assert.True(t, posts[0].PublishedAt.Equal(*date(2024, 6, 1)))

	assert.Equal(t, "Oldest post", posts[1].Content)
	assert.Nil(t, posts[1].Engagement)

	assert.Equal(t, "Undated post", posts[2].Content)
	assert.Nil(t, posts[2].PublishedAt)
}

func TestStore_ListPostsLimit(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.SavePosts(ctx, []types.HistoricalPost{{Content: "a"}, {Content: "b"}, {Content: "c"}})
	require.NoError(t, err)

	posts, err := s.ListPosts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestStore_EmptyPosts(t *testing.T) {
	posts, err := setupTestStore(t).ListPosts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
}

// =============================================================================
// Templates
// =============================================================================

func TestStore_Templates(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	def := types.TemplateDefinition{
		Name:    "lesson",
		Content: "Today I learned {{lesson}}. {{cta}}",
		Variables: []types.VariableSpec{
			{Name: "lesson", Required: true},
			{Name: "cta", DefaultValue: "Thoughts?"},
		},
	}
	require.NoError(t, s.SaveTemplate(ctx, def))

	got, err := s.GetTemplate(ctx, "lesson")
	require.NoError(t, err)
	assert.Equal(t, def, *got)

	def.Content = "Updated {{lesson}}"
	require.NoError(t, s.SaveTemplate(ctx, def))
	got, err = s.GetTemplate(ctx, "lesson")
	require.NoError(t, err)
	assert.Equal(t, "Updated {{lesson}}", got.Content)

	require.NoError(t, s.SaveTemplate(ctx, types.TemplateDefinition{Name: "announce", Content: "No variables"}))
	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "announce", list[0].Name)
	assert.Empty(t, list[0].Variables)
	assert.Equal(t, "lesson", list[1].Name)

	require.NoError(t, s.DeleteTemplate(ctx, "lesson"))
	_, err = s.GetTemplate(ctx, "lesson")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, "lesson"), ErrNotFound)
}

func TestStore_SaveTemplateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	tests := []struct {
		name string
		def  types.TemplateDefinition
	}{
		{name: "missing name", def: types.TemplateDefinition{Content: "x"}},
		{name: "undeclared variable", def: types.TemplateDefinition{Name: "t", Content: "{{ghost}}"}},
		{name: "invalid variable name", def: types.TemplateDefinition{Name: "t", Content: "x", Variables: []types.VariableSpec{{Name: "bad name"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.SaveTemplate(ctx, tt.def), types.ErrValidation)
		})
	}

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// =============================================================================
// Generations
// =============================================================================

func TestStore_Generations(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	for _, text := range []string{"first", "second"} {
		_, err := s.SaveGeneration(ctx, "generate", "idea", types.GenerationResult{
			Text:  text,
			Model: "gpt-4o-mini",
			Usage: types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
		require.NoError(t, err)
	}

	records, err := s.RecentGenerations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Result.Text)
	assert.Equal(t, 15, records[0].Result.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", records[1].Result.Model)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SavePosts(context.Background(), []types.HistoricalPost{{Content: "x"}})
	require.NoError(t, err)
	n, err := s.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
