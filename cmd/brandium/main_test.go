package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/llm"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/ratelimit"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVars(t *testing.T) {
	values, err := parseVars([]string{"topic=Go", "cta=What do you think?", "empty=", "topic=Rust"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"topic": "Rust", "cta": "What do you think?", "empty": ""}, values)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseVars([]string{bad})
		assert.ErrorIs(t, err, types.ErrValidation, bad)
	}
}

func TestTemplateNameFromPath(t *testing.T) {
	assert.Equal(t, "lesson", templateNameFromPath("templates/lesson.yaml"))
	assert.Equal(t, "plain", templateNameFromPath("plain"))
	assert.Equal(t, ".hidden", templateNameFromPath("dir/.hidden"))
}

func TestLoadBrief(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profile:
  name: Ada
  tone_tags: [direct, warm]
platform:
  name: LinkedIn
  max_length: 3000
`), 0644))

	brief, err := loadBrief(path)
	require.NoError(t, err)
	require.NotNil(t, brief.Profile)
	assert.Equal(t, []string{"direct", "warm"}, brief.Profile.ToneTags)
	assert.Nil(t, brief.Project)
	assert.Equal(t, 3000, brief.Platform.MaxLength)

	empty, err := loadBrief("")
	require.NoError(t, err)
	assert.Nil(t, empty.Profile)
}

func TestLoadPosts(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "posts.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- content: First post with enough words to count
  published_at: 2024-03-01
- content: Second post with enough words to count
  engagement:
    likes: 5
`), 0644))

	posts, err := loadPosts(yamlPath)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.NotNil(t, posts[0].PublishedAt)
	assert.Equal(t, 5, posts[1].Engagement.Likes)

	mdDir := filepath.Join(dir, "md")
	require.NoError(t, os.Mkdir(mdDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(mdDir, "a.md"), []byte("---\npublished_at: 2024-01-02\n---\nHello **world**"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(mdDir, "notes.txt"), []byte("ignored"), 0644))

	posts, err = loadPosts(mdDir)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello world", posts[0].Content)
}

func TestDescribeError(t *testing.T) {
	exceeded := &ratelimit.ExceededError{RetryAfter: 12 * time.Second}
	assert.Equal(t, "Rate limit reached. Retry in 12s.", describeError(exceeded))

	badKey := llm.StatusError("openai", 401, "", "bad key")
	assert.Contains(t, describeError(badKey), "providers.openai.api_key")

	plain := errors.New("boom")
	assert.Equal(t, "boom", describeError(plain))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\t c", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
