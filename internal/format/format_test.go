package format

import (
	"testing"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PlainText Tests
// =============================================================================

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "Shipping beats polishing.",
			want:  "Shipping beats polishing.",
		},
		{
			name:  "emphasis markers removed",
			input: "This is **bold** and _quiet_ and `code`.",
			want:  "This is bold and quiet and code.",
		},
		{
			name:  "heading marks removed",
			input: "# Lessons\n\nThree of them.",
			want:  "Lessons\n\nThree of them.",
		},
		{
			name:  "soft line breaks kept",
			input: "Line one\nLine two",
			want:  "Line one\nLine two",
		},
		{
			name:  "bullet list",
			input: "Intro\n\n* one\n* two\n\nOutro",
			want:  "Intro\n\n- one\n- two\n\nOutro",
		},
		{
			name:  "ordered list keeps numbering",
			input: "3. three\n4. four",
			want:  "3. three\n4. four",
		},
		{
			name:  "nested list indented",
			input: "- a\n  - b\n- c",
			want:  "- a\n  - b\n- c",
		},
		{
			name:  "link shows destination",
			input: "Read [the post](https://example.com/p).",
			want:  "Read the post (https://example.com/p).",
		},
		{
			name:  "autolink",
			input: "See <https://example.com>",
			want:  "See https://example.com",
		},
		{
			name:  "fenced code keeps content",
			input: "```go\nfmt.Println(1)\n```",
			want:  "fmt.Println(1)",
		},
		{
			name:  "inline html dropped",
			input: "Hello <b>there</b>",
			want:  "Hello there",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.input))
		})
	}
}

// =============================================================================
// Frontmatter Tests
// =============================================================================

func TestSplitFrontmatter(t *testing.T) {
	t.Run("with frontmatter", func(t *testing.T) {
		front, body := SplitFrontmatter("---\npublished_at: 2024-05-01\n---\n\nBody text\n")
		assert.Equal(t, "published_at: 2024-05-01", front)
		assert.Equal(t, "Body text", body)
	})

	t.Run("without frontmatter", func(t *testing.T) {
		front, body := SplitFrontmatter("Just a body")
		assert.Empty(t, front)
		assert.Equal(t, "Just a body", body)
	})

	t.Run("unclosed block is body", func(t *testing.T) {
		content := "---\nkey: value\nno end"
		front, body := SplitFrontmatter(content)
		assert.Empty(t, front)
		assert.Equal(t, content, body)
	})
}

func TestParseMarkdownPost(t *testing.T) {
	post, err := ParseMarkdownPost("---\npublished_at: 2024-05-01\nengagement:\n  likes: 12\n  comments: 3\n---\n\nWe shipped **v2** today.\n")
	require.NoError(t, err)

	assert.Equal(t, "We shipped v2 today.", post.Content)
	require.NotNil(t, post.PublishedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), post.PublishedAt.UTC())
	require.NotNil(t, post.Engagement)
	assert.Equal(t, 12, post.Engagement.Likes)
	assert.Equal(t, 3, post.Engagement.Comments)
}

func TestParseMarkdownPost_Errors(t *testing.T) {
	_, err := ParseMarkdownPost("---\nengagement: [\n---\nbody")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = ParseMarkdownPost("---\nengagement:\n  likes: 1\n---\n")
	assert.ErrorIs(t, err, types.ErrValidation)
}
