package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	"gopkg.in/yaml.v3"
)

// SplitFrontmatter separates a leading "---" delimited YAML block from the
// body. Content without a closed block is returned whole as the body.
func SplitFrontmatter(content string) (frontmatter, body string) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return "", content
	}

	end := 0
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == 0 {
		return "", content
	}

	return strings.Join(lines[1:end], "\n"), strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
}

// postMeta is the frontmatter accepted on a markdown post file.
type postMeta struct {
	PublishedAt *time.Time        `yaml:"published_at"`
	Engagement  *types.Engagement `yaml:"engagement"`
}

// ParseMarkdownPost reads a published post from a markdown file with
// optional frontmatter. The body is stored as plain text.
func ParseMarkdownPost(content string) (types.HistoricalPost, error) {
	front, body := SplitFrontmatter(content)

	var meta postMeta
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
			return types.HistoricalPost{}, fmt.Errorf("%w: frontmatter: %v", types.ErrValidation, err)
		}
	}

	post := types.HistoricalPost{
		Content:     PlainText(body),
		PublishedAt: meta.PublishedAt,
		Engagement:  meta.Engagement,
	}
	if strings.TrimSpace(post.Content) == "" {
		return types.HistoricalPost{}, fmt.Errorf("%w: post body is empty", types.ErrValidation)
	}
	return post, nil
}
