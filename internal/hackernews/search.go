package hackernews

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	SearchPath = "/search_by_date"

	// The monthly hiring threads are posted by this account.
	hiringAuthor = "whoishiring"
	hiringTitle  = "who is hiring"

	defaultLimit = 50
)

type SearchParams struct {
	Terms    []string `yaml:"terms"`
	Location string   `yaml:"location"`
	// StoryID pins the search to a specific hiring thread. When empty the
	// latest "Ask HN: Who is hiring?" story is used.
	StoryID string `yaml:"story_id" mapstructure:"story_id"`
	Limit   int    `yaml:"limit"`
}

// Story is a submission returned by the Algolia story search.
type Story struct {
	ID        string `json:"objectID" mapstructure:"objectID"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at" mapstructure:"created_at"`
}

// Comment is a raw comment hit from the Algolia API.
type Comment struct {
	ID        string `json:"objectID" mapstructure:"objectID"`
	Author    string `json:"author"`
	Text      string `json:"comment_text" mapstructure:"comment_text"`
	CreatedAt string `json:"created_at" mapstructure:"created_at"`
	ParentID  int64  `json:"parent_id" mapstructure:"parent_id"`
	StoryID   int64  `json:"story_id" mapstructure:"story_id"`
}

func (c *Client) search(params *SearchParams) (*Jobs, error) {
	storyID := strings.TrimSpace(params.StoryID)
	if storyID == "" {
		story, err := c.LatestHiringStory()
		if err != nil {
			return nil, fmt.Errorf("find hiring story: %w", err)
		}
		storyID = story.ID
	}

	comments, err := c.getStoryComments(storyID)
	if err != nil {
		return nil, fmt.Errorf("get story comments: %w", err)
	}

	parent, err := strconv.ParseInt(storyID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid story id %q: %w", storyID, err)
	}

	jobs := &Jobs{}
	for _, comment := range comments {
		// Replies to postings are discussion, not postings.
		if comment.ParentID != parent {
			continue
		}
		if job := comment.Job(); job != nil {
			jobs.Items = append(jobs.Items, job)
		}
	}

	jobs.Dedupe()

	if len(params.Terms) > 0 {
		jobs = jobs.MatchingTerms(params.Terms)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	return jobs.Take(limit), nil
}

// LatestHiringStory returns the most recent "Ask HN: Who is hiring?" submission.
func (c *Client) LatestHiringStory() (*Story, error) {
	q := url.Values{}
	q.Set("query", "Ask HN: Who is hiring?")
	q.Set("tags", fmt.Sprintf("story,author_%s", hiringAuthor))
	q.Set("hitsPerPage", "10")

	apiURLSearch := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	items, err := c.GetItems(apiURLSearch, q)
	if err != nil {
		return nil, err
	}

	stories, err := decodeItems[*Story](items)
	if err != nil {
		return nil, err
	}

	for _, story := range stories {
		if strings.Contains(strings.ToLower(story.Title), hiringTitle) {
			return story, nil
		}
	}

	return nil, fmt.Errorf("no hiring story found among %d stories", len(stories))
}

func (c *Client) getStoryComments(storyID string) ([]*Comment, error) {
	q := url.Values{}
	q.Set("tags", fmt.Sprintf("comment,story_%s", storyID))
	q.Set("hitsPerPage", perPage)

	apiURLSearch := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	items, err := c.GetItems(apiURLSearch, q)
	if err != nil {
		return nil, err
	}

	return decodeItems[*Comment](items)
}

// decodeItems converts loosely typed API hits into the requested type. Numeric
// ids arrive as float64, hence the weakly typed decoder.
func decodeItems[T any](items []Item) ([]T, error) {
	var result []T

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &result,
		TagName:          "json",
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, err
	}

	return result, nil
}
