package hackernews

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	apiURL    = "https://hn.algolia.com/api/v1"
	itemURL   = "https://news.ycombinator.com/item?id="
	userAgent = "jobkit/jobtailor (job search pipeline)"

	// Max value for hitsPerPage supported by the Algolia API.
	perPage = "100"

	// The Algolia HN endpoint allows roughly 10 requests per second
	// for anonymous clients. Stay well below that.
	requestsPerSecond = 5
)

type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	logger     *zap.Logger
	limiter    *rate.Limiter
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(ctx context.Context, logger *zap.Logger) *Client {
	return &Client{
		ctx:     ctx,
		APIURL:  apiURL,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Search returns normalized job postings from the latest hiring thread
// matching the given params.
func (c *Client) Search(params *SearchParams) (*Jobs, error) {
	return c.search(params)
}
