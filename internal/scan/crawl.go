package scan

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/brandlens/scan-cli/pkg/firecrawl"
)

// maxCombinedChars caps the flattened site corpus handed to site analysis.
const maxCombinedChars = 120000

// Crawler fetches an entity's site and flattens it into one markdown corpus.
type Crawler interface {
	Fetch(ctx context.Context, domain string) (content string, pages int, err error)
}

type siteCrawler struct {
	client   firecrawl.Client
	maxPages int
	maxDepth int
}

// NewSiteCrawler builds a Crawler on top of the Firecrawl API.
func NewSiteCrawler(client firecrawl.Client, maxPages, maxDepth int) Crawler {
	return &siteCrawler{client: client, maxPages: maxPages, maxDepth: maxDepth}
}

func (c *siteCrawler) Fetch(ctx context.Context, domain string) (string, int, error) {
	url := domain
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	resp, err := c.client.Crawl(ctx, firecrawl.CrawlRequest{
		URL:      url,
		MaxDepth: c.maxDepth,
		Limit:    c.maxPages,
	})
	if err != nil {
		return "", 0, eris.Wrap(err, "scan: start site crawl")
	}

	status, err := firecrawl.PollCrawl(ctx, c.client, resp.ID)
	if err != nil {
		return "", 0, eris.Wrap(err, "scan: poll site crawl")
	}

	return firecrawl.CombinePages(status.Data, maxCombinedChars), len(status.Data), nil
}
