package firecrawl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays a fixed sequence of GetCrawlStatus outcomes.
type scriptedClient struct {
	mu      sync.Mutex
	calls   int
	replies []statusReply
}

type statusReply struct {
	status *CrawlStatusResponse
	err    error
}

func (c *scriptedClient) Crawl(context.Context, CrawlRequest) (*CrawlResponse, error) {
	return &CrawlResponse{Success: true, ID: "crawl-1"}, nil
}

func (c *scriptedClient) GetCrawlStatus(context.Context, string) (*CrawlStatusResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := c.replies[c.calls]
	c.calls++
	return reply.status, reply.err
}

func TestPollCrawl_RecoversFromTransientStatusError(t *testing.T) {
	client := &scriptedClient{replies: []statusReply{
		{err: &APIError{StatusCode: 502, Body: "bad gateway"}},
		{status: &CrawlStatusResponse{Status: "scraping"}},
		{status: &CrawlStatusResponse{Status: "completed", Total: 4}},
	}}

	status, err := PollCrawl(context.Background(), client, "crawl-1",
		WithPollInterval(time.Millisecond), WithPollCap(2*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 4, status.Total)
	assert.Equal(t, 3, client.calls)
}

func TestPollCrawl_ClientErrorAborts(t *testing.T) {
	client := &scriptedClient{replies: []statusReply{
		{err: &APIError{StatusCode: 401, Body: "bad key"}},
	}}

	_, err := PollCrawl(context.Background(), client, "crawl-1",
		WithPollInterval(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Equal(t, 1, client.calls)
}

func TestPollCrawl_FailedCrawl(t *testing.T) {
	client := &scriptedClient{replies: []statusReply{
		{status: &CrawlStatusResponse{Status: "failed"}},
	}}

	_, err := PollCrawl(context.Background(), client, "crawl-1",
		WithPollInterval(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestPollCrawl_TimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := &scriptedClient{replies: make([]statusReply, 64)}
	for i := range client.replies {
		client.replies[i] = statusReply{status: &CrawlStatusResponse{Status: "scraping"}}
	}

	_, err := PollCrawl(ctx, client, "crawl-1",
		WithPollInterval(time.Millisecond), WithPollCap(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
