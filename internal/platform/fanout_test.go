package platform

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/scan-cli/internal/model"
)

// countingQuerier records peak in-flight concurrency and echoes the prompt
// back so ordering can be verified.
type countingQuerier struct {
	platform model.Platform
	mu       sync.Mutex
	inFlight int
	peak     int
	fail     map[string]bool
	calls    atomic.Int64
}

func (c *countingQuerier) Platform() model.Platform { return c.platform }

func (c *countingQuerier) Query(_ context.Context, req QueryRequest) Result {
	c.calls.Add(1)
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if c.fail[req.Prompt] {
		return Result{Platform: c.platform, Err: "provider error"}
	}
	return Result{Platform: c.platform, Text: "answer to: " + req.Prompt}
}

func makePrompts(n int) []model.Prompt {
	prompts := make([]model.Prompt, n)
	for i := range prompts {
		prompts[i] = model.Prompt{Index: i, Text: fmt.Sprintf("question %d", i)}
	}
	return prompts
}

func TestFanoutQueriesAllPlatformsInOrder(t *testing.T) {
	q1 := &countingQuerier{platform: model.PlatformChatGPT}
	q2 := &countingQuerier{platform: model.PlatformClaude}
	f := NewFanout([]Querier{q1, q2}, 3)

	prompts := makePrompts(7)
	out, err := f.Run(context.Background(), prompts, "")
	require.NoError(t, err)

	require.Len(t, out, 2)
	for _, p := range []model.Platform{model.PlatformChatGPT, model.PlatformClaude} {
		results := out[p]
		require.Len(t, results, 7)
		for i, r := range results {
			assert.Equal(t, fmt.Sprintf("answer to: question %d", i), r.Text)
		}
	}
	assert.EqualValues(t, 7, q1.calls.Load())
	assert.EqualValues(t, 7, q2.calls.Load())
}

func TestFanoutRespectsBatchSize(t *testing.T) {
	q := &countingQuerier{platform: model.PlatformGemini}
	f := NewFanout([]Querier{q}, 3)

	_, err := f.Run(context.Background(), makePrompts(10), "")
	require.NoError(t, err)

	assert.LessOrEqual(t, q.peak, 3)
}

func TestFanoutFailedCallsStayInPlace(t *testing.T) {
	q := &countingQuerier{
		platform: model.PlatformPerplexity,
		fail:     map[string]bool{"question 1": true},
	}
	f := NewFanout([]Querier{q}, 3)

	out, err := f.Run(context.Background(), makePrompts(3), "")
	require.NoError(t, err)

	results := out[model.PlatformPerplexity]
	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.Equal(t, "provider error", results[1].Err)
	assert.True(t, results[2].OK())
}

func TestFanoutEmptyPrompts(t *testing.T) {
	q := &countingQuerier{platform: model.PlatformChatGPT}
	f := NewFanout([]Querier{q}, 3)

	out, err := f.Run(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, out[model.PlatformChatGPT])
	assert.EqualValues(t, 0, q.calls.Load())
}
