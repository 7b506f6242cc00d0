package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerAccumulates(t *testing.T) {
	tr := NewTracker()
	tr.AddUse("gpt-x", 100, 20)
	tr.AddUse("gpt-x", 50, 10)
	tr.AddUse("claude-y", 7, 3)

	got := tr.Usage()
	assert.Equal(t, Counts{InputTokens: 150, OutputTokens: 30}, got["gpt-x"])
	assert.Equal(t, Counts{InputTokens: 7, OutputTokens: 3}, got["claude-y"])
}

func TestTrackerConcurrentAdds(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AddUse("m", 1, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, Counts{InputTokens: 50, OutputTokens: 100}, tr.Usage()["m"])
}

func TestUsageReturnsCopy(t *testing.T) {
	tr := NewTracker()
	tr.AddUse("m", 1, 1)
	snapshot := tr.Usage()
	snapshot["m"] = Counts{InputTokens: 999}
	assert.Equal(t, Counts{InputTokens: 1, OutputTokens: 1}, tr.Usage()["m"])
}
