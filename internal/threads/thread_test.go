package threads

import (
	"fmt"
	"sync"
	"testing"

	"jrdev/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewStoreCreatesDefaultThread(t *testing.T) {
	s := newTestStore(t)
	cur := s.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "main", cur.ID)
}

func TestCreateValidatesName(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateThread("ab")
	assert.Error(t, err, "too short")
	_, err = s.CreateThread("has spaces")
	assert.Error(t, err)
	_, err = s.CreateThread("way-too-long-thread-name-here")
	assert.Error(t, err)

	id, err := s.CreateThread("work_1")
	require.NoError(t, err)
	assert.Equal(t, "work_1", id)

	_, err = s.CreateThread("work_1")
	assert.Error(t, err, "duplicate id")
}

func TestCreateGeneratesID(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateThread("")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, ok := s.Get(id)
	assert.True(t, ok)
}

func TestSwitchAndCurrent(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateThread("other")
	require.NoError(t, err)

	require.NoError(t, s.Switch(id))
	assert.Equal(t, "other", s.Current().ID)
	assert.Error(t, s.Switch("missing"))
}

func TestRenameRules(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateThread("old_name")
	require.NoError(t, err)

	assert.Error(t, s.Rename("old_name", "x"), "name rule")
	assert.Error(t, s.Rename("old_name", "main"), "collision")
	assert.Error(t, s.Rename("missing", "fresh"))

	require.NoError(t, s.Rename("old_name", "new_name"))
	_, ok := s.Get("old_name")
	assert.False(t, ok)
	_, ok = s.Get("new_name")
	assert.True(t, ok)
}

func TestStagedEmbeddedLifecycle(t *testing.T) {
	th := newThread("t1")

	assert.True(t, th.StageFile("a.go"))
	assert.False(t, th.StageFile("a.go"), "already staged")
	assert.True(t, th.StageFile("b.go"))
	assert.Equal(t, []string{"a.go", "b.go"}, th.Staged())

	th.MarkEmbedded([]string{"a.go", "b.go"})
	assert.Empty(t, th.Staged())
	assert.True(t, th.EmbeddedFiles["a.go"])
	assert.False(t, th.StageFile("a.go"), "embedded files are never re-staged")
}

func TestAppendToLastAssistant(t *testing.T) {
	th := newThread("t1")
	th.AppendMessage(llm.RoleUser, "hi")
	th.AppendToLastAssistant("Hel")
	th.AppendToLastAssistant("lo")

	require.Len(t, th.Messages, 2)
	assert.Equal(t, llm.RoleAssistant, th.Messages[1].Role)
	assert.Equal(t, "Hello", th.Messages[1].Content)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	th := s.Current()
	th.AppendMessage(llm.RoleUser, "question")
	th.AppendMessage(llm.RoleAssistant, "answer")
	th.StageFile("main.go")
	require.NoError(t, s.Save(th))

	s2, err := NewStore(dir)
	require.NoError(t, err)
	got, ok := s2.Get(th.ID)
	require.True(t, ok)
	assert.Equal(t, th.Messages, got.Messages)
	assert.Equal(t, []string{"main.go"}, got.Staged())
}

// A background send and the interactive loop share one thread: the send
// appends streamed chunks and moves files to embedded while the user
// stages more files and views the history. Run with -race.
func TestConcurrentSendAndStaging(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	th := s.Current()

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			th.AppendMessage(llm.RoleUser, fmt.Sprintf("prompt %d", i))
			th.AppendToLastAssistant("chunk")
			th.AppendToLastAssistant(" more")
			th.MarkEmbedded([]string{fmt.Sprintf("sent_%d.go", i)})
			require.NoError(t, s.Save(th))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			th.StageFile(fmt.Sprintf("staged_%d.go", i))
			th.Staged()
			th.Embedded()
			th.History()
			th.Stats()
		}
	}()
	wg.Wait()

	msgs, _, embedded := th.Stats()
	assert.Equal(t, 2*rounds, msgs)
	assert.Equal(t, rounds, embedded)
	assert.Len(t, th.Staged(), rounds)
}

func TestListPutsCurrentFirst(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateThread("zzz")
	require.NoError(t, err)
	_, err = s.CreateThread("aaa")
	require.NoError(t, err)

	got := s.List()
	assert.Equal(t, "main", got[0])
	assert.Equal(t, []string{"aaa", "zzz"}, got[1:])
}
