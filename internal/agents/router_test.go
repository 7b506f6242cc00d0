package agents

import (
	"context"
	"testing"

	"jrdev/internal/threads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouterFixture(t *testing.T, routerResp string) (*Router, *threads.Store) {
	t.Helper()
	store, err := threads.NewStore(t.TempDir())
	require.NoError(t, err)

	transport := &scriptedTransport{responses: map[string]string{
		"intent router": routerResp,
	}}
	catalogue := []CommandInfo{
		{Name: "/code", Summary: "apply a code change"},
		{Name: "/cost", Summary: "show session cost"},
	}
	r, err := NewRouter(transport, testProfiles{}, store, catalogue, "w1")
	require.NoError(t, err)
	return r, store
}

func TestRouterExecuteCommand(t *testing.T) {
	r, store := newRouterFixture(t,
		"```json\n{\"decision\":\"execute_command\",\"command\":\"/code\",\"args\":[\"add\",\"logging\"]}\n```")

	d, err := r.Route(context.Background(), "please add logging", store.Current())
	require.NoError(t, err)
	assert.Equal(t, DecideExecute, d.Kind)
	assert.Equal(t, "/code add logging", d.CommandLine)
}

func TestRouterClarifyLeavesUserThreadUntouched(t *testing.T) {
	r, store := newRouterFixture(t,
		"```json\n{\"decision\":\"clarify\",\"question\":\"Which file?\"}\n```")

	user := store.Current()
	before := len(user.Messages)

	d, err := r.Route(context.Background(), "change it", user)
	require.NoError(t, err)
	assert.Equal(t, DecideClarify, d.Kind)
	assert.Equal(t, "Which file?", d.Question)
	assert.Len(t, user.Messages, before, "clarify must not touch the user thread")

	// The exchange still lands in the router's private history.
	private, ok := store.Get(routerThreadID)
	require.True(t, ok)
	assert.Len(t, private.Messages, 2)
}

func TestRouterChatAppendsToUserThread(t *testing.T) {
	r, store := newRouterFixture(t,
		"```json\n{\"decision\":\"chat\",\"response\":\"It is a tool.\"}\n```")

	user := store.Current()
	d, err := r.Route(context.Background(), "what is jrdev", user)
	require.NoError(t, err)
	assert.Equal(t, DecideChat, d.Kind)
	assert.Equal(t, "It is a tool.", d.Response)

	require.Len(t, user.Messages, 2)
	assert.Equal(t, "what is jrdev", user.Messages[0].Content)
	assert.Equal(t, "It is a tool.", user.Messages[1].Content)
}

func TestRouterUnparseableResponseDegradesToChat(t *testing.T) {
	r, store := newRouterFixture(t, "plain prose with no JSON at all")

	d, err := r.Route(context.Background(), "hello", store.Current())
	require.NoError(t, err)
	assert.Equal(t, DecideChat, d.Kind)
	assert.Equal(t, "plain prose with no JSON at all", d.Response)
}

func TestRouterPrivateThreadSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := threads.NewStore(dir)
	require.NoError(t, err)
	transport := &scriptedTransport{responses: map[string]string{
		"intent router": "```json\n{\"decision\":\"clarify\",\"question\":\"hm?\"}\n```",
	}}
	r, err := NewRouter(transport, testProfiles{}, store, nil, "w1")
	require.NoError(t, err)
	_, err = r.Route(context.Background(), "vague", store.Current())
	require.NoError(t, err)

	store2, err := threads.NewStore(dir)
	require.NoError(t, err)
	private, ok := store2.Get(routerThreadID)
	require.True(t, ok)
	assert.Len(t, private.Messages, 2)
}
