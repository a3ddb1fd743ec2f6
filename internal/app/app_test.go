package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	v1 "github.com/stacklok/toolhive-repo-server/internal/api/v1"
	"github.com/stacklok/toolhive-repo-server/internal/clone"
	clonemocks "github.com/stacklok/toolhive-repo-server/internal/clone/mocks"
	"github.com/stacklok/toolhive-repo-server/internal/git/gittest"
)

func postClone(t *testing.T, baseURL, repositoryURL string) (int, v1.CloneResponse) {
	t.Helper()
	body := fmt.Sprintf(`{"repository_url":%q}`, repositoryURL)
	resp, err := http.Post(baseURL+"/v1/clone", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var ticket v1.CloneResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ticket))
	return resp.StatusCode, ticket
}

func getStatus(t *testing.T, baseURL, operationID string) clone.Status {
	t.Helper()
	resp, err := http.Get(baseURL + "/v1/clone/" + operationID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status clone.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func TestRepoApp_StartWithListener(t *testing.T) {
	t.Parallel()

	app, err := NewRepoApp(context.Background(), WithConfig(createValidTestConfig(t)))
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.StartWithListener(listener)
	}()

	healthURL := fmt.Sprintf("http://%s/health", listener.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRepoApp_StartError_InvalidAddress(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	app := newTestApp(t,
		WithConfig(createValidTestConfig(t)),
		WithAddress(listener.Addr().String()),
	)

	err = app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server failed")
}

func TestRepoApp_StopCancelsRunningClones(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	started := make(chan struct{})
	executor := clonemocks.NewMockExecutor(ctrl)
	executor.EXPECT().Clone(gomock.Any(), "https://example.com/org/slow.git", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ clone.ProgressFunc) (*clone.Result, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	app, err := NewRepoApp(context.Background(),
		WithConfig(createValidTestConfig(t)),
		WithExecutor(executor),
	)
	require.NoError(t, err)

	server := httptest.NewServer(app.GetHTTPServer().Handler)
	defer server.Close()

	code, ticket := postClone(t, server.URL, "https://example.com/org/slow.git")
	require.Equal(t, http.StatusAccepted, code)
	require.True(t, ticket.Enqueued)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("clone did not start")
	}

	require.NoError(t, app.Stop(5*time.Second))

	status, ok := app.GetComponents().CloneCoordinator.TryGetStatus(ticket.OperationID)
	require.True(t, ok)
	assert.Equal(t, clone.StateCanceled, status.State)
	assert.Equal(t, clone.CanceledMessage, status.Message)
}

func TestRepoApp_CloneEndToEnd(t *testing.T) {
	t.Parallel()

	remote := gittest.CreateRemoteRepo(t, "toolhive", gittest.TestRepoConfig{
		Files: map[string]string{"README.md": "# toolhive\n"},
	})

	app := newTestApp(t, WithConfig(createValidTestConfig(t)))
	server := httptest.NewServer(app.GetHTTPServer().Handler)
	defer server.Close()

	code, ticket := postClone(t, server.URL, remote)
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, ticket.OperationID)

	var status clone.Status
	require.Eventually(t, func() bool {
		status = getStatus(t, server.URL, ticket.OperationID)
		return status.State.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, clone.StateCompleted, status.State, status.Message)
	assert.Equal(t, 100, status.Percentage)

	resp, err := http.Get(server.URL + "/v1/repositories")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list v1.RepositoryListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Repositories, 1)
	assert.Equal(t, "toolhive", list.Repositories[0].Name)
	assert.Equal(t, remote, list.Repositories[0].RemoteURL)

	code, again := postClone(t, server.URL, remote+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, again.AlreadyCloned)
	assert.Empty(t, again.OperationID)

	syncResp, err := http.Post(server.URL+"/v1/repositories/toolhive/fetch", "application/json", nil)
	require.NoError(t, err)
	defer syncResp.Body.Close()
	var synced v1.SyncResponse
	require.NoError(t, json.NewDecoder(syncResp.Body).Decode(&synced))
	assert.Equal(t, http.StatusOK, syncResp.StatusCode)
	assert.True(t, synced.UpToDate)
}
