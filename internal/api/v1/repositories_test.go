package v1_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	v1 "github.com/stacklok/toolhive-repo-server/internal/api/v1"
	"github.com/stacklok/toolhive-repo-server/internal/git"
	"github.com/stacklok/toolhive-repo-server/internal/repository"
	repomocks "github.com/stacklok/toolhive-repo-server/internal/repository/mocks"
)

func TestListRepositories(t *testing.T) {
	t.Parallel()

	t.Run("lists clones", func(t *testing.T) {
		t.Parallel()
		router, _, repos := newRouter(t)
		repos.EXPECT().ListRepositories(gomock.Any()).Return([]repository.Repository{
			{Name: "toolhive", Path: "/data/repos/toolhive", RemoteURL: "https://github.com/stacklok/toolhive.git"},
		}, nil)

		rr := serve(router, http.MethodGet, "/repositories", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"repositories":[{
			"name":"toolhive",
			"path":"/data/repos/toolhive",
			"remote_url":"https://github.com/stacklok/toolhive.git"
		}]}`, rr.Body.String())
	})

	t.Run("empty root", func(t *testing.T) {
		t.Parallel()
		router, _, repos := newRouter(t)
		repos.EXPECT().ListRepositories(gomock.Any()).Return(nil, nil)

		rr := serve(router, http.MethodGet, "/repositories", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"repositories":[]}`, rr.Body.String())
	})

	t.Run("filters by name", func(t *testing.T) {
		t.Parallel()
		router, _, repos := newRouter(t)
		repos.EXPECT().ListRepositories(gomock.Any()).Return([]repository.Repository{
			{Name: "minder"},
			{Name: "toolhive"},
			{Name: "toolhive-legacy"},
			{Name: "toolhive-registry"},
		}, nil)

		rr := serve(router, http.MethodGet, "/repositories?include=toolhive*&exclude=*-legacy", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp v1.RepositoryListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		names := make([]string, 0, len(resp.Repositories))
		for _, repo := range resp.Repositories {
			names = append(names, repo.Name)
		}
		assert.Equal(t, []string{"toolhive", "toolhive-registry"}, names)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newRouter(t)

		rr := serve(router, http.MethodGet, "/repositories?include=%5Bunclosed", "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, errorMessage(t, rr), "invalid include pattern")
	})

	t.Run("listing fails", func(t *testing.T) {
		t.Parallel()
		router, _, repos := newRouter(t)
		repos.EXPECT().ListRepositories(gomock.Any()).Return(nil, errors.New("permission denied"))

		rr := serve(router, http.MethodGet, "/repositories", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Failed to list repositories", errorMessage(t, rr))
	})
}

func TestGetRepository(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupMock      func(*repomocks.MockService)
		expectedStatus int
	}{
		{
			name: "found",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Get(gomock.Any(), "toolhive").
					Return(&repository.Repository{Name: "toolhive", Path: "/data/repos/toolhive"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not found",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Get(gomock.Any(), "toolhive").
					Return(nil, fmt.Errorf("%w: toolhive", repository.ErrRepositoryNotFound))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "invalid name",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Get(gomock.Any(), "toolhive").
					Return(nil, repository.ErrInvalidRepositoryName)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "inspection fails",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Get(gomock.Any(), "toolhive").Return(nil, errors.New("corrupt index"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router, _, repos := newRouter(t)
			tt.setupMock(repos)

			rr := serve(router, http.MethodGet, "/repositories/toolhive", "")

			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestSyncRepository(t *testing.T) {
	t.Parallel()

	tests := []struct {
		operation      string
		setupMock      func(*repomocks.MockService)
		expectedStatus int
		expected       *v1.SyncResponse
	}{
		{
			operation: "fetch",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Fetch(gomock.Any(), "toolhive").Return(&git.SyncResult{UpToDate: true, Head: "abc"}, nil)
			},
			expectedStatus: http.StatusOK,
			expected:       &v1.SyncResponse{Repository: "toolhive", Operation: "fetch", UpToDate: true, Head: "abc"},
		},
		{
			operation: "pull",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Pull(gomock.Any(), "toolhive").Return(&git.SyncResult{Head: "def"}, nil)
			},
			expectedStatus: http.StatusOK,
			expected:       &v1.SyncResponse{Repository: "toolhive", Operation: "pull", Head: "def"},
		},
		{
			operation: "push",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Push(gomock.Any(), "toolhive").Return(&git.SyncResult{UpToDate: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expected:       &v1.SyncResponse{Repository: "toolhive", Operation: "push", UpToDate: true},
		},
		{
			operation: "pull",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Pull(gomock.Any(), "toolhive").
					Return(nil, fmt.Errorf("%w: toolhive", repository.ErrRepositoryNotFound))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			operation: "push",
			setupMock: func(m *repomocks.MockService) {
				m.EXPECT().Push(gomock.Any(), "toolhive").
					Return(nil, errors.New("failed to push repository: non-fast-forward update"))
			},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %d", tt.operation, tt.expectedStatus), func(t *testing.T) {
			t.Parallel()
			router, _, repos := newRouter(t)
			tt.setupMock(repos)

			rr := serve(router, http.MethodPost, "/repositories/toolhive/"+tt.operation, "")

			require.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expected != nil {
				var resp v1.SyncResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, *tt.expected, resp)
			}
		})
	}
}
