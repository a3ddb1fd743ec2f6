package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-repo-server/internal/api"
	"github.com/stacklok/toolhive-repo-server/internal/clone"
	clonemocks "github.com/stacklok/toolhive-repo-server/internal/clone/mocks"
	repomocks "github.com/stacklok/toolhive-repo-server/internal/repository/mocks"
)

func newMocks(t *testing.T) (*clonemocks.MockCoordinator, *repomocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return clonemocks.NewMockCoordinator(ctrl), repomocks.NewMockService(ctrl)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	coordinator, repos := newMocks(t)
	// No expectations needed - health check doesn't call any service
	server := api.NewServer(coordinator, repos)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readinessErr   error
		expectedStatus int
		expectedKey    string
	}{
		{
			name:           "root accessible",
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
		{
			name:           "root missing",
			readinessErr:   errors.New("repository root is not accessible"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			coordinator, repos := newMocks(t)
			repos.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readinessErr)

			server := api.NewServer(coordinator, repos)
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Contains(t, response, tt.expectedKey)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	coordinator, repos := newMocks(t)
	server := api.NewServer(coordinator, repos)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, key := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.Contains(t, response, key)
	}
}

func TestV1RoutesAreMounted(t *testing.T) {
	t.Parallel()
	coordinator, repos := newMocks(t)
	coordinator.EXPECT().ListClones().Return([]clone.Status{})

	server := api.NewServer(coordinator, repos)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/clone", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"clones":[]}`, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("not served without handler", func(t *testing.T) {
		t.Parallel()
		coordinator, repos := newMocks(t)
		server := api.NewServer(coordinator, repos)

		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("served with handler", func(t *testing.T) {
		t.Parallel()
		coordinator, repos := newMocks(t)
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("thv_repo_srv_clones_in_flight 0\n"))
		})
		server := api.NewServer(coordinator, repos, api.WithMetricsHandler(metrics))

		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "thv_repo_srv_clones_in_flight")
	})
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()
	coordinator, repos := newMocks(t)

	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	server := api.NewServer(coordinator, repos,
		api.WithMiddlewares(middleware.RequestID, tag("first")),
		api.WithMiddlewares(tag("second"), api.LoggingMiddleware),
	)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"first", "second"}, order)
}
