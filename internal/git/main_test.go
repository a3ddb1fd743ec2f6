package git

import (
	"os"
	"testing"

	"github.com/stacklok/toolhive-repo-server/internal/git/gittest"
)

func TestMain(m *testing.M) {
	gittest.InstallInProcessTransport()
	os.Exit(m.Run())
}
