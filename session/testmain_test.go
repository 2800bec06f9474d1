package session

import (
	"os"
	"testing"

	"go.uber.org/goleak"

	"github.com/tandemhq/tandem-core/logger"
)

func TestMain(m *testing.M) {
	// Disable logging during tests to avoid polluting ~/.tandem/logs
	logger.Reset()
	logger.Init(os.DevNull)

	goleak.VerifyTestMain(m)
}
