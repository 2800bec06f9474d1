package process

import (
	"os"
	"testing"

	"github.com/tandemhq/tandem-core/logger"
)

func TestMain(m *testing.M) {
	// Disable logging during tests to avoid polluting ~/.tandem/logs
	logger.Reset()
	logger.Init(os.DevNull)

	code := m.Run()

	logger.Reset()
	os.Exit(code)
}
