package opt

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	// Keep ladder-transition warnings out of test output.
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}
