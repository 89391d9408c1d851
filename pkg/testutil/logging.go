package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func init() {
	var isVerbose bool
	for _, arg := range os.Args {
		if arg == "-test.v=true" {
			isVerbose = true
		}
	}

	logrus.SetLevel(logrus.TraceLevel)

	if !isVerbose {
		logrus.StandardLogger().Out = io.Discard
	}
}

// CaptureLogs records every entry written to the standard logger until the
// returned reset func is called.
func CaptureLogs() (*test.Hook, func()) {
	hook := test.NewLocal(logrus.StandardLogger())
	return hook, func() {
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	}
}
