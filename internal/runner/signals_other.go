//go:build !unix

package runner

import "os"

var terminationSignals = []os.Signal{os.Interrupt}
