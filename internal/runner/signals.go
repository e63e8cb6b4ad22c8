package runner

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Process hooks, swapped in tests.
var (
	exitProcess   = os.Exit
	notifySignals = func(ch chan<- os.Signal) func() {
		signal.Notify(ch, terminationSignals...)
		return func() { signal.Stop(ch) }
	}
)

// watchSignals tears the session down when the process is interrupted. The
// first signal runs cleanup and exits with 128+signal; a second one exits
// immediately. The returned func stops watching.
func (r *runner) watchSignals() func() {
	sigCh := make(chan os.Signal, 2)
	stopNotify := notifySignals(sigCh)
	done := make(chan struct{})

	var interrupted int32
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigCh:
				code := signalExitCode(sig)
				if !atomic.CompareAndSwapInt32(&interrupted, 0, 1) {
					exitProcess(code)
					continue
				}
				r.signaled.Store(int32(code))
				go r.cleanupAndExit(sig, code)
			}
		}
	}()

	return func() {
		stopNotify()
		close(done)
	}
}

func (r *runner) cleanupAndExit(sig os.Signal, code int) {
	r.logger.Printf("Received %s, cleaning up...", sig)
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := r.coord.Cleanup(ctx); err != nil {
		r.warnf("cleanup incomplete: %v", err)
	}
	r.shutdownTelemetry()
	exitProcess(code)
}

// signalExitCode follows the shell convention of 128 plus the signal number.
func signalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 130
}
