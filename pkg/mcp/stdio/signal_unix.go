//go:build !windows

package stdio

import "syscall"

// terminateSignal is the graceful-shutdown signal sent before the forced
// kill escalation in Close.
var terminateSignal = syscall.SIGTERM
