//go:build windows

package stdio

import "os"

// terminateSignal falls back to Kill on windows, which has no SIGTERM.
var terminateSignal = os.Kill
