//go:build !unix

package main

import "os"

// shutdownSignals stop the server gracefully.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
