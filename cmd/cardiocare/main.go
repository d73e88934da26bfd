// Command cardiocare is the operator CLI of the CardioCare risk server:
// one-off assessments, record maintenance and schema migrations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
