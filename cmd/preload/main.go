package main

import (
	"fmt"
	"os"

	"github.com/iliamunaev/async-tracker/internal/apperr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "preload:", err)
		os.Exit(apperr.ExitCode(err))
	}
}
