package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/loomworks/loom/internal/types"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto stable exit codes so scripts and
// agents can branch without parsing messages.
func exitCode(err error) int {
	var (
		notFound  *types.NotFoundError
		cycle     *types.CycleError
		lock      *types.LockError
		collision *types.CollisionError
		corrupt   *types.CorruptDataError
	)
	switch {
	case errors.As(err, &notFound):
		return 2
	case errors.As(err, &cycle):
		return 3
	case errors.As(err, &lock):
		return 4
	case errors.As(err, &collision):
		return 5
	case errors.As(err, &corrupt):
		return 6
	}
	return 1
}
