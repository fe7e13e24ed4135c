// Package app defines the runtime contract shared by the executable
// entrypoints (the crowdfund service and its migration runner).
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
