package framejob

// Runner is an execution substrate that jobs are submitted to.
//
// Submit must not block on the execution of f, and f must eventually run.
// There's no ordering guarantee between submissions.
type Runner interface {
	Submit(f func())
}

// GoRunner is a Runner that starts a new Goroutine for every submission.
type GoRunner struct{}

// Submit runs f on a new Goroutine.
func (GoRunner) Submit(f func()) {
	go f()
}

// InlineRunner is a Runner that runs f synchronously on the submitting
// Goroutine.
//
// It's useful for debugging and for deterministic tests, but note that it
// breaks the usual guarantee that a job's work body never runs on the
// Goroutine polling it.
type InlineRunner struct{}

// Submit runs f immediately.
func (InlineRunner) Submit(f func()) {
	f()
}

// DefaultRunner is the Runner used by jobs that don't specify their own.
var DefaultRunner Runner = GoRunner{}
