package domain

// RunState is the state of a simulation run.
type RunState string

const (
	RunStateInit     RunState = "init"
	RunStateRunning  RunState = "running"
	RunStateComplete RunState = "complete"
	RunStateAborted  RunState = "aborted"
)

// Terminal reports whether no more trades can be executed.
func (s RunState) Terminal() bool {
	return s == RunStateComplete || s == RunStateAborted
}
