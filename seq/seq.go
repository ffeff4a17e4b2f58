// Package seq runs a group of dependent test steps in order: once a step
// fails, every later step is skipped outright instead of producing a cascade
// of misleading downstream failures.
package seq

import (
	"context"
	"fmt"
)

// State of one step in a group.
type State int

const (
	Pending State = iota
	Running
	Passed
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	case Skipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Step is one unit in a group. Its body never runs once an earlier step has
// failed.
type Step struct {
	Name  string
	state State
	note  string
	err   error
	fn    func(context.Context) error
}

func (s *Step) State() State { return s.state }

// Note explains a skip, naming the step that caused it.
func (s *Step) Note() string { return s.note }

func (s *Step) Err() error { return s.err }

// Group is an ordered sequence of steps sharing the skip-cascade discipline.
// It is shared mutable state scoped to one run; there is no recovery path
// once a step has failed.
type Group struct {
	Name   string
	steps  []*Step
	failed *Step
}

func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// Add appends a step. Steps run in the order they were added.
func (g *Group) Add(name string, fn func(context.Context) error) *Step {
	step := &Step{Name: name, state: Pending, fn: fn}
	g.steps = append(g.steps, step)
	return step
}

// Steps returns the group's steps with their current states.
func (g *Group) Steps() []*Step { return g.steps }

// Failed returns the step that broke the group, if any.
func (g *Group) Failed() *Step { return g.failed }

// Run executes the steps in order. The first failure flips the group: every
// remaining pending step transitions straight to Skipped without its body
// ever running. Returns the first failure, or nil when every step passed.
func (g *Group) Run(ctx context.Context) error {
	for _, step := range g.steps {
		if step.state != Pending {
			continue
		}
		if g.failed != nil {
			step.state = Skipped
			step.note = fmt.Sprintf("previous step failed (%s)", g.failed.Name)
			continue
		}

		step.state = Running
		err := step.fn(ctx)
		if err != nil {
			step.state = Failed
			step.err = err
			g.failed = step
			continue
		}
		step.state = Passed
	}

	if g.failed != nil {
		return fmt.Errorf("step %q failed: %w", g.failed.Name, g.failed.err)
	}
	return nil
}
