package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// confirmRequestMsg asks the user whether a batch should load. Exactly one
// value must be sent on reply.
type confirmRequestMsg struct {
	count int
	reply chan<- bool
}

// progressMsg reports batch progress.
type progressMsg struct {
	current, total int
}

// Bridge carries loader callbacks, which run on worker goroutines, into the
// Bubble Tea event loop. Pass Confirm and Progress to session.Config and the
// Bridge to Config.
type Bridge struct {
	events chan tea.Msg
}

// NewBridge creates a Bridge.
func NewBridge() *Bridge {
	return &Bridge{events: make(chan tea.Msg, 64)}
}

// Confirm blocks until the user answers the modal or ctx ends.
func (b *Bridge) Confirm(ctx context.Context, count int) (bool, error) {
	reply := make(chan bool, 1)
	select {
	case b.events <- confirmRequestMsg{count: count, reply: reply}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Progress forwards batch progress. Updates are dropped when the UI is
// behind; the next one supersedes them anyway.
func (b *Bridge) Progress(current, total int) {
	select {
	case b.events <- progressMsg{current: current, total: total}:
	default:
	}
}

// wait returns a command delivering the next bridged message.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.events
	}
}
