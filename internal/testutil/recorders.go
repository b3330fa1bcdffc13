package testutil

import (
	"context"
	"sync"
)

// Notice is one recorded notification.
type Notice struct {
	Kind    string
	Message string
}

// Notifier records Success and Error calls.
type Notifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *Notifier) Success(msg string) { n.add("success", msg) }
func (n *Notifier) Error(msg string)   { n.add("error", msg) }

func (n *Notifier) add(kind, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{Kind: kind, Message: msg})
}

// Notices returns a copy of everything recorded.
func (n *Notifier) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// Errors returns the messages of recorded error notifications.
func (n *Notifier) Errors() []string {
	return n.messages("error")
}

// Successes returns the messages of recorded success notifications.
func (n *Notifier) Successes() []string {
	return n.messages("success")
}

func (n *Notifier) messages(kind string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.notices {
		if x.Kind == kind {
			out = append(out, x.Message)
		}
	}
	return out
}

// Navigator records navigation requests.
type Navigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns the recorded paths in order.
func (n *Navigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// Remembered is an in-memory remembered-topology slot.
type Remembered struct {
	mu sync.Mutex
	id int
}

// NewRemembered returns a slot holding id.
func NewRemembered(id int) *Remembered {
	return &Remembered{id: id}
}

func (r *Remembered) ActiveTopology(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id, nil
}

func (r *Remembered) SetActiveTopology(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	return nil
}

func (r *Remembered) ClearActiveTopology(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = 0
	return nil
}

// ID returns the remembered id without a context.
func (r *Remembered) ID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}
