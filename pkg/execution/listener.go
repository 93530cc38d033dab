package execution

// Listener observes the lifecycle of an Execution.
//
// Both callbacks run synchronously on the dialogue goroutine, in registration order.
// Panics are not recovered.
type Listener interface {
	OnStart(e *Execution)
	OnStop(e *Execution)
}

// Hooks adapts plain functions to the Listener interface. Nil fields are skipped.
type Hooks struct {
	Start func(e *Execution)
	Stop  func(e *Execution)
}

func (h Hooks) OnStart(e *Execution) {
	if h.Start != nil {
		h.Start(e)
	}
}

func (h Hooks) OnStop(e *Execution) {
	if h.Stop != nil {
		h.Stop(e)
	}
}

// AddListener registers l. Listeners added after the execution finished are never called.
func (e *Execution) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Copy-on-write: notification iterates a snapshot without holding the lock.
	next := make([]Listener, len(e.listeners), len(e.listeners)+1)
	copy(next, e.listeners)
	e.listeners = append(next, l)
}

func (e *Execution) listenerSnapshot() []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listeners
}

func (e *Execution) notifyStart() {
	for _, l := range e.listenerSnapshot() {
		l.OnStart(e)
	}
}

func (e *Execution) notifyStop() {
	for _, l := range e.listenerSnapshot() {
		l.OnStop(e)
	}
}
