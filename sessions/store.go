package sessions

import "sync"

// Snapshot is a consistent view of the store at one version
type Snapshot struct {
	Version      uint64
	State        State
	Loading      bool
	LastError    string
	Bootstrapped bool
}

// Reader is the read side of the store handed to observers.
type Reader interface {
	CurrentState() State
	IsLoading() bool
	LastError() string
	Bootstrapped() bool
	Snapshot() Snapshot
	// Subscribe returns a channel that always yields the latest snapshot.
	// Intermediate snapshots may be skipped. The returned func unsubscribes
	// and closes the channel.
	Subscribe() (<-chan Snapshot, func())
}

// Mutation collects the changes applied by Store.Apply
type Mutation struct {
	snap *Snapshot
}

func (m *Mutation) SetState(s State)      { m.snap.State = s }
func (m *Mutation) SetLoading(l bool)     { m.snap.Loading = l }
func (m *Mutation) SetLastError(e string) { m.snap.LastError = e }
func (m *Mutation) ClearLastError()       { m.snap.LastError = "" }
func (m *Mutation) MarkBootstrapped()     { m.snap.Bootstrapped = true }

// Store is the single source of truth for the session state.
// It has one writer and any number of readers.
type Store struct {
	mu          sync.RWMutex
	snap        Snapshot
	subscribers map[uint64]chan Snapshot
	nextSubID   uint64
	onChange    func(Snapshot)
}

var _ Reader = (*Store)(nil)

// NewStore creates a store in the anonymous, not yet bootstrapped state.
// onChange, when set, runs after every mutation while the store lock is held;
// it must not call back into the store.
func NewStore(onChange func(Snapshot)) *Store {
	return &Store{
		snap:        Snapshot{State: AnonymousState()},
		subscribers: make(map[uint64]chan Snapshot),
		onChange:    onChange,
	}
}

func (s *Store) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.State
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Loading
}

func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.LastError
}

func (s *Store) Bootstrapped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Bootstrapped
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, 1)
	ch <- s.snap
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

// Apply runs fn against the current snapshot and publishes the result as one change
func (s *Store) Apply(fn func(*Mutation)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap
	fn(&Mutation{snap: &next})
	next.Version = s.snap.Version + 1
	s.snap = next

	for _, ch := range s.subscribers {
		publishLatest(ch, next)
	}
	if s.onChange != nil {
		s.onChange(next)
	}
	return next
}

func (s *Store) SetState(state State) {
	s.Apply(func(m *Mutation) { m.SetState(state) })
}

func (s *Store) SetLoading(loading bool) {
	s.Apply(func(m *Mutation) { m.SetLoading(loading) })
}

func (s *Store) SetLastError(msg string) {
	s.Apply(func(m *Mutation) { m.SetLastError(msg) })
}

func (s *Store) ClearLastError() {
	s.Apply(func(m *Mutation) { m.ClearLastError() })
}

func (s *Store) MarkBootstrapped() {
	s.Apply(func(m *Mutation) { m.MarkBootstrapped() })
}

// publishLatest replaces whatever the subscriber has not read yet.
// Only Apply sends, under the store lock, so the send after the drain cannot block.
func publishLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
