package draft

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the saver waits after the last change.
const DefaultDebounce = 500 * time.Millisecond

type pending struct {
	draft *Draft
	timer *time.Timer
	gen   uint64
}

// Saver coalesces rapid draft updates: every Schedule restarts the timer
// for its key and only the last draft in the window reaches the store.
type Saver struct {
	store   Store
	delay   time.Duration
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	saved   *sync.Cond // signalled when an in-flight save finishes
	pending map[Key]*pending
	saving  map[Key]int
	gen     uint64
}

func NewSaver(store Store, delay time.Duration, log zerolog.Logger) *Saver {
	s := &Saver{
		store:   store,
		delay:   delay,
		timeout: 5 * time.Second,
		log:     log,
		pending: map[Key]*pending{},
		saving:  map[Key]int{},
	}
	s.saved = sync.NewCond(&s.mu)
	return s
}

// Schedule queues d to be saved under key after the debounce delay.
func (s *Saver) Schedule(key Key, d *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending[key] = &pending{
		draft: d,
		gen:   gen,
		timer: time.AfterFunc(s.delay, func() { s.fire(key, gen) }),
	}
}

// Pending returns the draft waiting to be saved for key.
func (s *Saver) Pending(key Key) (*Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return nil, false
	}
	return p.draft, true
}

// Flush saves the pending draft of key immediately.
func (s *Saver) Flush(ctx context.Context, key Key) error {
	p := s.take(key, 0, true)
	if p == nil {
		return nil
	}
	defer s.done(key)
	return s.store.Save(ctx, key, p.draft)
}

// Cancel drops the pending draft of key without saving it and waits for
// saves of key that already started, so a following delete is final.
func (s *Saver) Cancel(key Key) {
	s.take(key, 0, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.saving[key] > 0 {
		s.saved.Wait()
	}
}

// Stop saves every pending draft. It is called on shutdown.
func (s *Saver) Stop(ctx context.Context) {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.pending))
	for key := range s.pending {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		if err := s.Flush(ctx, key); err != nil {
			s.log.Error().Err(err).Str("key", key.String()).Msg("failed to flush draft on shutdown")
		}
	}
}

func (s *Saver) fire(key Key, gen uint64) {
	p := s.take(key, gen, true)
	if p == nil {
		return
	}
	defer s.done(key)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.Save(ctx, key, p.draft); err != nil {
		s.log.Error().Err(err).Str("key", key.String()).Msg("failed to save draft")
	}
}

// take removes the pending entry of key. A non-zero gen only matches the
// entry scheduled with it, so a timer that lost the race to a newer
// Schedule does nothing. With save set, the key counts as being saved
// until done is called.
func (s *Saver) take(key Key, gen uint64, save bool) *pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok || (gen != 0 && p.gen != gen) {
		return nil
	}
	p.timer.Stop()
	delete(s.pending, key)
	if save {
		s.saving[key]++
	}
	return p
}

func (s *Saver) done(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving[key]--; s.saving[key] <= 0 {
		delete(s.saving, key)
	}
	s.saved.Broadcast()
}
