package monitor

import "sync"

// broadcaster fans views out to watchers; each watcher holds only the latest view
type broadcaster struct {
	mu       sync.Mutex
	nextID   int
	watchers map[int]chan View
}

func newBroadcaster() *broadcaster {
	return &broadcaster{watchers: make(map[int]chan View)}
}

func (b *broadcaster) add(initial View) (<-chan View, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan View, 1)
	ch <- initial
	b.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.watchers[id]; ok {
				delete(b.watchers, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) publish(v View) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.watchers {
		select {
		case ch <- v:
		default:
			// replace the stale view
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
