package track

type listener struct {
	id int
	fn func(Metadata)
}

// listeners is an ordered set of synchronous metadata callbacks
type listeners struct {
	nextID int
	list   []listener
}

func (l *listeners) add(fn func(Metadata)) func() {
	l.nextID++
	id := l.nextID
	l.list = append(l.list, listener{id: id, fn: fn})
	return func() { l.remove(id) }
}

func (l *listeners) remove(id int) {
	for i, e := range l.list {
		if e.id == id {
			l.list = append(l.list[:i], l.list[i+1:]...)
			return
		}
	}
}

func (l *listeners) len() int { return len(l.list) }

func (l *listeners) clear() { l.list = nil }

func (l *listeners) notify(m Metadata) {
	// a callback may cancel itself while we iterate
	snapshot := make([]listener, len(l.list))
	copy(snapshot, l.list)
	for _, e := range snapshot {
		e.fn(m)
	}
}
