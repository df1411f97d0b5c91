package core

// listenerSet keeps callbacks in registration order.
type listenerSet[T any] struct {
	next  int
	order []int
	fns   map[int]func(T)
}

func (s *listenerSet[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.order = append(s.order, id)
	return func() { s.remove(id) }
}

func (s *listenerSet[T]) remove(id int) {
	if _, ok := s.fns[id]; !ok {
		return
	}
	delete(s.fns, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// emit calls every listener registered at the time of the call that is
// still registered when its turn comes.
func (s *listenerSet[T]) emit(v T) {
	if len(s.order) == 0 {
		return
	}
	ids := append([]int(nil), s.order...)
	for _, id := range ids {
		if fn, ok := s.fns[id]; ok {
			fn(v)
		}
	}
}

func (s *listenerSet[T]) len() int {
	return len(s.fns)
}

func (s *listenerSet[T]) clear() {
	s.fns = nil
	s.order = nil
}
