package ecs

// Each2 visits announced entities holding both A and B, ordered by id so every
// client walks the same sequence.
func Each2[A, B any](w *World, fn func(EntityID, *A, *B)) {
	sa, sb := StoreOf[A](w), StoreOf[B](w)
	for _, id := range w.Query(sa.typ, sb.typ) {
		a, okA := sa.data[id]
		b, okB := sb.data[id]
		if !okA || !okB {
			// removed by an earlier callback
			continue
		}
		fn(id, a, b)
	}
}
