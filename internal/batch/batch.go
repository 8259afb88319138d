// Package batch splits recipient lists into the groups an adapter can send
// in one request.
package batch

// Limits describes how an adapter accepts recipients.
type Limits interface {
	// BatchSize returns the maximum recipients per request; zero or less
	// means unbounded.
	BatchSize() int
	// Batches reports whether the adapter can address several recipients in
	// one request at all.
	Batches() bool
}

// Plan partitions targets into contiguous, order-preserving batches of at
// most size elements. size <= 0 yields a single batch. Empty input yields no
// batches.
//
// The returned batches share the backing array of targets.
func Plan[T any](targets []T, size int) [][]T {
	if len(targets) == 0 {
		return nil
	}
	if size <= 0 || size >= len(targets) {
		return [][]T{targets}
	}

	out := make([][]T, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := min(start+size, len(targets))
		out = append(out, targets[start:end:end])
	}
	return out
}

// PlanEach yields one batch per target.
func PlanEach[T any](targets []T) [][]T {
	return Plan(targets, 1)
}

// PlanFor picks Plan or PlanEach according to limits.
func PlanFor[T any](targets []T, limits Limits) [][]T {
	if limits == nil || !limits.Batches() {
		return PlanEach(targets)
	}
	return Plan(targets, limits.BatchSize())
}
