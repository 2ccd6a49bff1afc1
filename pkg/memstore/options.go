package memstore

// similarOptions holds the optional filters for SimilarMemories. Kept
// unexported so backend packages read them only through [ApplySimilarOpts].
type similarOptions struct {
	memoryType MemoryType
	hasType    bool
}

// SimilarOpt is a functional option for [MemoryStore.SimilarMemories].
type SimilarOpt func(*similarOptions)

// WithMemoryType restricts SimilarMemories to a single memory type.
func WithMemoryType(t MemoryType) SimilarOpt {
	return func(o *similarOptions) {
		o.memoryType = t
		o.hasType = true
	}
}

// ApplySimilarOpts folds opts into (memoryType, hasType) so that backend
// packages outside this package can read the unexported option state.
func ApplySimilarOpts(opts []SimilarOpt) (memoryType MemoryType, hasType bool) {
	var o similarOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.memoryType, o.hasType
}
