package interpcore

// Ref is an opaque reference to an interpreter value. Full object semantics
// (attribute resolution, method dispatch) live outside this core; the pools
// below only recycle the fixed-shape storage.
type Ref = any

// IntValue is a boxed integer. Values inside the small-int range are served
// from the shared cache and must never be mutated.
type IntValue struct {
	V int64
}

// FloatValue is a boxed float, recycled through the float pool.
type FloatValue struct {
	V float64
}

// StrValue is an immutable text value. Single-rune latin-1 strings are
// served from the shared cache.
type StrValue struct {
	S string
}

// BytesValue is an immutable byte-string value. Single-byte values are
// served from the shared cache.
type BytesValue struct {
	B []byte
}

// TupleValue is a fixed-length sequence. Tuples are pooled per length
// bucket; the zero-length tuple is a shared singleton.
type TupleValue struct {
	Items []Ref
}

// ListValue is a growable sequence record.
type ListValue struct {
	Items []Ref
}

// DictEntry is one key/value slot in a key table.
type DictEntry struct {
	Key   Ref
	Value Ref
}

// DictKeysTable is the shared key-table storage of a dict, pooled
// separately from the dict record itself.
type DictKeysTable struct {
	Entries []DictEntry
}

// DictValue is a mapping record.
type DictValue struct {
	Keys   *DictKeysTable
	Values []Ref
}

// FrameValue is an execution-frame record.
type FrameValue struct {
	Locals []Ref
	Stack  []Ref
	Prev   *FrameValue
}

// AsyncGenWrappedValue wraps a value yielded by an async generator. These
// are instantiated for every step of an async generator, hence pooled.
type AsyncGenWrappedValue struct {
	Value Ref
}

// AsyncGenASend is the helper record backing one send operation on an
// async generator.
type AsyncGenASend struct {
	Gen       Ref
	SendValue Ref
}

// ContextValue is a context-variable mapping record.
type ContextValue struct {
	Entries []DictEntry
	Prev    *ContextValue
}

// MemErrorValue is a preallocated memory-error record. A fixed number are
// built at init so the out-of-memory path never needs to allocate.
type MemErrorValue struct {
	Msg string
}
