package types

// InlineCapacity is the number of message bytes StringStorage can hold
// without a heap allocation.
const InlineCapacity = 64

// StringStorage is an owning byte buffer for a message payload with a
// small-buffer optimization: payloads shorter than InlineCapacity live in an
// inline array, longer payloads spill to an exactly-sized heap buffer.
//
// The view returned by Bytes is valid for as long as the storage itself;
// callers must take the view through a pointer receiver so an inline view
// always points into this storage's own buffer.
type StringStorage struct {
	inline [InlineCapacity]byte
	heap   []byte
	length int
}

// NewStringStorage copies s into a fresh storage.
func NewStringStorage(s string) StringStorage {
	var st StringStorage
	st.Store(s)
	return st
}

// Store replaces the payload with a copy of s, dropping any previous heap
// buffer.
func (s *StringStorage) Store(str string) {
	s.length = len(str)
	if s.length < InlineCapacity {
		s.heap = nil
		copy(s.inline[:], str)
		return
	}
	s.heap = make([]byte, s.length)
	copy(s.heap, str)
}

// Bytes returns a view of the stored payload.
func (s *StringStorage) Bytes() []byte {
	if s.heap != nil {
		return s.heap[:s.length]
	}
	return s.inline[:s.length]
}

// String returns the payload as a string (copies).
func (s *StringStorage) String() string {
	return string(s.Bytes())
}

// Len returns the payload length in bytes.
func (s *StringStorage) Len() int { return s.length }

// IsInline reports whether the payload lives in the inline buffer.
func (s *StringStorage) IsInline() bool { return s.heap == nil }

// Reset drops the payload and releases any heap buffer.
func (s *StringStorage) Reset() {
	s.heap = nil
	s.length = 0
}
