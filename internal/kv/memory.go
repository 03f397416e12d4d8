package kv

import "sort"

// MemoryKV is an ordered map from bytes to bytes (spec.md C3). Keys are
// kept in a sorted slice alongside the value map so range scans are a
// binary-search slice rather than a full sort on every call.
type MemoryKV struct {
	keys []string
	data map[string][]byte
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) search(key string) (int, bool) {
	i := sort.Search(len(m.keys), func(i int) bool { return m.keys[i] >= key })
	return i, i < len(m.keys) && m.keys[i] == key
}

func (m *MemoryKV) Set(key, value []byte) error {
	k := string(key)
	v := make([]byte, len(value))
	copy(v, value)
	if _, exists := m.data[k]; !exists {
		i, _ := m.search(k)
		m.keys = append(m.keys, "")
		copy(m.keys[i+1:], m.keys[i:])
		m.keys[i] = k
	}
	m.data[k] = v
	return nil
}

func (m *MemoryKV) Get(key []byte) ([]byte, bool, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryKV) Delete(key []byte) error {
	k := string(key)
	if _, exists := m.data[k]; !exists {
		return nil
	}
	delete(m.data, k)
	i, found := m.search(k)
	if found {
		m.keys = append(m.keys[:i], m.keys[i+1:]...)
	}
	return nil
}

func (m *MemoryKV) Scan(r Range) ([]Pair, error) {
	lo := 0
	if r.Start != nil {
		lo = sort.Search(len(m.keys), func(i int) bool { return m.keys[i] >= string(r.Start) })
	}
	hi := len(m.keys)
	if r.End != nil {
		hi = sort.Search(len(m.keys), func(i int) bool { return m.keys[i] >= string(r.End) })
	}
	var out []Pair
	for i := lo; i < hi; i++ {
		k := m.keys[i]
		out = append(out, Pair{Key: []byte(k), Value: append([]byte(nil), m.data[k]...)})
	}
	return out, nil
}

func (m *MemoryKV) PrefixScan(prefix []byte) ([]Pair, error) {
	return m.Scan(PrefixRange(prefix))
}

func (m *MemoryKV) Close() error { return nil }

var _ Engine = (*MemoryKV)(nil)
