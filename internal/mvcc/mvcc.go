// Package mvcc implements spec.md's snapshot-isolation transaction layer
// (C5) over any kv.Engine: version allocation, active-set snapshotting,
// write-conflict detection and prefix-ordered visibility scans.
//
// Grounded on the pack's MVCC fragments (see DESIGN.md): etcd's
// server/mvcc/kv.go, the go-mvcc-map transaction shape, and tikv's
// storage/kvstore transaction layer, adapted to spec.md's exact
// version/active-set/visible algorithm.
package mvcc

import (
	"sort"
	"sync"

	"kvsql/internal/codec"
	"kvsql/internal/errs"
	"kvsql/internal/kv"
)

// key tags for the MVCC layer's own key space (spec.md §3.3).
const (
	tagNextVersion byte = iota
	tagActiveTxn
	tagTxnWrite
	tagVersioned
)

func keyNextVersion() []byte {
	return codec.NewEncoder().WriteTag(tagNextVersion).Bytes()
}

func keyActiveTxn(v uint64) []byte {
	return codec.NewEncoder().WriteTag(tagActiveTxn).WriteUint64(v).Bytes()
}

func prefixActiveTxn() []byte {
	return codec.NewEncoder().WriteTag(tagActiveTxn).Bytes()
}

func keyTxnWrite(v uint64, userKey []byte) []byte {
	return codec.NewEncoder().WriteTag(tagTxnWrite).WriteUint64(v).WriteBytes(userKey).Bytes()
}

func prefixTxnWrite(v uint64) []byte {
	return codec.NewEncoder().WriteTag(tagTxnWrite).WriteUint64(v).Bytes()
}

func keyVersioned(userKey []byte, v uint64) []byte {
	return codec.NewEncoder().WriteTag(tagVersioned).WriteBytes(userKey).WriteUint64(v).Bytes()
}

// prefixVersioned is a true byte prefix of every Versioned(userKey, *)
// key: the tag byte plus userKey's terminated encoding.
func prefixVersioned(userKey []byte) []byte {
	return codec.NewEncoder().WriteTag(tagVersioned).WriteBytes(userKey).Bytes()
}

// prefixVersionedUserPrefix is a true byte prefix of every
// Versioned(userKey, *) key for every userKey starting with prefix — used
// by Txn.PrefixScan. Its trailing terminator is omitted.
func prefixVersionedUserPrefix(prefix []byte) []byte {
	return codec.NewEncoder().WriteTag(tagVersioned).WriteBytesPrefix(prefix).Bytes()
}

func decodeVersionedKey(b []byte) (userKey []byte, version uint64, err error) {
	d := codec.NewDecoder(b)
	tag, err := d.ReadTag()
	if err != nil {
		return nil, 0, err
	}
	if tag != tagVersioned {
		return nil, 0, errs.Internal("mvcc: expected Versioned key tag, got %d", tag)
	}
	uk, err := d.ReadBytes()
	if err != nil {
		return nil, 0, err
	}
	v, err := d.ReadUint64()
	if err != nil {
		return nil, 0, err
	}
	return uk, v, nil
}

// encodeSlot serializes the Option<Vec<u8>> payload of a Versioned slot:
// one flag byte (0 = tombstone/None, 1 = present) followed by the raw
// value bytes when present.
func encodeSlot(value []byte) []byte {
	if value == nil {
		return []byte{0}
	}
	out := make([]byte, 1+len(value))
	out[0] = 1
	copy(out[1:], value)
	return out
}

func decodeSlot(b []byte) (value []byte, tombstone bool, err error) {
	if len(b) == 0 {
		return nil, false, errs.Internal("mvcc: empty versioned slot")
	}
	if b[0] == 0 {
		return nil, true, nil
	}
	return b[1:], false, nil
}

// MVCC layers snapshot isolation over a single kv.Engine, serializing
// every operation through one mutex (spec.md §4.5/§5).
type MVCC struct {
	mu     sync.Mutex
	engine kv.Engine
}

// New wraps engine with MVCC transactions.
func New(engine kv.Engine) *MVCC {
	return &MVCC{engine: engine}
}

// Txn is a handle to one in-flight or finished transaction. It is not
// safe for concurrent use by multiple goroutines.
type Txn struct {
	mvcc    *MVCC
	version uint64
	active  map[uint64]struct{}
	done    bool
}

// Version returns the transaction's own version.
func (t *Txn) Version() uint64 { return t.version }

// visible implements spec.md §4.5: v is visible to this txn iff it is not
// in the active set captured at begin and v <= self's version.
func (t *Txn) visible(v uint64) bool {
	if v > t.version {
		return false
	}
	_, inActive := t.active[v]
	return !inActive
}

// Begin starts a new transaction: allocates the next version, snapshots
// the active set, and marks itself active (spec.md §4.5 "begin").
func (m *MVCC) Begin() (*Txn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok, err := m.engine.Get(keyNextVersion())
	if err != nil {
		return nil, errs.Wrap(err, "mvcc: read NextVersion")
	}
	var selfV uint64 = 1
	if ok {
		d := codec.NewDecoder(raw)
		selfV, err = d.ReadUint64()
		if err != nil {
			return nil, err
		}
	}
	if err := m.engine.Set(keyNextVersion(), codec.NewEncoder().WriteUint64(selfV+1).Bytes()); err != nil {
		return nil, errs.Wrap(err, "mvcc: write NextVersion")
	}

	pairs, err := m.engine.PrefixScan(prefixActiveTxn())
	if err != nil {
		return nil, errs.Wrap(err, "mvcc: snapshot active set")
	}
	active := make(map[uint64]struct{}, len(pairs))
	for _, p := range pairs {
		d := codec.NewDecoder(p.Key)
		if _, err := d.ReadTag(); err != nil {
			return nil, err
		}
		v, err := d.ReadUint64()
		if err != nil {
			return nil, err
		}
		active[v] = struct{}{}
	}

	if err := m.engine.Set(keyActiveTxn(selfV), []byte{}); err != nil {
		return nil, errs.Wrap(err, "mvcc: mark active")
	}

	return &Txn{mvcc: m, version: selfV, active: active}, nil
}

// latestVersionOf returns the maximum version present for userKey among
// pairs returned by a fresh prefix scan, or (0, false) if none exists.
func latestVersionOf(pairs []kv.Pair, userKey []byte) (uint64, bool, error) {
	var max uint64
	found := false
	for _, p := range pairs {
		_, v, err := decodeVersionedKey(p.Key)
		if err != nil {
			return 0, false, err
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	return max, found, nil
}

// write applies set/delete: conflict-check, record the write for
// rollback/commit cleanup, then write the versioned slot (spec.md §4.5).
func (t *Txn) write(userKey, value []byte, tombstone bool) error {
	if t.done {
		return errs.Internal("mvcc: transaction already finished")
	}
	m := t.mvcc
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs, err := m.engine.PrefixScan(prefixVersioned(userKey))
	if err != nil {
		return errs.Wrap(err, "mvcc: scan for conflict check")
	}

	minVersion := t.version + 1
	for v := range t.active {
		if v < minVersion {
			minVersion = v
		}
	}
	var filtered []kv.Pair
	for _, p := range pairs {
		_, v, err := decodeVersionedKey(p.Key)
		if err != nil {
			return err
		}
		if v >= minVersion {
			filtered = append(filtered, p)
		}
	}
	if lastV, found, err := latestVersionOf(filtered, userKey); err != nil {
		return err
	} else if found && !t.visible(lastV) {
		return errs.WriteConflict()
	}

	if err := m.engine.Set(keyTxnWrite(t.version, userKey), []byte{}); err != nil {
		return errs.Wrap(err, "mvcc: record txn write")
	}
	slot := encodeSlot(value)
	if tombstone {
		slot = encodeSlot(nil)
	}
	if err := m.engine.Set(keyVersioned(userKey, t.version), slot); err != nil {
		return errs.Wrap(err, "mvcc: write versioned slot")
	}
	return nil
}

// Set writes value for userKey, visible to this transaction immediately
// and to later transactions once committed.
func (t *Txn) Set(userKey, value []byte) error {
	return t.write(userKey, value, false)
}

// Delete writes a tombstone for userKey.
func (t *Txn) Delete(userKey []byte) error {
	return t.write(userKey, nil, true)
}

// Get returns the value visible to this transaction for userKey, or
// ok=false if there is none or the visible version is a tombstone
// (spec.md §4.5 "get").
func (t *Txn) Get(userKey []byte) (value []byte, ok bool, err error) {
	if t.done {
		return nil, false, errs.Internal("mvcc: transaction already finished")
	}
	m := t.mvcc
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs, err := m.engine.PrefixScan(prefixVersioned(userKey))
	if err != nil {
		return nil, false, errs.Wrap(err, "mvcc: get scan")
	}
	type entry struct {
		version uint64
		slot    []byte
	}
	entries := make([]entry, 0, len(pairs))
	for _, p := range pairs {
		_, v, err := decodeVersionedKey(p.Key)
		if err != nil {
			return nil, false, err
		}
		entries = append(entries, entry{version: v, slot: p.Value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].version > entries[j].version })

	for _, e := range entries {
		if !t.visible(e.version) {
			continue
		}
		val, tombstone, err := decodeSlot(e.slot)
		if err != nil {
			return nil, false, err
		}
		if tombstone {
			return nil, false, nil
		}
		return val, true, nil
	}
	return nil, false, nil
}

// KV is one user-key/value pair returned by PrefixScan.
type KV struct {
	Key   []byte
	Value []byte
}

// PrefixScan returns, for every user key starting with prefix, its latest
// value visible to this transaction (tombstones excluded), ascending by
// user key (spec.md §4.5 "prefix_scan").
func (t *Txn) PrefixScan(prefix []byte) ([]KV, error) {
	if t.done {
		return nil, errs.Internal("mvcc: transaction already finished")
	}
	m := t.mvcc
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs, err := m.engine.PrefixScan(prefixVersionedUserPrefix(prefix))
	if err != nil {
		return nil, errs.Wrap(err, "mvcc: prefix scan")
	}

	type latest struct {
		version uint64
		value   []byte
		seen    bool
		removed bool
	}
	order := make([]string, 0)
	byKey := make(map[string]*latest)

	for _, p := range pairs {
		uk, v, err := decodeVersionedKey(p.Key)
		if err != nil {
			return nil, err
		}
		if !t.visible(v) {
			continue
		}
		k := string(uk)
		l, exists := byKey[k]
		if !exists {
			l = &latest{}
			byKey[k] = l
			order = append(order, k)
		}
		if !l.seen || v > l.version {
			val, tombstone, err := decodeSlot(p.Value)
			if err != nil {
				return nil, err
			}
			l.version = v
			l.seen = true
			l.removed = tombstone
			l.value = val
		}
	}

	sort.Strings(order)
	out := make([]KV, 0, len(order))
	for _, k := range order {
		l := byKey[k]
		if l.removed {
			continue
		}
		out = append(out, KV{Key: []byte(k), Value: l.value})
	}
	return out, nil
}

// Commit deletes every TxnWrite marker for this transaction, then its
// ActiveTxn marker. Versioned slots persist permanently.
func (t *Txn) Commit() error {
	if t.done {
		return errs.Internal("mvcc: transaction already finished")
	}
	m := t.mvcc
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs, err := m.engine.PrefixScan(prefixTxnWrite(t.version))
	if err != nil {
		return errs.Wrap(err, "mvcc: commit scan")
	}
	for _, p := range pairs {
		if err := m.engine.Delete(p.Key); err != nil {
			return errs.Wrap(err, "mvcc: delete txn write marker")
		}
	}
	if err := m.engine.Delete(keyActiveTxn(t.version)); err != nil {
		return errs.Wrap(err, "mvcc: delete active marker")
	}
	t.done = true
	return nil
}

// Rollback deletes every write this transaction made (both the TxnWrite
// marker and the Versioned slot it produced) and its ActiveTxn marker.
func (t *Txn) Rollback() error {
	if t.done {
		return errs.Internal("mvcc: transaction already finished")
	}
	m := t.mvcc
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs, err := m.engine.PrefixScan(prefixTxnWrite(t.version))
	if err != nil {
		return errs.Wrap(err, "mvcc: rollback scan")
	}
	for _, p := range pairs {
		d := codec.NewDecoder(p.Key)
		if _, err := d.ReadTag(); err != nil {
			return err
		}
		if _, err := d.ReadUint64(); err != nil {
			return err
		}
		userKey, err := d.ReadBytes()
		if err != nil {
			return err
		}
		if err := m.engine.Delete(keyVersioned(userKey, t.version)); err != nil {
			return errs.Wrap(err, "mvcc: delete versioned slot")
		}
		if err := m.engine.Delete(p.Key); err != nil {
			return errs.Wrap(err, "mvcc: delete txn write marker")
		}
	}
	if err := m.engine.Delete(keyActiveTxn(t.version)); err != nil {
		return errs.Wrap(err, "mvcc: delete active marker")
	}
	t.done = true
	return nil
}
