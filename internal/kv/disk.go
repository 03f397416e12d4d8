package kv

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"kvsql/internal/errs"
)

// indexEntry is what DiskKV's in-memory hash index remembers for a live
// (non-tombstone) key: where its value bytes start in the log file and
// how long they are.
type indexEntry struct {
	offset int64
	length int32
}

// DiskKV is the append-only, Bitcask-style log engine of spec.md C4: an
// append-only record log on disk plus an in-memory index from key to
// in-log value offset, with on-demand compaction and an exclusive OS file
// lock held for the engine's lifetime.
//
// Grounded on the pack's WAL/log-structured storage fragments (see
// DESIGN.md); the exclusive lock uses golang.org/x/sys/unix.Flock,
// promoted from the teacher's indirect dependency graph.
type DiskKV struct {
	path  string
	file  *os.File
	w     *bufio.Writer
	size  int64
	lock  fileLock
	keys  []string
	index map[string]indexEntry
}

// Open replays path's log (creating it if absent), takes an exclusive
// file lock, and returns a ready DiskKV. If compact is true, the log is
// compacted immediately after replay (spec.md's new_compact).
func Open(path string, compact bool) (*DiskKV, error) {
	lock, err := acquireFileLock(path)
	if err != nil {
		return nil, errs.Internal("diskkv: %v", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.unlock()
		return nil, errs.Wrap(err, "diskkv: open %s", path)
	}

	d := &DiskKV{
		path:  path,
		file:  f,
		lock:  lock,
		index: make(map[string]indexEntry),
	}
	if err := d.replay(); err != nil {
		_ = f.Close()
		_ = lock.unlock()
		return nil, err
	}
	d.w = bufio.NewWriter(f)

	if compact {
		if err := d.Compact(); err != nil {
			_ = f.Close()
			_ = lock.unlock()
			return nil, err
		}
	}
	return d, nil
}

// replay reads every record from offset 0, rebuilding the index: a
// non-tombstone record overwrites any prior entry for its key, a
// tombstone removes it. A truncated trailing record stops replay without
// error (crash tolerance).
func (d *DiskKV) replay() error {
	r, err := os.Open(d.path)
	if err != nil {
		return errs.Wrap(err, "diskkv: reopen for replay")
	}
	defer r.Close()

	var pos int64
	header := make([]byte, 8)
	for {
		n, err := io.ReadFull(r, header)
		if n < len(header) {
			break // truncated header: stop replay here
		}
		if err != nil {
			break
		}
		keyLen := binary.BigEndian.Uint32(header[0:4])
		valLen := int32(binary.BigEndian.Uint32(header[4:8]))

		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			break
		}

		recordStart := pos
		valueOffset := recordStart + 8 + int64(keyLen)

		if valLen < 0 {
			delete(d.index, string(key))
			pos = valueOffset
			continue
		}

		if _, err := io.CopyN(io.Discard, r, int64(valLen)); err != nil {
			break
		}
		d.index[string(key)] = indexEntry{offset: valueOffset, length: valLen}
		pos = valueOffset + int64(valLen)
	}
	d.size = pos
	d.rebuildKeys()
	return nil
}

func (d *DiskKV) rebuildKeys() {
	keys := make([]string, 0, len(d.index))
	for k := range d.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d.keys = keys
}

func (d *DiskKV) insertKeySorted(k string) {
	i := sort.SearchStrings(d.keys, k)
	if i < len(d.keys) && d.keys[i] == k {
		return
	}
	d.keys = append(d.keys, "")
	copy(d.keys[i+1:], d.keys[i:])
	d.keys[i] = k
}

func (d *DiskKV) removeKeySorted(k string) {
	i := sort.SearchStrings(d.keys, k)
	if i < len(d.keys) && d.keys[i] == k {
		d.keys = append(d.keys[:i], d.keys[i+1:]...)
	}
}

// appendRecord writes one log record and flushes, per spec.md's
// durability note ("writes are flushed by the buffered writer at the end
// of each set/delete"). It returns the offset the value bytes start at.
func (d *DiskKV) appendRecord(key, value []byte, tombstone bool) (int64, error) {
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(key)))
	valLen := int32(-1)
	if !tombstone {
		valLen = int32(len(value))
	}
	binary.BigEndian.PutUint32(header[4:8], uint32(valLen))

	if _, err := d.w.Write(header[:]); err != nil {
		return 0, errs.Wrap(err, "diskkv: write header")
	}
	if _, err := d.w.Write(key); err != nil {
		return 0, errs.Wrap(err, "diskkv: write key")
	}
	valueOffset := d.size + 8 + int64(len(key))
	if !tombstone {
		if _, err := d.w.Write(value); err != nil {
			return 0, errs.Wrap(err, "diskkv: write value")
		}
	}
	if err := d.w.Flush(); err != nil {
		return 0, errs.Wrap(err, "diskkv: flush")
	}
	d.size = valueOffset
	if !tombstone {
		d.size += int64(len(value))
	}
	return valueOffset, nil
}

func (d *DiskKV) Set(key, value []byte) error {
	offset, err := d.appendRecord(key, value, false)
	if err != nil {
		return err
	}
	k := string(key)
	if _, exists := d.index[k]; !exists {
		d.insertKeySorted(k)
	}
	d.index[k] = indexEntry{offset: offset, length: int32(len(value))}
	return nil
}

func (d *DiskKV) Delete(key []byte) error {
	if _, err := d.appendRecord(key, nil, true); err != nil {
		return err
	}
	k := string(key)
	if _, exists := d.index[k]; exists {
		delete(d.index, k)
		d.removeKeySorted(k)
	}
	return nil
}

func (d *DiskKV) readValue(e indexEntry) ([]byte, error) {
	buf := make([]byte, e.length)
	if e.length == 0 {
		return buf, nil
	}
	if _, err := d.file.ReadAt(buf, e.offset); err != nil {
		return nil, errs.Wrap(err, "diskkv: read value")
	}
	return buf, nil
}

func (d *DiskKV) Get(key []byte) ([]byte, bool, error) {
	e, ok := d.index[string(key)]
	if !ok {
		return nil, false, nil
	}
	v, err := d.readValue(e)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (d *DiskKV) Scan(r Range) ([]Pair, error) {
	lo := 0
	if r.Start != nil {
		lo = sort.SearchStrings(d.keys, string(r.Start))
	}
	hi := len(d.keys)
	if r.End != nil {
		hi = sort.SearchStrings(d.keys, string(r.End))
	}
	var out []Pair
	for i := lo; i < hi; i++ {
		k := d.keys[i]
		v, err := d.readValue(d.index[k])
		if err != nil {
			return nil, err
		}
		out = append(out, Pair{Key: []byte(k), Value: v})
	}
	return out, nil
}

func (d *DiskKV) PrefixScan(prefix []byte) ([]Pair, error) {
	return d.Scan(PrefixRange(prefix))
}

// Compact rewrites the log to contain only live (key, value) records, in
// key order, via a sibling temp file that is atomically renamed over the
// original (spec.md C4).
func (d *DiskKV) Compact() error {
	tmpPath := d.path + ".compact.tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(err, "diskkv: open compaction temp file")
	}

	newIndex := make(map[string]indexEntry, len(d.index))
	var pos int64
	bw := bufio.NewWriter(tmp)
	for _, k := range d.keys {
		e := d.index[k]
		v, err := d.readValue(e)
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return err
		}
		var header [8]byte
		binary.BigEndian.PutUint32(header[0:4], uint32(len(k)))
		binary.BigEndian.PutUint32(header[4:8], uint32(len(v)))
		if _, err := bw.Write(header[:]); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return errs.Wrap(err, "diskkv: compact write header")
		}
		if _, err := bw.Write([]byte(k)); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return errs.Wrap(err, "diskkv: compact write key")
		}
		valueOffset := pos + 8 + int64(len(k))
		if _, err := bw.Write(v); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return errs.Wrap(err, "diskkv: compact write value")
		}
		newIndex[k] = indexEntry{offset: valueOffset, length: int32(len(v))}
		pos = valueOffset + int64(len(v))
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errs.Wrap(err, "diskkv: compact flush")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errs.Wrap(err, "diskkv: compact close temp")
	}

	if err := d.file.Close(); err != nil {
		return errs.Wrap(err, "diskkv: close original before rename")
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return errs.Wrap(err, "diskkv: rename compaction temp over original")
	}

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return errs.Wrap(err, "diskkv: reopen after compaction")
	}
	d.file = f
	d.w = bufio.NewWriter(f)
	d.index = newIndex
	d.size = pos
	d.rebuildKeys()
	return nil
}

func (d *DiskKV) Close() error {
	if d.w != nil {
		_ = d.w.Flush()
	}
	err := d.file.Close()
	if unlockErr := d.lock.unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

var _ Engine = (*DiskKV)(nil)
