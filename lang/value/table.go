package value

// Table is an open-addressing, linear-probed hash table keyed by ObjString
// identity, used for the intern pool, the globals table, per-class method
// tables and per-instance field tables (spec.md §4.4). Growth triggers at a
// load factor of 0.75; deletions leave tombstones so that probe chains
// through a deleted slot still find entries inserted after it.
//
// This is the one structure in Von that stays hand-rolled instead of
// reaching for github.com/dolthub/swiss: findString below needs to probe by
// a precomputed hash and raw bytes without first allocating an ObjString,
// and the 0.75 load-factor math needs to count tombstones separately from
// live entries -- neither is exposed by swiss.Map's public API, which
// hashes arbitrary comparable Go keys and tracks only live count. See
// DESIGN.md.
type Table struct {
	entries  []entry
	count    int // live entries + tombstones
	liveSize int // live entries only, for Len()
}

type entry struct {
	key   *ObjString // nil = empty slot, tombstoneKey = deleted slot
	value Value
}

// tombstoneKey is a unique sentinel distinguishing a deleted slot from a
// never-used one; no real ObjString is ever equal to it because it is
// never returned by the interner.
var tombstoneKey = &ObjString{}

const initialTableCapacity = 8
const maxLoadFactor = 0.75

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Len returns the number of live entries (tombstones excluded).
func (t *Table) Len() int { return t.liveSize }

// Get looks up key and reports whether it was found.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	e := findEntry(t.entries, key)
	if e.key != key {
		return Value{}, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value. It reports true if key was not
// already present (whether it landed in an empty slot or reused a
// tombstone) and false if it overwrote an existing live entry.
func (t *Table) Set(key *ObjString, v Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoadFactor {
		t.grow()
	}
	e := findEntry(t.entries, key)
	isNewKey := e.key != key
	if isNewKey {
		if e.key == nil {
			// brand-new slot, not a reused tombstone: tombstones already
			// counted towards load-factor math when they were created.
			t.count++
		}
		t.liveSize++
	}
	e.key = key
	e.value = v
	return isNewKey
}

// Delete removes key, leaving a tombstone in its slot so later probes that
// passed through it still find subsequent entries.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key != key {
		return false
	}
	e.key = tombstoneKey
	e.value = Bool(true)
	t.liveSize--
	return true
}

// AddAll copies every live entry of src into t (used to seed a subclass's
// method table from its superclass).
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.key != nil && e.key != tombstoneKey {
			t.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by its content without requiring
// the caller to allocate an ObjString first -- the core of Von's string
// interning invariant (spec.md §3, §8).
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capn := len(t.entries)
	idx := int(hash) % capn
	for {
		e := &t.entries[idx]
		if e.key == nil {
			return nil
		}
		if e.key != tombstoneKey && e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		idx = (idx + 1) % capn
	}
}

func findEntry(entries []entry, key *ObjString) *entry {
	capn := len(entries)
	idx := int(key.Hash) % capn
	var tombstone *entry
	for {
		e := &entries[idx]
		switch {
		case e.key == nil:
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.key == tombstoneKey:
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		idx = (idx + 1) % capn
	}
}

func (t *Table) grow() {
	newCap := initialTableCapacity
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	liveCount := 0
	for _, e := range t.entries {
		if e.key == nil || e.key == tombstoneKey {
			continue
		}
		dst := findEntry(newEntries, e.key)
		dst.key = e.key
		dst.value = e.value
		liveCount++
	}
	t.entries = newEntries
	t.count = liveCount // tombstones are dropped on rehash
}

// Keys returns the live keys in unspecified order; used by the GC to mark
// the intern table's keys as roots.
func (t *Table) Keys() []*ObjString {
	keys := make([]*ObjString, 0, t.liveSize)
	for _, e := range t.entries {
		if e.key != nil && e.key != tombstoneKey {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Each calls fn for every live entry, in unspecified order. Used by the GC
// to mark the keys and values of the globals table and the values of the
// method and field tables (the
// intern table only needs Keys, since its values carry no reachability
// information).
func (t *Table) Each(fn func(key *ObjString, val Value)) {
	for _, e := range t.entries {
		if e.key != nil && e.key != tombstoneKey {
			fn(e.key, e.value)
		}
	}
}

// DeleteUnmarked removes every live entry whose key is not marked, the
// "remove white" step the GC runs on the intern table just before sweeping
// (spec.md §4.5).
func (t *Table) DeleteUnmarked() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && e.key != tombstoneKey && !e.key.Marked {
			e.key = tombstoneKey
			e.value = Bool(true)
			t.liveSize--
		}
	}
}
