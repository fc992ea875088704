package xl

// SharedStrings is the workbook-wide string table. Indices are assigned in
// first-registration order and never change.
type SharedStrings struct {
	enabled bool
	count   int
	strings []string
	index   map[string]int // 0-based index into strings
}

func NewSharedStrings(enabled bool) *SharedStrings {
	return &SharedStrings{
		enabled: enabled,
		index:   map[string]int{},
	}
}

// Enabled reports whether text cells are written as table references.
// When disabled, text is written inline and nothing is registered.
func (ss *SharedStrings) Enabled() bool {
	return ss.enabled
}

// Register returns the index of s, appending it on first use. Every call is
// counted, hits included. Characters XML cannot carry are dropped first.
func (ss *SharedStrings) Register(s string) int {
	s = xmlText(s)
	ss.count++
	if i, ok := ss.index[s]; ok {
		return i
	}
	i := len(ss.strings)
	ss.strings = append(ss.strings, s)
	ss.index[s] = i
	return i
}

// Count is the number of Register calls.
func (ss *SharedStrings) Count() int {
	return ss.count
}

// UniqueCount is the number of distinct strings.
func (ss *SharedStrings) UniqueCount() int {
	return len(ss.strings)
}

// At returns the string stored at index i.
func (ss *SharedStrings) At(i int) (string, bool) {
	if i < 0 || i >= len(ss.strings) {
		return "", false
	}
	return ss.strings[i], true
}

// stringsMark records the table size so a failed session can be undone.
type stringsMark struct {
	count, unique int
}

func (ss *SharedStrings) mark() stringsMark {
	return stringsMark{count: ss.count, unique: len(ss.strings)}
}

// rollback forgets every registration made since m.
func (ss *SharedStrings) rollback(m stringsMark) {
	for _, s := range ss.strings[m.unique:] {
		delete(ss.index, s)
	}
	clear(ss.strings[m.unique:])
	ss.strings = ss.strings[:m.unique]
	ss.count = m.count
}
