package tui

// History holds recent input lines for up/down recall. Navigation is
// a cursor over the entries; a cursor past the newest entry means the
// player is typing fresh input.
type History struct {
	entries []string
	limit   int
	pos     int
}

// NewHistory creates a history keeping at most limit entries.
func NewHistory(limit int) *History {
	return &History{entries: make([]string, 0, limit), limit: limit}
}

// Push records a line unless it repeats the newest entry.
func (h *History) Push(line string) {
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		h.pos = len(h.entries)
		return
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = h.entries[over:]
	}
	h.pos = len(h.entries)
}

// Prev steps back one entry, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.pos > 0 {
		h.pos--
	}
	return h.entries[h.pos], true
}

// Next steps forward one entry. Stepping past the newest returns false.
func (h *History) Next() (string, bool) {
	if h.pos >= len(h.entries) {
		return "", false
	}
	h.pos++
	if h.pos == len(h.entries) {
		return "", false
	}
	return h.entries[h.pos], true
}

// ResetCursor returns navigation to fresh input.
func (h *History) ResetCursor() {
	h.pos = len(h.entries)
}
