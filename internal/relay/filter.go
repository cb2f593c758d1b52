package relay

import (
	"strconv"
	"strings"
)

// ChannelFilter decides whether an inbound post originates from an
// allowed source channel. Entries may be numeric chat IDs or @handles.
// An empty allow-list accepts everything; a configured list rejects
// posts whose chat metadata is absent (fail closed).
type ChannelFilter struct {
	ids     map[int64]struct{}
	handles map[string]struct{}
}

// NewChannelFilter parses the configured allow-list. Blank entries are
// skipped; entries that parse as integers match by chat ID, everything
// else matches by handle, case-insensitive, with or without a leading @.
func NewChannelFilter(allowed []string) *ChannelFilter {
	f := &ChannelFilter{
		ids:     make(map[int64]struct{}),
		handles: make(map[string]struct{}),
	}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if id, err := strconv.ParseInt(entry, 10, 64); err == nil {
			f.ids[id] = struct{}{}
			continue
		}
		f.handles[normalizeHandle(entry)] = struct{}{}
	}
	return f
}

// Allow reports whether a post from the given chat should be relayed.
func (f *ChannelFilter) Allow(chatID int64, username string) bool {
	if len(f.ids) == 0 && len(f.handles) == 0 {
		return true // empty list = allow all
	}
	if chatID == 0 && username == "" {
		return false // fail closed on missing chat metadata
	}
	if _, ok := f.ids[chatID]; ok {
		return true
	}
	if username != "" {
		if _, ok := f.handles[normalizeHandle(username)]; ok {
			return true
		}
	}
	return false
}

func normalizeHandle(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "@"))
}
