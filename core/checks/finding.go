package checks

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
)

// Status is a reviewer's disposition of a finding.
type Status string

const (
	StatusNew     Status = "New"
	StatusIgnored Status = "Ignored"
	StatusFixed   Status = "Fixed"
)

// Fix is a proposed replacement for the whole text of a finding's verse.
type Fix struct {
	Text string `json:"text"`
}

// Finding is one occurrence flagged by a check. Start and End are byte
// offsets into the verse text.
type Finding struct {
	Location    VerseLocation `json:"location"`
	CheckID     string        `json:"check_id"`
	CheckName   string        `json:"check_name,omitempty"`
	MatchedText string        `json:"matched_text"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	Start       int           `json:"start"`
	End         int           `json:"end"`
	Fix         *Fix          `json:"fix,omitempty"`
}

// IgnoreKey derives the key under which a dismissed finding is remembered.
// It depends only on the location, the check and the matched text, so a
// finding keeps its key when surrounding text moves.
func (f Finding) IgnoreKey() string {
	return IgnoreKey(f.Location, f.CheckID, f.MatchedText)
}

// IgnoreKey hashes a location, check id and matched text into a hex key.
func IgnoreKey(loc VerseLocation, checkID, matched string) string {
	h := blake3.New()
	buf := make([]byte, 0, 64+len(checkID)+len(matched))
	buf = strconv.AppendInt(buf, int64(loc.Book), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(loc.Chapter), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(loc.Verse), 10)
	buf = append(buf, 0)
	buf = append(buf, checkID...)
	buf = append(buf, 0)
	buf = append(buf, matched...)
	_, _ = h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))
}

// IgnoreItem records a finding a reviewer dismissed. Items never expire.
type IgnoreItem struct {
	Key         string        `json:"key"`
	Location    VerseLocation `json:"location"`
	CheckID     string        `json:"check_id"`
	MatchedText string        `json:"matched_text"`
	Reason      string        `json:"reason,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewIgnoreItem dismisses f with an optional reason.
func NewIgnoreItem(f Finding, reason string, now time.Time) IgnoreItem {
	return IgnoreItem{
		Key:         f.IgnoreKey(),
		Location:    f.Location,
		CheckID:     f.CheckID,
		MatchedText: f.MatchedText,
		Reason:      reason,
		CreatedAt:   now.UTC(),
	}
}
