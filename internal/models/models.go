package models

import (
	"fmt"
	"time"
)

// FormatVersion is the snapshot file format written by this build. Load
// rejects files declaring any other version.
const FormatVersion = 1

// DataType enumerates the migratable data types.
type DataType int

const (
	Watchlist DataType = iota
	History
	Lists
	Ratings
)

func (d DataType) String() string {
	switch d {
	case Watchlist:
		return "watchlist"
	case History:
		return "history"
	case Lists:
		return "lists"
	case Ratings:
		return "ratings"
	default:
		return ""
	}
}

// Filename returns the snapshot file name for this data type.
func (d DataType) Filename() string {
	switch d {
	case Watchlist:
		return "watchlist.json"
	case History:
		return "watch_history.json"
	case Lists:
		return "lists.json"
	case Ratings:
		return "ratings.json"
	default:
		return ""
	}
}

// Item is one unit of migratable data. Key returns the identity key: the
// minimal field subset that determines logical equality across accounts.
// Mutable attributes (favourite flag, playhead, star value) are never part
// of the key. Label returns a human-readable name for progress output.
type Item interface {
	Key() string
	Label() string
}

// WatchlistItem is a series or movie listing saved to the watchlist.
type WatchlistItem struct {
	ContentID    string `json:"content_id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	ContentType  string `json:"content_type"` // "series" | "movie_listing"
	IsFavourite  bool   `json:"is_favourite"`
	FullyWatched bool   `json:"fully_watched"`
}

func (w WatchlistItem) Key() string   { return w.ContentID }
func (w WatchlistItem) Label() string { return w.Title }

// HistoryItem is one watched episode or movie. Partial marks entries whose
// media panel was missing at export time (delisted content); they still
// carry a valid ContentID and can be replayed on the target.
type HistoryItem struct {
	ContentID    string    `json:"content_id"`
	ParentID     string    `json:"parent_id"`
	ParentType   string    `json:"parent_type"`
	Title        string    `json:"title"`
	SeriesTitle  string    `json:"series_title"`
	DatePlayed   time.Time `json:"date_played"`
	Playhead     uint32    `json:"playhead"`
	FullyWatched bool      `json:"fully_watched"`
	Partial      bool      `json:"partial,omitempty"`
}

func (h HistoryItem) Key() string { return h.ContentID }

func (h HistoryItem) Label() string {
	if h.Title == "" {
		return fmt.Sprintf("%s - %s", h.SeriesTitle, h.ContentID)
	}
	return fmt.Sprintf("%s - %s", h.SeriesTitle, h.Title)
}

// ListItem is one member of a custom list, flattened so that a single
// snapshot holds all lists. The list name participates in identity: the
// same content in two differently named lists is two distinct items.
type ListItem struct {
	ListName  string `json:"list_name"`
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
}

func (l ListItem) Key() string   { return l.ListName + "/" + l.ContentID }
func (l ListItem) Label() string { return fmt.Sprintf("%s -> %s", l.ListName, l.Title) }

// Star rating values as the service's enum strings.
const (
	OneStar    = "OneStar"
	TwoStars   = "TwoStars"
	ThreeStars = "ThreeStars"
	FourStars  = "FourStars"
	FiveStars  = "FiveStars"
)

// RatingItem is a star rating on a series or movie listing.
type RatingItem struct {
	ContentID   string `json:"content_id"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Rating      string `json:"rating"`
}

func (r RatingItem) Key() string   { return r.ContentType + ":" + r.ContentID }
func (r RatingItem) Label() string { return fmt.Sprintf("%s (%s)", r.Title, r.Rating) }

// StarValue maps the rating enum string to 1..5, or 0 when unknown.
func (r RatingItem) StarValue() int {
	switch r.Rating {
	case OneStar:
		return 1
	case TwoStars:
		return 2
	case ThreeStars:
		return 3
	case FourStars:
		return 4
	case FiveStars:
		return 5
	default:
		return 0
	}
}

// ExportMetadata describes where and when a snapshot was taken.
type ExportMetadata struct {
	ProfileName string    `json:"profile_name"`
	ExportedAt  time.Time `json:"exported_at"`
	TotalCount  int       `json:"total_count"`
}

// Snapshot is an immutable, versioned collection of items of one data type.
// Items are never mutated after the snapshot is written.
type Snapshot[T Item] struct {
	FormatVersion int            `json:"format_version"`
	Metadata      ExportMetadata `json:"metadata"`
	Items         []T            `json:"items"`
}

// NewSnapshot builds a snapshot for the given profile with the metadata
// count derived from the item slice.
func NewSnapshot[T Item](profileName string, items []T) *Snapshot[T] {
	return &Snapshot[T]{
		FormatVersion: FormatVersion,
		Metadata: ExportMetadata{
			ProfileName: profileName,
			ExportedAt:  time.Now().UTC(),
			TotalCount:  len(items),
		},
		Items: items,
	}
}

// Validate checks the structural invariants: supported format version and
// declared count matching the item count.
func (s *Snapshot[T]) Validate() error {
	if s.FormatVersion != FormatVersion {
		return fmt.Errorf("declared version %d, supported version %d", s.FormatVersion, FormatVersion)
	}
	if s.Metadata.TotalCount != len(s.Items) {
		return fmt.Errorf("declared count %d, found %d items", s.Metadata.TotalCount, len(s.Items))
	}
	return nil
}
