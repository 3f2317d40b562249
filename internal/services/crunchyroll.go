// Collection adapters over the service's content API
//
// Response shapes follow the public content/v2 and content-reviews/v2
// endpoints. Every adapter flattens pagination so callers see a complete
// slice, never a page.
package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/desertthunder/crmigrate/internal/models"
)

const pageSize = 100

// panel is the media card attached to watchlist, history, and list
// entries. Episodes and movies carry their parent identity in metadata
// sub-objects; series and movie listings are their own parent.
type panel struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Title           string `json:"title"`
	SlugTitle       string `json:"slug_title"`
	EpisodeMetadata *struct {
		SeriesID        string `json:"series_id"`
		SeriesTitle     string `json:"series_title"`
		SeriesSlugTitle string `json:"series_slug_title"`
	} `json:"episode_metadata"`
	MovieMetadata *struct {
		MovieListingID        string `json:"movie_listing_id"`
		MovieListingTitle     string `json:"movie_listing_title"`
		MovieListingSlugTitle string `json:"movie_listing_slug_title"`
	} `json:"movie_metadata"`
}

// parentInfo resolves the series or movie-listing identity behind a panel.
// Returns ok=false for panel types that have no migratable parent.
func (p *panel) parentInfo() (id, title, slug, contentType string, ok bool) {
	switch p.Type {
	case "episode":
		if p.EpisodeMetadata == nil {
			return "", "", "", "", false
		}
		m := p.EpisodeMetadata
		return m.SeriesID, m.SeriesTitle, m.SeriesSlugTitle, "series", true
	case "movie":
		if p.MovieMetadata == nil {
			return "", "", "", "", false
		}
		m := p.MovieMetadata
		return m.MovieListingID, m.MovieListingTitle, m.MovieListingSlugTitle, "movie_listing", true
	case "series":
		return p.ID, p.Title, p.SlugTitle, "series", true
	case "movie_listing":
		return p.ID, p.Title, p.SlugTitle, "movie_listing", true
	default:
		return "", "", "", "", false
	}
}

type watchlistEntry struct {
	IsFavorite   bool   `json:"is_favorite"`
	FullyWatched bool   `json:"fully_watched"`
	Panel        *panel `json:"panel"`
}

type watchlistPage struct {
	Total int              `json:"total"`
	Data  []watchlistEntry `json:"data"`
}

// WatchlistCollection adapts the watchlist endpoints.
type WatchlistCollection struct {
	api       *APIClient
	accountID string
}

func NewWatchlistCollection(api *APIClient, accountID string) *WatchlistCollection {
	return &WatchlistCollection{api: api, accountID: accountID}
}

func (w *WatchlistCollection) ListExisting(ctx context.Context) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	for start := 0; ; start += pageSize {
		path := fmt.Sprintf("/content/v2/discover/%s/watchlist?n=%d&start=%d",
			url.PathEscape(w.accountID), pageSize, start)

		var page watchlistPage
		if err := w.api.Get(ctx, path, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch watchlist: %w", err)
		}
		if len(page.Data) == 0 {
			break
		}

		for _, entry := range page.Data {
			if entry.Panel == nil {
				continue
			}
			id, title, slug, contentType, ok := entry.Panel.parentInfo()
			if !ok {
				continue
			}
			items = append(items, models.WatchlistItem{
				ContentID:    id,
				Title:        title,
				Slug:         slug,
				ContentType:  contentType,
				IsFavourite:  entry.IsFavorite,
				FullyWatched: entry.FullyWatched,
			})
		}

		if start+pageSize >= page.Total {
			break
		}
	}
	return items, nil
}

func (w *WatchlistCollection) Create(ctx context.Context, item models.WatchlistItem) error {
	path := fmt.Sprintf("/content/v2/discover/%s/watchlist", url.PathEscape(w.accountID))
	body := map[string]string{"content_id": item.ContentID}
	return w.api.Post(ctx, path, body, nil)
}

type historyEntry struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id"`
	ParentType   string    `json:"parent_type"`
	DatePlayed   time.Time `json:"date_played"`
	Playhead     uint32    `json:"playhead"`
	FullyWatched bool      `json:"fully_watched"`
	Panel        *panel    `json:"panel"`
}

type historyPage struct {
	Total int            `json:"total"`
	Data  []historyEntry `json:"data"`
}

// HistoryCollection adapts the watch-history endpoints. Entries whose
// panel is missing (delisted content) are kept with Partial set; their
// content ID still replays on the target.
type HistoryCollection struct {
	api       *APIClient
	accountID string
}

func NewHistoryCollection(api *APIClient, accountID string) *HistoryCollection {
	return &HistoryCollection{api: api, accountID: accountID}
}

func (h *HistoryCollection) ListExisting(ctx context.Context) ([]models.HistoryItem, error) {
	var items []models.HistoryItem
	for page := 1; ; page++ {
		path := fmt.Sprintf("/content/v2/%s/watch-history?page_size=%d&page=%d",
			url.PathEscape(h.accountID), pageSize, page)

		var resp historyPage
		if err := h.api.Get(ctx, path, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch watch history: %w", err)
		}
		if len(resp.Data) == 0 {
			break
		}

		for _, entry := range resp.Data {
			item := models.HistoryItem{
				ContentID:    entry.ID,
				ParentID:     entry.ParentID,
				ParentType:   entry.ParentType,
				DatePlayed:   entry.DatePlayed,
				Playhead:     entry.Playhead,
				FullyWatched: entry.FullyWatched,
			}
			if entry.Panel != nil {
				item.Title = entry.Panel.Title
				if _, seriesTitle, _, _, ok := entry.Panel.parentInfo(); ok {
					item.SeriesTitle = seriesTitle
				}
			} else {
				item.Partial = true
			}
			items = append(items, item)
		}

		if page*pageSize >= resp.Total {
			break
		}
	}
	return items, nil
}

// Create replays one history entry via the mark-as-watched endpoint. The
// service sets the playhead itself; there is no way to restore an exact
// mid-episode position.
func (h *HistoryCollection) Create(ctx context.Context, item models.HistoryItem) error {
	path := fmt.Sprintf("/content/v2/discover/%s/mark_as_watched/%s",
		url.PathEscape(h.accountID), url.PathEscape(item.ContentID))
	return h.api.Post(ctx, path, map[string]string{}, nil)
}

type listPreview struct {
	ListID string `json:"list_id"`
	Title  string `json:"title"`
	Total  int    `json:"total"`
}

type listIndex struct {
	Total int           `json:"total"`
	Data  []listPreview `json:"data"`
}

type listItemEntry struct {
	Panel *panel `json:"panel"`
}

type listItemsPage struct {
	Total int             `json:"total"`
	Data  []listItemEntry `json:"data"`
}

// ListsCollection adapts the custom-lists endpoints. List membership is
// flattened to one item per (list, content) pair; the list container is
// created on demand the first time an item targets a name the profile
// doesn't have yet.
type ListsCollection struct {
	api       *APIClient
	accountID string

	mu      sync.Mutex
	listIDs map[string]string // list name -> list_id
}

func NewListsCollection(api *APIClient, accountID string) *ListsCollection {
	return &ListsCollection{api: api, accountID: accountID, listIDs: make(map[string]string)}
}

func (l *ListsCollection) ListExisting(ctx context.Context) ([]models.ListItem, error) {
	index, err := l.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}

	var items []models.ListItem
	for _, preview := range index {
		l.remember(preview.Title, preview.ListID)

		for page := 1; ; page++ {
			path := fmt.Sprintf("/content/v2/%s/custom-lists/%s?page_size=%d&page=%d",
				url.PathEscape(l.accountID), url.PathEscape(preview.ListID), pageSize, page)

			var resp listItemsPage
			if err := l.api.Get(ctx, path, &resp); err != nil {
				return nil, fmt.Errorf("failed to fetch list %q: %w", preview.Title, err)
			}
			if len(resp.Data) == 0 {
				break
			}

			for _, entry := range resp.Data {
				if entry.Panel == nil {
					continue
				}
				id, title, _, _, ok := entry.Panel.parentInfo()
				if !ok {
					continue
				}
				items = append(items, models.ListItem{
					ListName:  preview.Title,
					ContentID: id,
					Title:     title,
				})
			}

			if page*pageSize >= resp.Total {
				break
			}
		}
	}
	return items, nil
}

func (l *ListsCollection) Create(ctx context.Context, item models.ListItem) error {
	listID, err := l.ensureList(ctx, item.ListName)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/content/v2/%s/custom-lists/%s",
		url.PathEscape(l.accountID), url.PathEscape(listID))
	return l.api.Post(ctx, path, map[string]string{"content_id": item.ContentID}, nil)
}

func (l *ListsCollection) fetchIndex(ctx context.Context) ([]listPreview, error) {
	path := fmt.Sprintf("/content/v2/%s/custom-lists", url.PathEscape(l.accountID))
	var index listIndex
	if err := l.api.Get(ctx, path, &index); err != nil {
		return nil, fmt.Errorf("failed to fetch custom lists: %w", err)
	}
	return index.Data, nil
}

func (l *ListsCollection) remember(name, id string) {
	l.mu.Lock()
	l.listIDs[name] = id
	l.mu.Unlock()
}

func (l *ListsCollection) lookup(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.listIDs[name]
	return id, ok
}

// ensureList resolves a list name to its ID, creating the list when the
// profile doesn't have it. Safe for concurrent item writers targeting the
// same new list: the index is re-checked before creating.
func (l *ListsCollection) ensureList(ctx context.Context, name string) (string, error) {
	if id, ok := l.lookup(name); ok {
		return id, nil
	}

	index, err := l.fetchIndex(ctx)
	if err != nil {
		return "", err
	}
	for _, preview := range index {
		l.remember(preview.Title, preview.ListID)
	}
	if id, ok := l.lookup(name); ok {
		return id, nil
	}

	path := fmt.Sprintf("/content/v2/%s/custom-lists", url.PathEscape(l.accountID))
	var created listPreview
	if err := l.api.Post(ctx, path, map[string]string{"title": name}, &created); err != nil {
		return "", fmt.Errorf("failed to create list %q: %w", name, err)
	}
	l.remember(name, created.ListID)
	return created.ListID, nil
}

// RatingsCollection adapts the content-reviews endpoints. The service has
// no endpoint that enumerates a profile's ratings, so ListExisting returns
// nothing and re-imports are absorbed by the write path.
type RatingsCollection struct {
	api       *APIClient
	accountID string
}

func NewRatingsCollection(api *APIClient, accountID string) *RatingsCollection {
	return &RatingsCollection{api: api, accountID: accountID}
}

func (r *RatingsCollection) ListExisting(ctx context.Context) ([]models.RatingItem, error) {
	return nil, nil
}

func (r *RatingsCollection) Create(ctx context.Context, item models.RatingItem) error {
	stars := item.StarValue()
	if stars == 0 {
		return fmt.Errorf("unknown rating %q for %s", item.Rating, item.ContentID)
	}
	path := fmt.Sprintf("/content-reviews/v2/user/%s/rating/%s/%s",
		url.PathEscape(r.accountID), url.PathEscape(item.ContentType), url.PathEscape(item.ContentID))
	return r.api.Put(ctx, path, map[string]string{"rating": fmt.Sprintf("%ds", stars)}, nil)
}

// GetRating probes the profile's rating for one title. Returns "" when the
// title is unrated. Used by the export side, which discovers rated titles
// by probing the watchlist and history parents.
func (r *RatingsCollection) GetRating(ctx context.Context, contentType, contentID string) (string, error) {
	path := fmt.Sprintf("/content-reviews/v2/user/%s/rating/%s/%s",
		url.PathEscape(r.accountID), url.PathEscape(contentType), url.PathEscape(contentID))

	var resp struct {
		Rating string `json:"rating"`
	}
	if err := r.api.Get(ctx, path, &resp); err != nil {
		return "", err
	}
	return starName(resp.Rating), nil
}

// starName maps the wire format ("4s") to the snapshot enum ("FourStars").
func starName(wire string) string {
	switch wire {
	case "1s":
		return models.OneStar
	case "2s":
		return models.TwoStars
	case "3s":
		return models.ThreeStars
	case "4s":
		return models.FourStars
	case "5s":
		return models.FiveStars
	default:
		return ""
	}
}
