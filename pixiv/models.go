package pixiv

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedWork flags a work item the API returned without its required
// fields. Callers treat this as a recoverable parse failure.
var ErrMalformedWork = errors.New("malformed work item")

// ErrNotFound distinguishes a missing artist/work from a transient upstream error.
var ErrNotFound = errors.New("not found")

type ImageURLs struct {
	SquareMedium string `json:"square_medium"`
	Medium       string `json:"medium"`
	Large        string `json:"large"`
	Original     string `json:"original,omitempty"`
}

type Artist struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Account string `json:"account"`

	ProfileImageURLs struct {
		Medium string `json:"medium"`
	} `json:"profile_image_urls"`
}

func (a Artist) ArtistID() string {
	return strconv.FormatInt(a.ID, 10)
}

// Illust is one published work. The upstream payload is much larger; only the
// fields the watcher needs are decoded, and anything unrecognized is dropped.
type Illust struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Type       string    `json:"type"`
	Caption    string    `json:"caption"`
	CreateDate string    `json:"create_date"`
	PageCount  int       `json:"page_count"`
	ImageURLs  ImageURLs `json:"image_urls"`
	Artist     Artist    `json:"user"`

	MetaSinglePage struct {
		OriginalImageURL string `json:"original_image_url"`
	} `json:"meta_single_page"`

	MetaPages []struct {
		ImageURLs ImageURLs `json:"image_urls"`
	} `json:"meta_pages"`
}

// WorkID is the string marker used for change detection.
func (il *Illust) WorkID() string {
	return strconv.FormatInt(il.ID, 10)
}

func (il *Illust) PageURL() string {
	return fmt.Sprintf("https://www.pixiv.net/artworks/%d", il.ID)
}

func (il *Illust) Validate() error {
	if il.ID == 0 {
		return fmt.Errorf("%w: missing id", ErrMalformedWork)
	}
	if il.Artist.ID == 0 {
		return fmt.Errorf("%w: work %d has no author", ErrMalformedWork, il.ID)
	}
	return nil
}

type IllustListResponse struct {
	Illusts []Illust `json:"illusts"`
	NextURL string   `json:"next_url,omitempty"`
}

type UserDetail struct {
	Artist  Artist `json:"user"`
	Profile struct {
		TotalIllusts int `json:"total_illusts"`
		TotalManga   int `json:"total_manga"`
	} `json:"profile"`
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
