package model

import "time"

// SourcePost is a social-media post returned by a search.
type SourcePost struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Author       string    `json:"author"`
	AuthorHandle string    `json:"author_handle"`
	CreatedAt    time.Time `json:"created_at"`
	URL          string    `json:"url"`
	Likes        int       `json:"likes"`
	Retweets     int       `json:"retweets"`
	Replies      int       `json:"replies"`
	Images       []string  `json:"images,omitempty"`
	IsRetweet    bool      `json:"is_retweet"`
	IsQuote      bool      `json:"is_quote"`
}

// FirstImage returns the first attached image URL, if any.
func (p SourcePost) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
