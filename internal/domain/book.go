package domain

import "math"

// Rating is a single user's grade for a book. A user may rate a given
// book at most once; existing votes are never edited in place.
type Rating struct {
	UserID string `json:"userId"`
	Grade  int    `json:"grade"`
}

// Book is a user-submitted catalog entry with an attached cover image.
// OwnerID is set at creation and never changes.
type Book struct {
	Timestamps
	ID            string   `json:"id"`
	OwnerID       string   `json:"userId"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Year          int      `json:"year"`
	Genre         string   `json:"genre"`
	ImageName     string   `json:"imageName"`          // Stored object name, persisted with the record
	ImageURL      string   `json:"imageUrl,omitempty"` // Public URL, derived from ImageName; never persisted as truth
	BlurHash      string   `json:"blurHash,omitempty"`
	Ratings       []Rating `json:"ratings"`
	AverageRating float64  `json:"averageRating"`
}

// RatingBy returns the rating left by the given user, if any.
func (b *Book) RatingBy(userID string) (Rating, bool) {
	for _, r := range b.Ratings {
		if r.UserID == userID {
			return r, true
		}
	}
	return Rating{}, false
}

// RecomputeAverage recalculates AverageRating from the current ratings,
// rounded to one decimal. An empty rating set yields 0.
// Must be called whenever Ratings changes, in the same store transaction
// that persists the new rating.
func (b *Book) RecomputeAverage() {
	if len(b.Ratings) == 0 {
		b.AverageRating = 0
		return
	}
	sum := 0
	for _, r := range b.Ratings {
		sum += r.Grade
	}
	mean := float64(sum) / float64(len(b.Ratings))
	b.AverageRating = math.Round(mean*10) / 10
}
