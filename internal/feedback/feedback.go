package feedback

import (
	"context"
	"time"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
)

// Ratings a user can give an answer
const (
	RatingUp   = "up"
	RatingDown = "down"
)

// Entry is one rating of an answered question
type Entry struct {
	MessageID string    `json:"message_id"`
	Rating    string    `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists feedback entries in arrival order
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
}

// ValidateRating accepts only "up" and "down"
func ValidateRating(rating string) error {
	if rating != RatingUp && rating != RatingDown {
		return errors.NewInvalidRatingError(rating)
	}
	return nil
}

// NewEntry validates the rating and stamps the entry with the current time
func NewEntry(messageID, rating string) (Entry, error) {
	if err := ValidateRating(rating); err != nil {
		return Entry{}, err
	}
	return Entry{
		MessageID: messageID,
		Rating:    rating,
		Timestamp: time.Now(),
	}, nil
}
