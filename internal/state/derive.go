package state

import (
	"math"

	"securemarket/internal/models"
)

// AverageRating returns the mean review rating rounded to one decimal place, or 0 without reviews
func AverageRating(reviews []models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}

// CountUnread counts unread messages addressed to the session user
func CountUnread(messages []models.Message, current *models.User) int {
	if current == nil {
		return 0
	}
	n := 0
	for _, m := range messages {
		if m.ReceiverID == current.ID && !m.Read {
			n++
		}
	}
	return n
}

func withDerivedRating(p models.Product) models.Product {
	p.Rating = AverageRating(p.Reviews)
	p.ReviewCount = len(p.Reviews)
	return p
}
