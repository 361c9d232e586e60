package store

import "clinicq/queue-engine/internal/models"

var transitionMap = map[string][]string{
	models.StatusCheckedIn:   {models.StatusCalled, models.StatusFastTracked, models.StatusNoShow},
	models.StatusFastTracked: {models.StatusCalled, models.StatusCheckedIn, models.StatusNoShow},
	models.StatusCalled:      {models.StatusCompleted, models.StatusNoShow},
}

// ValidTransition reports whether a ticket may move from one status to
// another. Terminal statuses have no outgoing transitions.
func ValidTransition(from, to string) bool {
	allowed, ok := transitionMap[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}
