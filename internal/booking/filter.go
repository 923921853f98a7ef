package booking

import (
	"strings"

	"cliquesaude/internal/models"
)

// ParseStatusFilter turns the raw ?status= value into the status set to
// query. Grammar:
//
//	"" or "all"      no filter (nil)
//	"scheduled"      shorthand for {pending, confirmed}
//	single status    exact filter
//	comma list       set filter; "scheduled" is not valid inside a list
func ParseStatusFilter(raw string) ([]string, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || normalized == "all" {
		return nil, nil
	}

	if normalized == "scheduled" {
		return []string{models.StatusPending, models.StatusConfirmed}, nil
	}

	if strings.Contains(normalized, ",") {
		var statuses []string
		for _, part := range strings.Split(normalized, ",") {
			token := strings.TrimSpace(part)
			if token == "" {
				continue
			}
			if token == "scheduled" || !models.ValidStatus(token) {
				return nil, &FilterError{Token: token}
			}
			statuses = append(statuses, token)
		}
		if len(statuses) == 0 {
			return nil, &FilterError{}
		}
		return statuses, nil
	}

	if !models.ValidStatus(normalized) {
		return nil, &FilterError{}
	}
	return []string{normalized}, nil
}
