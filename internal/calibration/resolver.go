// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package calibration

import (
	"strings"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// Fallback substrings accepted as the scout's display name. Roster entries
// arrive with inconsistent naming across data sources, so the last matching
// tier tolerates decorated or renamed scout accounts.
const (
	fallbackScout = "scout"
	fallbackBot   = "bot"
)

// ResolveScout locates the scout participant in a roster snapshot.
//
// Matching tiers, strict priority, short-circuit on first match:
//  1. case-insensitive email equality, attempted only when a target email is
//     supplied and at least one roster entry exposes an email;
//  2. case-insensitive display-name equality;
//  3. case-insensitive substring of the target name within the entry name, or
//     the entry name containing "scout" or "bot".
//
// A roster with no match in any tier is a not-found error.
func ResolveScout(roster []models.Participant, targetName, targetEmail string) (*models.Participant, error) {
	if targetEmail != "" && rosterHasEmail(roster) {
		wantEmail := strings.ToLower(targetEmail)
		for i := range roster {
			if strings.ToLower(roster[i].Email) == wantEmail {
				return &roster[i], nil
			}
		}
	}

	wantName := strings.ToLower(targetName)
	for i := range roster {
		if strings.ToLower(roster[i].Name) == wantName {
			return &roster[i], nil
		}
	}

	for i := range roster {
		name := strings.ToLower(roster[i].Name)
		if wantName != "" && strings.Contains(name, wantName) {
			return &roster[i], nil
		}
		if strings.Contains(name, fallbackScout) || strings.Contains(name, fallbackBot) {
			return &roster[i], nil
		}
	}

	return nil, domain.NewNotFoundError("scout participant not found in roster")
}

func rosterHasEmail(roster []models.Participant) bool {
	for i := range roster {
		if roster[i].Email != "" {
			return true
		}
	}
	return false
}
