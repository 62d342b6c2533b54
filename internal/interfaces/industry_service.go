package interfaces

import (
	"github.com/ternarybob/finreview/internal/models"
)

// IndustryService resolves industry analysis profiles by code or Chinese
// display name.
type IndustryService interface {
	// GetProfile returns the profile for an industry code or name.
	// Unknown industries return a not_found error naming the supported
	// codes.
	GetProfile(industry string) (*models.IndustryProfile, error)

	// ListProfiles returns all registered profiles in registration order.
	ListProfiles() []*models.IndustryProfile

	// SupportedIndustries returns the registered industry codes.
	SupportedIndustries() []string
}
