package entities

// DashboardStats is the admin overview of content volume
type DashboardStats struct {
	Facilities         int            `json:"facilities"`
	VerifiedFacilities int            `json:"verified_facilities"`
	Recommendations    int            `json:"recommendations"`
	RecommendationsWk  int            `json:"recommendations_last_7_days"`
	Reactions          int            `json:"reactions"`
	PendingRequests    int            `json:"pending_requests"`
	ByCategory         map[string]int `json:"recommendations_by_category"`
	ByArea             map[string]int `json:"facilities_by_area"`
}
