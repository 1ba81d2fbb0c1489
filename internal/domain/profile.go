package domain

// Profile mirrors one record of the profile registry, keyed by account
// address. A record with IsActive == false is observationally equivalent to an
// absent one; the query layer reports both as "no profile".
type Profile struct {
	Account          Address  `json:"account"`
	IsActive         bool     `json:"is_active"`
	ContactInfo      string   `json:"contact_info"`
	OnSiteStatus     bool     `json:"on_site_status"`
	TravelDetails    string   `json:"travel_details"`
	LastStatusUpdate int64    `json:"last_status_update"` // unix seconds
	ExpertiseAreas   []string `json:"expertise_areas"`
	Credentials      string   `json:"credentials"`
	Bio              string   `json:"bio"`
}

// Stats holds the registry's derived counters for an account. They are
// read-only from the client's perspective; other operations move them.
type Stats struct {
	Account    Address `json:"account"`
	Completed  uint64  `json:"completed"`
	Created    uint64  `json:"created"`
	Responses  uint64  `json:"responses"`
	LastActive int64   `json:"last_active"` // unix seconds
}
