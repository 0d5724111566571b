package api

// ProfileRequest is the body of PUT /api/v1/profile
type ProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UsersResponse is returned by GET /api/v1/users
type UsersResponse struct {
	Users []User `json:"users"`
}

// HealthResponse is returned by GET /api/v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
