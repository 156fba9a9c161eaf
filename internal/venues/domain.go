package venues

import "time"

// Venue is a physical location staff are scheduled at.
type Venue struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Timezone  string    `json:"timezone"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateVenueRequest is the payload for creating a venue.
type CreateVenueRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Address  string `json:"address" validate:"max=500"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// UpdateVenueRequest is a partial update.
type UpdateVenueRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Timezone *string `json:"timezone" validate:"omitempty,timezone"`
	IsActive *bool   `json:"isActive"`
}
