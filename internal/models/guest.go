package models

import "time"

// Guest is a hotel guest profile managed by a hotel manager. All reads and
// writes go through the secure data wrapper, never straight to the repo.
type Guest struct {
	ID             string     `json:"id"`
	HotelManagerID string     `json:"hotel_manager_id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Nationality    string     `json:"nationality"`
	Notes          string     `json:"notes"`
	CheckIn        *time.Time `json:"check_in"`
	CheckOut       *time.Time `json:"check_out"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
