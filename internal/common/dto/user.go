package dto

import "time"

type RunningApp struct {
	Name    string    `json:"name"`
	StartAt time.Time `json:"startAt"`
}

// User is the operator view of an identity. UserApp is null when the device
// reports no running application.
type User struct {
	GUID           string      `json:"guid"`
	Name           string      `json:"name"`
	Role           string      `json:"role"`
	IsBlocked      bool        `json:"isBlocked"`
	IsLogged       bool        `json:"isLogged"`
	ExpirationDate time.Time   `json:"expirationDate"`
	CreatedAt      time.Time   `json:"createdAt"`
	UserApp        *RunningApp `json:"userApp"`
}
