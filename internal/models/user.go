package models

// User is a record of the upstream user collection.
// ID is unique; Name is unique by contract of the upstream provider.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
