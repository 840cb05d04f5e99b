package user

// User represents a user entity in the system.
// Name and Email are nil when the client did not send them; the row then
// stores NULL.
type User struct {
	ID    int64   `json:"id"`    // ID is assigned by storage on insert and never reused
	Name  *string `json:"name"`  // Name is the display name of the user
	Email *string `json:"email"` // Email is unique across all users
}
