package user

// CreateUserRequest represents the request payload for creating a new user.
// Nil fields are stored as NULL.
type CreateUserRequest struct {
	Name  *string
	Email *string
}

// CreateUserResponse echoes the stored user with its assigned ID.
type CreateUserResponse struct {
	ID    int64
	Name  *string
	Email *string
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users []User
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID    int64
	Name  *string
	Email *string
}
