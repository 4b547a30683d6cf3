package domain

// User is an account that can submit and rate books.
// Email uniqueness is enforced case-insensitively by the store.
type User struct {
	Timestamps
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
}
