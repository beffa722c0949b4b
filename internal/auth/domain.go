package auth

// User is an account from the static credential directory.
type User struct {
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
}
