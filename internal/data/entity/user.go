package entity

// User is an account row. PasswordHash never leaves the repository layer
// in responses.
type User struct {
	Base
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
}
