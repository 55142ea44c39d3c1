package entity

import "time"

// User represents an account row in the `users` table.
type User struct {
	ID              int64     `db:"id"`
	Email           string    `db:"email"`
	Name            string    `db:"name"`
	PasswordHash    string    `db:"hashed_password"`
	IsEmailVerified bool      `db:"is_email_verified"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// View is the fixed public serialization of a User. The password hash never
// leaves the service.
type View struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (u *User) View() View {
	return View{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
