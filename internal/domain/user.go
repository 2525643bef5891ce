package domain

import "time"

// User es el registro de credenciales persistido en el store.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreationDate time.Time  `json:"creationDate"`
	LastAccess   *time.Time `json:"lastAccess"`
}

// UserView es la representación pública de un usuario; nunca incluye el hash.
type UserView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	CreationDate time.Time  `json:"creationDate"`
	LastAccess   *time.Time `json:"lastAccess"`
}

func (u User) Public() UserView {
	return UserView{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		CreationDate: u.CreationDate,
		LastAccess:   u.LastAccess,
	}
}
