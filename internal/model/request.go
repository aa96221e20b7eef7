package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Username            string `json:"username"`
	Password            string `json:"password"`
	Role                string `json:"role"`
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	IsPasswordTemporary *bool  `json:"isPasswordTemporary"`
}

// UpdateUserRequest carries only the fields the caller wants to change.
type UpdateUserRequest struct {
	Username            *string `json:"username"`
	Password            *string `json:"password"`
	Role                *string `json:"role"`
	FirstName           *string `json:"firstName"`
	LastName            *string `json:"lastName"`
	IsPasswordTemporary *bool   `json:"isPasswordTemporary"`
}
