package models

import "encoding/json"

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResult struct {
	UserInfo json.RawMessage `json:"user_info"`
	Message  string          `json:"message"`
}
