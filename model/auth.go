package model

import "time"

type User struct {
	ID            ID        `json:"id"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	HolderName    string    `json:"holderName,omitempty"`
	CardType      string    `json:"cardType,omitempty"`
	Role          string    `json:"role,omitempty"`
	IsVerified    bool      `json:"isVerified"`
	IsActive      bool      `json:"isActive"`
	RegisterDate  time.Time `json:"registerDate,omitzero"`
	LastLoginTime time.Time `json:"lastLoginTime,omitzero"`
}

type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

type CitizenCard struct {
	CardNumber string    `json:"cardNumber"`
	CardType   string    `json:"cardType"`
	HolderName string    `json:"holderName"`
	Status     string    `json:"status"`
	IssuedAt   time.Time `json:"issuedAt,omitzero"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone,omitempty"`
	HolderName string `json:"holderName,omitempty"`
	CardType   string `json:"cardType,omitempty"`
}

type ProfileUpdate struct {
	Phone      string `json:"phone,omitempty"`
	HolderName string `json:"holderName,omitempty"`
}

// AuthResponse is the payload returned by login and register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
