package service

import (
	"context"
	"strings"

	"citizen-card-cli/model"
)

type AuthService struct {
	client *Client
}

func NewAuthService(client *Client) *AuthService {
	return &AuthService{client: client}
}

// Register creates an account and returns the new session.
func (s *AuthService) Register(ctx context.Context, reg model.Registration) (model.AuthResponse, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Email == "" || reg.Password == "" {
		return model.AuthResponse{}, ErrCredentialsRequired
	}
	if err := ValidateEmail(reg.Email); err != nil {
		return model.AuthResponse{}, err
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return model.AuthResponse{}, err
	}
	if reg.Phone != "" {
		if err := ValidatePhone(reg.Phone); err != nil {
			return model.AuthResponse{}, err
		}
	}

	var resp model.AuthResponse
	if err := s.client.postJSON(ctx, "/auth/register", reg, &resp, withoutAuthRedirect()); err != nil {
		return model.AuthResponse{}, wrapErr("auth.register", "registration failed", err)
	}
	return resp, nil
}

// Login exchanges credentials for a session token.
func (s *AuthService) Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return model.AuthResponse{}, ErrCredentialsRequired
	}

	var resp model.AuthResponse
	if err := s.client.postJSON(ctx, "/auth/login", creds, &resp, withoutAuthRedirect()); err != nil {
		return model.AuthResponse{}, wrapErr("auth.login", "login failed", err)
	}
	if resp.Token == "" {
		return model.AuthResponse{}, &DomainError{Op: "auth.login", Message: "login failed: response carried no token"}
	}
	return resp, nil
}

// Logout notifies the server. Callers clear local state regardless of the result.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.client.postJSON(ctx, "/auth/logout", nil, nil, withoutAuthRedirect()); err != nil {
		return wrapErr("auth.logout", "logout failed", err)
	}
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context) (model.User, error) {
	var user model.User
	if err := s.client.getJSON(ctx, "/auth/profile", nil, &user); err != nil {
		return model.User{}, wrapErr("auth.profile", "failed to load profile", err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.User, error) {
	if update.Phone != "" {
		if err := ValidatePhone(update.Phone); err != nil {
			return model.User{}, err
		}
	}
	var user model.User
	if err := s.client.putJSON(ctx, "/auth/profile", update, &user); err != nil {
		return model.User{}, wrapErr("auth.update_profile", "failed to update profile", err)
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, current string, next string) error {
	if current == "" || next == "" {
		return ErrCredentialsRequired
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	body := map[string]string{"currentPassword": current, "newPassword": next}
	if err := s.client.putJSON(ctx, "/auth/password", body, nil); err != nil {
		return wrapErr("auth.change_password", "failed to change password", err)
	}
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	body := map[string]string{"email": email}
	if err := s.client.postJSON(ctx, "/auth/password/reset-request", body, nil, withoutAuthRedirect()); err != nil {
		return wrapErr("auth.reset_request", "failed to request password reset", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenRequired
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	body := map[string]string{"token": token, "newPassword": newPassword}
	if err := s.client.postJSON(ctx, "/auth/password/reset", body, nil, withoutAuthRedirect()); err != nil {
		return wrapErr("auth.reset", "failed to reset password", err)
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenRequired
	}
	if err := s.client.postJSON(ctx, "/auth/verify-email", map[string]string{"token": token}, nil); err != nil {
		return wrapErr("auth.verify_email", "email verification failed", err)
	}
	return nil
}

func (s *AuthService) ResendVerificationEmail(ctx context.Context) error {
	if err := s.client.postJSON(ctx, "/auth/verify-email/resend", nil, nil); err != nil {
		return wrapErr("auth.resend_verification", "failed to resend verification email", err)
	}
	return nil
}

// GetCitizenCard returns the card linked to the current member.
func (s *AuthService) GetCitizenCard(ctx context.Context) (model.CitizenCard, error) {
	var card model.CitizenCard
	if err := s.client.getJSON(ctx, "/members/card", nil, &card); err != nil {
		return model.CitizenCard{}, wrapErr("auth.card", "failed to load citizen card", err)
	}
	return card, nil
}
