package fakeapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"citizen-card-cli/model"
	"citizen-card-cli/service"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if !s.decode(w, r, &reg) {
		return
	}
	reg.Email = strings.TrimSpace(reg.Email)
	fields := map[string]string{}
	if err := service.ValidateEmail(reg.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := service.ValidatePassword(reg.Password); err != nil {
		fields["password"] = err.Error()
	}
	if reg.Phone != "" {
		if err := service.ValidatePhone(reg.Phone); err != nil {
			fields["phone"] = err.Error()
		}
	}
	if len(fields) > 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "registration data is invalid", fields)
		return
	}

	s.state.mu.Lock()
	if _, taken := s.state.emails[strings.ToLower(reg.Email)]; taken {
		s.state.mu.Unlock()
		s.writeError(w, http.StatusConflict, "EMAIL_TAKEN", "email is already registered", nil)
		return
	}
	mem := s.state.addMember(reg, s.cfg.Now().UTC())
	s.state.verifyTokens[uuid.NewString()] = mem.user.ID
	user := mem.user
	s.state.mu.Unlock()

	s.respondWithSession(w, http.StatusCreated, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if !s.decode(w, r, &creds) {
		return
	}
	s.state.mu.Lock()
	id, ok := s.state.emails[strings.ToLower(strings.TrimSpace(creds.Email))]
	var mem *member
	if ok {
		mem = s.state.members[id]
	}
	if mem == nil || mem.password != creds.Password {
		s.state.mu.Unlock()
		s.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}
	mem.user.LastLoginTime = s.cfg.Now().UTC()
	user := mem.user
	s.state.mu.Unlock()

	s.respondWithSession(w, http.StatusOK, user)
}

func (s *Server) respondWithSession(w http.ResponseWriter, status int, user model.User) {
	token, err := s.jwt.GenerateToken(user.ID.String())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "TOKEN_FAILED", "could not issue a session", nil)
		return
	}
	s.writeJSON(w, status, model.AuthResponse{Token: token, User: user})
}

// logout revokes the presented token. Missing or invalid tokens still succeed.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessionFrom(r); ok {
		s.jwt.Revoke(sess.claims)
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	user := s.state.members[currentSession(r).memberID].user
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var update model.ProfileUpdate
	if !s.decode(w, r, &update) {
		return
	}
	if update.Phone != "" {
		if err := service.ValidatePhone(update.Phone); err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), map[string]string{"phone": err.Error()})
			return
		}
	}
	s.state.mu.Lock()
	mem := s.state.members[currentSession(r).memberID]
	if update.Phone != "" {
		mem.user.Phone = update.Phone
	}
	if update.HolderName != "" {
		mem.user.HolderName = update.HolderName
	}
	user := mem.user
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := service.ValidatePassword(body.NewPassword); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), map[string]string{"newPassword": err.Error()})
		return
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	mem := s.state.members[currentSession(r).memberID]
	if mem.password != body.CurrentPassword {
		s.writeError(w, http.StatusBadRequest, "WRONG_PASSWORD", "current password is incorrect", nil)
		return
	}
	mem.password = body.NewPassword
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requestPasswordReset always succeeds so the endpoint does not reveal
// which emails are registered.
func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.state.mu.Lock()
	if id, ok := s.state.emails[strings.ToLower(strings.TrimSpace(body.Email))]; ok {
		token := uuid.NewString()
		s.state.resetTokens[token] = id
		s.logger.WithField("email", body.Email).WithField("token", token).Info("password reset requested")
	}
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := service.ValidatePassword(body.NewPassword); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), map[string]string{"newPassword": err.Error()})
		return
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	id, ok := s.state.resetTokens[body.Token]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "reset token is invalid or has been used", nil)
		return
	}
	delete(s.state.resetTokens, body.Token)
	s.state.members[id].password = body.NewPassword
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	id, ok := s.state.verifyTokens[body.Token]
	if !ok || id != currentSession(r).memberID {
		s.writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "verification token is invalid", nil)
		return
	}
	delete(s.state.verifyTokens, body.Token)
	s.state.members[id].user.IsVerified = true
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	id := currentSession(r).memberID
	s.state.mu.Lock()
	verified := s.state.members[id].user.IsVerified
	if !verified {
		token := uuid.NewString()
		s.state.verifyTokens[token] = id
		s.logger.WithField("member_id", id).WithField("token", token).Info("verification email sent")
	}
	s.state.mu.Unlock()
	if verified {
		s.writeError(w, http.StatusConflict, "ALREADY_VERIFIED", "email is already verified", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// VerificationToken returns a pending verification token for the member, for tests and tooling.
func (s *Server) VerificationToken(email string) (string, bool) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	id, ok := s.state.emails[strings.ToLower(email)]
	if !ok {
		return "", false
	}
	for token, owner := range s.state.verifyTokens {
		if owner == id {
			return token, true
		}
	}
	return "", false
}

// ResetToken returns a pending password reset token for the member.
func (s *Server) ResetToken(email string) (string, bool) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	id, ok := s.state.emails[strings.ToLower(email)]
	if !ok {
		return "", false
	}
	for token, owner := range s.state.resetTokens {
		if owner == id {
			return token, true
		}
	}
	return "", false
}

func (s *Server) getCard(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	mem := s.state.members[currentSession(r).memberID]
	card := model.CitizenCard{
		CardNumber: mem.cardNumber,
		CardType:   mem.cardType,
		HolderName: mem.user.HolderName,
		Status:     "ACTIVE",
		IssuedAt:   mem.user.RegisterDate,
	}
	s.state.mu.Unlock()
	s.writeJSON(w, http.StatusOK, card)
}
