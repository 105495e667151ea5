package http

import (
	"fmt"
	"net/http"
	"strconv"

	"aarthik/internal/core"
	applog "aarthik/internal/log"
	"aarthik/internal/services"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	u, err := s.profiles.RegisterUser(r.Context(), services.NewUser{
		Email:    req.Email,
		Name:     sanitizeInput(req.FullName),
		Currency: req.Currency,
	})
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	out := signupView{User: newUserView(u)}
	if s.issuer != nil {
		token, err := s.issuer.Issue(u.ID)
		if err != nil {
			FromError(r, fmt.Errorf("issue token: %w", err)).Write(w)
			return
		}
		out.Token = token
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered", applog.FieldUserID, u.ID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Data(out).
		Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.profiles.User(r.Context(), identity(r).UserID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newUserView(u)).Write(w)
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	id := identity(r)
	if _, err := s.profiles.SetCurrency(r.Context(), id.UserID, req.Currency); err != nil {
		FromError(r, err).Write(w)
		return
	}
	u, err := s.profiles.User(r.Context(), id.UserID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newUserView(u)).Write(w)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	ps, err := s.profiles.ListProfiles(r.Context(), identity(r).UserID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newProfileViews(ps)).Write(w)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	p, err := s.profiles.CreateProfile(r.Context(), identity(r).UserID, sanitizeInput(req.Name))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/profiles/"+strconv.FormatInt(p.ProfileID, 10)).
		Data(newProfileView(p)).
		Write(w)
}

func (s *Server) handleSwitchProfile(w http.ResponseWriter, r *http.Request) {
	var req switchProfileRequest
	if err := DecodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	if req.ProfileID <= 0 {
		BadRequestError(fmt.Sprintf("%s: profile_id must be positive", core.ErrInvalidArgument)).Write(w)
		return
	}
	res, err := s.profiles.SwitchProfile(r.Context(), identity(r).UserID, req.ProfileID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(switchView{Message: res.Message, Profile: newProfileView(res.Profile)}).Write(w)
}
