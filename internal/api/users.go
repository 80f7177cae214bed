package api

import (
	"net/http"
	"strconv"

	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// UserHandler serves the account endpoints the note client calls
// before opening a sync socket.
type UserHandler struct {
	store *store.GORMStore
}

func NewUserHandler(s *store.GORMStore) *UserHandler {
	return &UserHandler{store: s}
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinResponse struct {
	Email   string `json:"email"`
	License string `json:"license"`
	Name    string `json:"name"`
	Token   string `json:"token"`
}

// Signin validates credentials and mints a session token.
func (h *UserHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.store.ValidateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.store.CreateToken(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, signinResponse{
		Email:   user.Email,
		License: "",
		Name:    user.Name,
		Token:   token.Token,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

type infoResponse struct {
	Email    string  `json:"email"`
	MFA      bool    `json:"mfa"`
	Credit   int     `json:"credit"`
	Discount *string `json:"discount"`
	License  string  `json:"license"`
	Name     string  `json:"name"`
	Payment  string  `json:"payment"`
	UID      string  `json:"uid"`
}

// Info resolves a token into the account profile.
func (h *UserHandler) Info(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.store.GetUserToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, infoResponse{
		Email: token.User.Email,
		Name:  token.User.Name,
		UID:   strconv.FormatInt(token.User.ID, 10),
	})
}

// Signout revokes a token. An unknown token is not an error.
func (h *UserHandler) Signout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.DeleteToken(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, struct{}{})
}
