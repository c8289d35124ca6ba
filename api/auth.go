package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler issues tokens for the single operator identity. There is no
// signup: the operator password hash comes from configuration.
type AuthHandler struct {
	operatorHash  string
	jwtSecret     string
	tokenDuration time.Duration
}

func NewAuthHandler(operatorHash, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{operatorHash: operatorHash, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signinRequest struct {
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}
	if h.operatorHash == "" {
		http.Error(w, "Signin disabled: no operator password configured", http.StatusForbidden)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(h.operatorHash), []byte(req.Password)) != nil {
		http.Error(w, "Credentials not found", http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(h.tokenDuration).Unix(),
	})
	tokenStr, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(authResponse{Token: tokenStr})
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// stateless JWT: signout is client-side (just delete the token)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"signed out"}`)
}
