package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "storefront-service/common/errors"
	"storefront-service/middleware"
	"storefront-service/models"
	"storefront-service/services"
)

type AuthController struct {
	auth         services.AuthService
	cookieMaxAge int
	secureCookie bool
}

// NewAuthController sets session cookies that live for cookieMaxAge seconds.
// secure marks them HTTPS-only.
func NewAuthController(auth services.AuthService, cookieMaxAge int, secure bool) *AuthController {
	return &AuthController{auth: auth, cookieMaxAge: cookieMaxAge, secureCookie: secure}
}

// Signup handles POST /signup.
func (ac *AuthController) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := ac.auth.Signup(c.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Account created", "user": user})
}

// Login handles POST /login and sets the session cookie.
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, user, err := ac.auth.Login(c.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, token, ac.cookieMaxAge, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token, "user": user})
}

// Logout handles POST /logout.
func (ac *AuthController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
