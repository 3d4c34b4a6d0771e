package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thomasjamais/bitget-agent-sub001/internal/auth"
)

const operatorContextKey = "operator"

// authMiddleware validates the bearer token and stores the operator claims
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			errorResponse(c, http.StatusUnauthorized, "authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			errorResponse(c, http.StatusUnauthorized, "invalid authorization header")
			c.Abort()
			return
		}

		claims, err := s.authDeps.JWTManager.ValidateAccessToken(parts[1])
		if err != nil {
			errorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(operatorContextKey, claims)
		c.Next()
	}
}

type loginRequest struct {
	Operator string `json:"operator" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin verifies the operator password and issues a token pair
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "operator and password required")
		return
	}

	if req.Operator != s.authDeps.OperatorName ||
		!s.authDeps.Passwords.VerifyPassword(req.Password, s.authDeps.PasswordHash) {
		s.logger.Warn("Failed login attempt", "operator", req.Operator)
		errorResponse(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := s.authDeps.JWTManager.GenerateTokenPair(auth.OperatorClaims{
		Operator: req.Operator,
		Role:     "operator",
	})
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	successResponse(c, pair)
}
