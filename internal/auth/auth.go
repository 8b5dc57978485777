package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"memory_stitcher_go_backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// UserProvisioner creates or refreshes the local user for a verified token.
type UserProvisioner interface {
	CreateOrUpdateUser(ctx context.Context, authID, email, name string, isAdmin bool) (*models.User, error)
}

func SetupRoutes(r *gin.Engine, users UserProvisioner, jwtSecret string) {
	auth := r.Group("/auth")
	{
		auth.GET("/user", AuthMiddleware(users, jwtSecret), getUser)
	}
}

func AuthMiddleware(users UserProvisioner, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := zerolog.Ctx(c.Request.Context())

		var token string

		// Browsers cannot set headers on a WebSocket upgrade, so the token comes in the query.
		if websocket.IsWebSocketUpgrade(c.Request) {
			token = c.Query("token")
		} else {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
				return
			}
			token = bearerToken[1]
		}

		claims, err := VerifyToken(token, jwtSecret)
		if err != nil {
			log.Debug().Err(err).Msg("Token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		authID, _ := claims["sub"].(string)
		if authID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has no subject"})
			return
		}
		email, _ := claims["email"].(string)
		name := stringClaim(claims, "user_metadata", "full_name")
		isAdmin := stringClaim(claims, "app_metadata", "role") == "admin"

		user, err := users.CreateOrUpdateUser(c.Request.Context(), authID, email, name, isAdmin)
		if err != nil {
			log.Error().Err(err).Str("authID", authID).Msg("Failed to provision user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process user information"})
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	userModel, ok := user.(*models.User)
	return userModel, ok
}

func getUser(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// VerifyToken checks an HS256 token signed with secret and returns its claims.
func VerifyToken(tokenString, secret string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token is required")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func stringClaim(claims jwt.MapClaims, object, key string) string {
	nested, ok := claims[object].(map[string]interface{})
	if !ok {
		return ""
	}
	value, _ := nested[key].(string)
	return value
}
