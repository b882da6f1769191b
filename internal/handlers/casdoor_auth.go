package handlers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/config"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/utils"
)

// TokenParser validates a bearer token and returns its claims
type TokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	parser   TokenParser
	userRepo repositories.UserRepository
	logger   utils.Logger
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return NewAuthMiddlewareWithParser(client, userRepo, logger)
}

func NewAuthMiddlewareWithParser(parser TokenParser, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		parser:   parser,
		userRepo: userRepo,
		logger:   logger,
	}
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			respondError(c, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}

		claims, err := cam.parser.ParseJwtToken(token)
		if err != nil {
			utils.GetLogger(c, cam.logger).Debug("Rejected bearer token", "error", err)
			respondError(c, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			respondError(c, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		// Set user information in context
		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role; admins always pass
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			respondError(c, http.StatusForbidden, ErrorResponse{Error: "you do not have access to this resource"})
			return
		}

		if role != models.RoleAdmin && !slices.Contains(requiredRoles, role) {
			respondError(c, http.StatusForbidden, ErrorResponse{Error: "you do not have access to this resource"})
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// extractUserFromClaims prefers the stored user and falls back to the token's own claims
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	if cam.userRepo != nil {
		if user, err := cam.userRepo.GetByID(ctx, userID); err == nil {
			return user, nil
		}
	}
	return createUserFromClaims(claims), nil
}

func createUserFromClaims(claims *casdoorsdk.Claims) *models.User {
	roleNames := make([]string, 0, len(claims.User.Roles)+1)
	for _, role := range claims.User.Roles {
		if role != nil {
			roleNames = append(roleNames, role.Name)
		}
	}
	if claims.User.Type != "" {
		roleNames = append(roleNames, claims.User.Type)
	}

	avatarURL := claims.User.Avatar
	now := time.Now()
	return &models.User{
		ID:            claims.Id,
		FullName:      claims.User.DisplayName,
		Email:         claims.User.Email,
		Role:          casdoor.ResolveRole(roleNames, claims.User.IsAdmin),
		AvatarURL:     &avatarURL,
		EmailVerified: claims.User.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
