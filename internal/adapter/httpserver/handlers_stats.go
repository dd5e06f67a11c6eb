package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/okatech-org/sgg.ga-sub004/internal/adapter/auth"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	apperrors "github.com/okatech-org/sgg.ga-sub004/internal/platform/errors"
)

const contextKeyUserID = "userID"

// requireAdmin admits bearer tokens of the SGG administrator role.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := s.auth.Authenticate(c.Request())
		if err != nil {
			return apperrors.UnauthorizedError(auth.Reason(err), err)
		}
		c.Set(contextKeyUserID, principal.UserID)

		if principal.Role != domain.RoleAdminSGG {
			return apperrors.ForbiddenError("administrator role required").
				WithContext("role", string(principal.Role))
		}
		return next(c)
	}
}

func (s *Server) handleStats(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.stats.Stats()); err != nil {
		return fmt.Errorf("failed to write stats response: %w", err)
	}
	return nil
}
