package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Me(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	perms, err := s.rolePermissionCodes(c, user.RoleCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user":        user,
		"permissions": perms,
	}})
}

func (s *Server) UpdateProfile(c *gin.Context) {
	var req authdomain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authSvc.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) ChangePassword(c *gin.Context) {
	var req authdomain.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authSvc.ChangePassword(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"changed": true}})
}

// rolePermissionCodes lists the permission codes granted to the role code.
func (s *Server) rolePermissionCodes(c *gin.Context, roleCode string) ([]string, error) {
	roles, err := s.authzSvc.ListRoles(c.Request.Context())
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role.Code != roleCode {
			continue
		}
		perms, err := s.authzSvc.RolePermissions(c.Request.Context(), role.ID.String())
		if err != nil {
			return nil, err
		}
		codes := make([]string, 0, len(perms))
		for _, perm := range perms {
			codes = append(codes, perm.Code)
		}
		return codes, nil
	}
	return []string{}, nil
}
