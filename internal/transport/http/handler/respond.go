package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bravo68web/qadeck/internal/application/dto"
	"github.com/bravo68web/qadeck/internal/transport/http/middleware"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, dto.OK(data))
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperrors.HTTPStatusOf(err), dto.Fail(err))
}

// requireUser returns the caller's ID or answers 401 and returns ""
func requireUser(c *gin.Context) string {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, dto.Fail(apperrors.Unauthorized("", apperrors.ErrUnauthorized)))
	}
	return userID
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperrors.ValidationError(param, "invalid "+param))
		return 0, false
	}
	return id, true
}
