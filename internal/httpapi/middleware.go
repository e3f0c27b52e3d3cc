package httpapi

import (
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/gin-gonic/gin"
)

// requireUser resolves the caller from the gateway-supplied header.
func requireUser() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, err := booking.NewUserID(ctx.GetHeader(userHeader))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing "+userHeader+" header"))
			return
		}
		ctx.Set(userContextKey, userID)
		ctx.Next()
	}
}

func currentUser(ctx *gin.Context) booking.UserID {
	value, _ := ctx.Get(userContextKey)
	userID, _ := value.(booking.UserID)
	return userID
}

func observeRequests(observer RequestObserver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		startedAt := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer(ctx.Request.Method, route, ctx.Writer.Status(), time.Since(startedAt))
	}
}
