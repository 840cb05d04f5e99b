package handler

import (
	"net/http"

	"users-api/api/swagger"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Swagger serves the embedded OpenAPI document and the Swagger UI that
// renders it. Mount it on a "/swagger/*any" route.
func Swagger() gin.HandlerFunc {
	ui := httpSwagger.Handler(httpSwagger.URL("/swagger/" + swagger.FileName))

	return func(c *gin.Context) {
		if c.Param("any") == "/"+swagger.FileName {
			c.Data(http.StatusOK, "application/json; charset=utf-8", swagger.Doc)
			return
		}
		ui(c.Writer, c.Request)
	}
}
