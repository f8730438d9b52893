package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/your-org/beacon/internal/errs"
)

// fail writes a typed core error as JSON with the matching status code.
func fail(c *gin.Context, err error) {
	c.JSON(errs.HTTPStatus(err), gin.H{
		"error": errs.Message(err),
		"kind":  errs.KindOf(err).String(),
	})
}
