package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// accessLog is a gin middleware logging one structured line per request
// with logrus, kept separate from the zerolog logger used by the
// analytical core and gateway: access logging at the HTTP edge and
// structured domain logging deeper in the stack are different concerns,
// so each gets the library suited to it.
func accessLog(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Info("http request")
	}
}
