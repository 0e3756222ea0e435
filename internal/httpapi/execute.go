package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel/internal/tierpolicy"
)

type executeRequest struct {
	Tool       string          `json:"tool" binding:"required"`
	Parameters json.RawMessage `json:"parameters"`
}

// handleExecute is the `POST /execute` entrypoint: decode the tool
// envelope, hand it to Gateway.Execute, translate the outcome. All
// authorization/quota/persistence logic lives in internal/gateway; this
// handler only does the HTTP <-> Go translation.
func (s *Server) handleExecute(c *gin.Context) {
	ident, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
		return
	}

	resp, err := s.gw.Execute(c.Request.Context(), ident, tierpolicy.Tool(req.Tool), req.Parameters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
