package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// latestRunsLimit caps the landing-page feed at one slot per
// dispatchable tool.
const latestRunsLimit = 9

type latestRunEntry struct {
	Tool      string          `json:"tool"`
	Symbol    string          `json:"symbol,omitempty"`
	Result    json.RawMessage `json:"result"`
	UpdatedAt string          `json:"updated_at"`
}

// handleLatestRuns is the `GET /latest-runs` public, unauthenticated
// landing-page feed.
func (s *Server) handleLatestRuns(c *gin.Context) {
	rows, err := s.store.LatestPublicRuns(latestRunsLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	entries := make([]latestRunEntry, len(rows))
	for i, r := range rows {
		entries[i] = latestRunEntry{
			Tool: r.Tool, Symbol: r.Symbol,
			Result: json.RawMessage(r.Result), UpdatedAt: r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	c.JSON(http.StatusOK, gin.H{"runs": entries})
}
