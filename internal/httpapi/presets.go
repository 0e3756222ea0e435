package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel/internal/store"
	"sentinel/internal/tierpolicy"
)

type presetDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Tool      string          `json:"tool"`
	Params    json.RawMessage `json:"params"`
	IsDefault bool            `json:"is_default"`
	CreatedAt string          `json:"created_at"`
}

// handleListPresets is `GET /presets`, scoped to paid tiers by the
// requireProOrMax middleware.
func (s *Server) handleListPresets(c *gin.Context) {
	ident, _ := identityFrom(c)
	presets, err := s.store.ListPresets(ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	out := make([]presetDTO, len(presets))
	for i, p := range presets {
		out[i] = toPresetDTO(p)
	}
	c.JSON(http.StatusOK, gin.H{"presets": out})
}

type createPresetRequest struct {
	Name      string          `json:"name" binding:"required"`
	Tool      string          `json:"tool" binding:"required"`
	Params    json.RawMessage `json:"params" binding:"required"`
	IsDefault bool            `json:"is_default"`
}

// handleCreatePreset is `POST /presets`.
func (s *Server) handleCreatePreset(c *gin.Context) {
	ident, _ := identityFrom(c)
	var req createPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
		return
	}

	preset, err := s.store.CreatePreset(ident.UserID, req.Name, req.Tool, string(req.Params), req.IsDefault)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, toPresetDTO(preset))
}

type updatePresetRequest struct {
	Params    json.RawMessage `json:"params"`
	IsDefault *bool           `json:"is_default"`
}

// handleUpdatePreset is `PUT /presets/:id`.
func (s *Server) handleUpdatePreset(c *gin.Context) {
	ident, _ := identityFrom(c)
	id := c.Param("id")

	var req updatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
		return
	}

	if len(req.Params) > 0 {
		if err := s.store.UpdatePresetParams(ident.UserID, id, string(req.Params)); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
	}
	if req.IsDefault != nil && *req.IsDefault {
		if err := s.store.SetDefault(ident.UserID, id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
	}

	preset, err := s.store.GetPreset(ident.UserID, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, toPresetDTO(preset))
}

type deletePresetRequest struct {
	OTPCode string `json:"otp_code"`
}

// handleDeletePreset is `DELETE /presets/:id`. Deletion is idempotent at
// the store layer; on max tier with an enrolled TOTP secret, the caller
// must also pass a valid otp_code, since deleting a preset is
// destructive and hard to reverse.
func (s *Server) handleDeletePreset(c *gin.Context) {
	ident, _ := identityFrom(c)

	if ident.Tier == tierpolicy.TierMax && s.gw.OTP != nil {
		if secret := totpSecretFrom(c); secret != "" {
			var req deletePresetRequest
			_ = c.ShouldBindJSON(&req)
			if req.OTPCode == "" || !s.gw.OTP.Verify(secret, req.OTPCode) {
				c.JSON(http.StatusForbidden, gin.H{"error": "otp_required"})
				return
			}
		}
	}

	if err := s.store.DeletePreset(ident.UserID, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func toPresetDTO(p store.Preset) presetDTO {
	return presetDTO{
		ID: p.ID, Name: p.Name, Tool: p.Tool,
		Params: json.RawMessage(p.Params), IsDefault: p.IsDefault,
		CreatedAt: p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
