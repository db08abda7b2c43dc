package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/ports"
	"github.com/layer-3/basetips/service"
	"github.com/rs/zerolog"
)

// maxVerifyBody caps /auth/verify request bodies; a signed SIWE message is a few hundred bytes
const maxVerifyBody = 64 << 10

// AuthHandlers contains HTTP handlers for the SIWE endpoints
type AuthHandlers struct {
	authService *service.AuthService
	sessions    ports.SessionStore
	logger      zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, sessions ports.SessionStore, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		sessions:    sessions,
		logger:      logger,
	}
}

// Nonce issues a fresh nonce and stores it in the session cookie
func (h *AuthHandlers) Nonce(c *gin.Context) {
	session := sessionFrom(c)

	nonce, err := h.authService.IssueNonce(c.Request.Context(), session)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue nonce")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	if err := h.sessions.Save(c.Writer, session); err != nil {
		h.logger.Error().Err(err).Msg("failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify checks a signed SIWE message against the session nonce
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxVerifyBody)
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid verify request")
		c.JSON(http.StatusBadRequest, core.Rejected(err))
		return
	}

	session := sessionFrom(c)
	before := *session

	result := h.authService.Verify(c.Request.Context(), session, req.Message, req.Signature)

	if *session != before {
		if err := h.sessions.Save(c.Writer, session); err != nil {
			h.logger.Error().Err(err).Msg("failed to save session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
			return
		}
	}

	if !result.OK {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me returns the verified identity of the session, or nulls
func (h *AuthHandlers) Me(c *gin.Context) {
	identity := h.authService.Me(sessionFrom(c))
	if identity == nil {
		c.JSON(http.StatusOK, gin.H{"address": nil, "chainId": nil})
		return
	}

	c.JSON(http.StatusOK, identity)
}

// Logout clears the session cookie
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context(), sessionFrom(c))
	h.sessions.Clear(c.Writer)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DashboardHandlers contains HTTP handlers for the merchant dashboard
type DashboardHandlers struct {
	dashboard *service.DashboardService
	logger    zerolog.Logger
}

// NewDashboardHandlers creates new dashboard handlers
func NewDashboardHandlers(dashboard *service.DashboardService, logger zerolog.Logger) *DashboardHandlers {
	return &DashboardHandlers{
		dashboard: dashboard,
		logger:    logger,
	}
}

// Tips lists recent tips received by the signed in wallet
func (h *DashboardHandlers) Tips(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	tips, mock := h.dashboard.RecentTips(c.Request.Context(), c.GetString(addressKey), limit)

	c.JSON(http.StatusOK, gin.H{
		"tips": tips,
		"mock": mock,
	})
}

// MyQR renders the sticker of the signed in wallet
func (h *DashboardHandlers) MyQR(c *gin.Context) {
	h.renderQR(c, c.GetString(addressKey), "private, no-store")
}

// QR renders the sticker of any address
func (h *DashboardHandlers) QR(c *gin.Context) {
	h.renderQR(c, c.Param("address"), "public, max-age=86400")
}

// renderQR writes a PNG, or {"dataUrl": ...} when format=dataurl
func (h *DashboardHandlers) renderQR(c *gin.Context, address, cacheControl string) {
	size, _ := strconv.Atoi(c.Query("size"))

	if c.Query("format") == "dataurl" {
		url, err := h.dashboard.QRDataURL(address, size)
		if err != nil {
			h.qrError(c, address, err)
			return
		}
		c.Header("Cache-Control", cacheControl)
		c.JSON(http.StatusOK, gin.H{"dataUrl": url})
		return
	}

	png, err := h.dashboard.QRCode(address, size)
	if err != nil {
		h.qrError(c, address, err)
		return
	}

	c.Header("Cache-Control", cacheControl)
	c.Data(http.StatusOK, "image/png", png)
}

func (h *DashboardHandlers) qrError(c *gin.Context, address string, err error) {
	if errors.Is(err, core.ErrInvalidAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}
	h.logger.Error().Err(err).Str("address", address).Msg("failed to render qr")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
