package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-sync/internal/session"
	"todo-sync/internal/sync"
)

// SessionHandler translates the HTTP session surface into session
// manager transitions. Authentication itself happens at an external
// identity provider; this layer only records who is signed in.
type SessionHandler struct {
	manager     *session.Manager
	tokens      *session.TokenManager
	coordinator *sync.Coordinator
}

func NewSessionHandler(manager *session.Manager, tokens *session.TokenManager, coordinator *sync.Coordinator) *SessionHandler {
	return &SessionHandler{manager: manager, tokens: tokens, coordinator: coordinator}
}

func (h *SessionHandler) SignIn(c *gin.Context) {
	var body struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	token, err := h.tokens.Issue(body.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
		return
	}

	h.manager.SignIn(body.UserID)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  session.Identity{UserID: body.UserID},
	})
}

// Restore re-establishes a session from a token issued earlier, the
// startup path after a restart.
func (h *SessionHandler) Restore(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	userID, err := h.tokens.Parse(body.Token)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "invalid session token"
		if errors.Is(err, session.ErrExpiredToken) {
			msg = "session token expired"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	h.manager.RestoreSession(userID)

	c.JSON(http.StatusOK, gin.H{
		"user": session.Identity{UserID: userID},
	})
}

// SignOut tears the session down. The coordinator purges all local data
// in response to the event, so this is the privacy boundary on shared
// machines.
func (h *SessionHandler) SignOut(c *gin.Context) {
	h.manager.SignOut()
	c.JSON(http.StatusNoContent, nil)
}

func (h *SessionHandler) Status(c *gin.Context) {
	resp := gin.H{
		"authenticated": h.manager.Authenticated(),
		"online":        h.manager.Online(),
		"sync": gin.H{
			"tasks":      h.coordinator.State(sync.CollectionTasks).String(),
			"categories": h.coordinator.State(sync.CollectionCategories).String(),
		},
	}
	if user := h.manager.User(); user != nil {
		resp["user"] = user
	}
	c.JSON(http.StatusOK, resp)
}
