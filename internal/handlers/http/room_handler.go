package http

import (
	"net/http"

	"parley/internal/core/domain"
	"parley/internal/core/services"

	"github.com/gin-gonic/gin"
)

// RoomHandler exposes a read-only view of the live rooms for dashboards and
// operational tooling. Membership is mutated only over the websocket boundary.
type RoomHandler struct {
	registry *services.SessionRegistry
}

func NewRoomHandler(registry *services.SessionRegistry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms := h.registry.Rooms()
	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (h *RoomHandler) GetRoomParticipants(c *gin.Context) {
	roomID := domain.NormalizeMeetingID(c.Param("id"))

	if h.registry.RoomCount(roomID) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not live"})
		return
	}

	participants := h.registry.RoomMembers(roomID)
	c.JSON(http.StatusOK, gin.H{
		"roomId":       roomID,
		"participants": participants,
		"count":        len(participants),
	})
}
