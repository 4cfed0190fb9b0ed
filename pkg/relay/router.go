package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/meetease/pkg/signaling"
)

// RouterOptions configures the HTTP surface of the relay.
type RouterOptions struct {
	// AllowedOrigins limits browser origins. Empty allows any origin.
	AllowedOrigins []string
	// PublicURL is used to build room links, e.g. "https://meet.example.com".
	PublicURL string
	Logger    *slog.Logger
}

// NewRouter wires the hub into a gin engine:
//
//	GET  /health
//	GET  /ws/:roomId
//	POST /api/rooms
//	GET  /api/rooms/:roomId
func NewRouter(hub *Hub, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.Use(OriginFilter(opts.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": hub.Rooms()})
	})

	api := router.Group("/api")
	{
		api.POST("/rooms", createRoom(opts.PublicURL))
		api.GET("/rooms/:roomId", getRoom(hub))
	}

	router.GET("/ws/:roomId", func(c *gin.Context) {
		hub.ServeRoom(c.Writer, c.Request, c.Param("roomId"))
	})

	return router
}

// NewRoomID returns the first eight characters of a random UUID.
func NewRoomID() string {
	return uuid.NewString()[:8]
}

func createRoom(publicURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := NewRoomID()
		resp := gin.H{"roomId": id}
		if publicURL != "" {
			resp["link"] = publicURL + "/room/" + id
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func getRoom(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		if !signaling.ValidRoomID(roomID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRoomID.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), presenceTimeout)
		defer cancel()
		participants, err := hub.Presence().Participants(ctx, roomID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "presence unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"roomId":       roomID,
			"participants": len(participants),
			"capacity":     hub.Capacity(),
			"full":         hub.Occupancy(roomID) >= hub.Capacity(),
		})
	}
}

// OriginFilter rejects cross-origin requests from origins not listed.
// Requests without an Origin header pass.
func OriginFilter(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || len(allowed) == 0 {
			c.Next()
			return
		}

		if !allowed[origin] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
