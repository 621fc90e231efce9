package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"liveroom/internal/adapters/rtc"
	"liveroom/internal/app"
	"liveroom/internal/auth"
	"liveroom/internal/core"
	"liveroom/internal/domain"
)

// writeError maps engine error kinds onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type AuthController struct {
	Auth *auth.Service
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (ctl *AuthController) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	user, token, err := ctl.Auth.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accessToken": token, "user": user})
}

func (ctl *AuthController) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	user, token, err := ctl.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": token, "user": user})
}

type RoomController struct {
	Engine *app.Engine
	Tokens *rtc.TokenService
}

type createRoomRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	RoomType    string `json:"roomType" binding:"required"`
	MaxSeats    int    `json:"maxSeats"`
}

func (ctl *RoomController) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and roomType are required"})
		return
	}
	snap, err := ctl.Engine.CreateRoom(c.Request.Context(), app.CreateRoomParams{
		Title:       req.Title,
		Description: req.Description,
		Type:        domain.RoomType(req.RoomType),
		Capacity:    req.MaxSeats,
		HostID:      auth.CallerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (ctl *RoomController) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rooms, total, err := ctl.Engine.ListRooms(c.Request.Context(), core.RoomFilter{
		Status: domain.RoomStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rooms, "total": total, "page": page, "limit": limit})
}

func (ctl *RoomController) Get(c *gin.Context) {
	snap, err := ctl.Engine.Snapshot(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (ctl *RoomController) Participants(c *gin.Context) {
	snap, err := ctl.Engine.Snapshot(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": snap.Participants})
}

type joinRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

func (ctl *RoomController) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "displayName is required"})
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	userID := auth.CallerID(c)
	snap, err := ctl.Engine.Submit(c.Request.Context(), roomID, app.Command{
		Kind:        domain.CmdJoin,
		ActorID:     userID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":         snap.Room,
		"participants": snap.Participants,
		"rtcToken":     ctl.Tokens.GenerateToken(userID, roomID),
	})
}

func (ctl *RoomController) Leave(c *gin.Context) {
	snap, err := ctl.Engine.Submit(c.Request.Context(), domain.RoomID(c.Param("id")), app.Command{
		Kind:    domain.CmdLeave,
		ActorID: auth.CallerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type seatActionRequest struct {
	Action       string `json:"action" binding:"required"`
	TargetUserID string `json:"targetUserId"`
}

var seatActions = map[string]domain.CommandKind{
	"assign": domain.CmdAssignSeat,
	"remove": domain.CmdRemoveSeat,
	"mute":   domain.CmdMute,
	"unmute": domain.CmdUnmute,
	"kick":   domain.CmdKick,
}

func (ctl *RoomController) SeatAction(c *gin.Context) {
	var req seatActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}
	kind, ok := seatActions[req.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown seat action"})
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat index must be a number"})
		return
	}
	snap, err := ctl.Engine.Submit(c.Request.Context(), domain.RoomID(c.Param("id")), app.Command{
		Kind:      kind,
		ActorID:   auth.CallerID(c),
		TargetID:  domain.UserID(req.TargetUserID),
		SeatIndex: index,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type roleRequest struct {
	Role         string `json:"role" binding:"required"`
	TargetUserID string `json:"targetUserId" binding:"required"`
}

func (ctl *RoomController) Role(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role and targetUserId are required"})
		return
	}
	snap, err := ctl.Engine.Submit(c.Request.Context(), domain.RoomID(c.Param("id")), app.Command{
		Kind:     domain.CmdSetRole,
		ActorID:  auth.CallerID(c),
		TargetID: domain.UserID(req.TargetUserID),
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (ctl *RoomController) Close(c *gin.Context) {
	snap, err := ctl.Engine.Submit(c.Request.Context(), domain.RoomID(c.Param("id")), app.Command{
		Kind:    domain.CmdCloseRoom,
		ActorID: auth.CallerID(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (ctl *RoomController) RTCToken(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}
	c.JSON(http.StatusOK, ctl.Tokens.GenerateToken(auth.CallerID(c), domain.RoomID(roomID)))
}
