package server

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/push"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/storage"
)

// chatID derives the canonical chat identifier for two participants: ids
// sorted and joined with an underscore, so both sides compute the same key
func chatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required,max=2000"`
}

// handleMessageSend stores a chat message and notifies the receiver
func (s *Server) handleMessageSend(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	sender := c.GetString("parentEmail")
	msg := &storage.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID(sender, req.ReceiverID),
		SenderID:   sender,
		ReceiverID: req.ReceiverID,
		Content:    strings.TrimSpace(req.Content),
		Timestamp:  time.Now(),
	}

	// Best-effort notification; the message is stored either way
	msg.PushDelivered = s.push.Notify(req.ReceiverID, &push.Notification{
		Title: "New message",
		Body:  msg.Content,
	})

	if err := s.store.SaveMessage(msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message sent", "data": msg})
}

// handleChatHistory returns messages in one chat, newest first
func (s *Server) handleChatHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	msgs, err := s.store.GetChatMessages(c.Param("chatId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// handleMarkRead marks every unread message addressed to the caller in a chat
func (s *Server) handleMarkRead(c *gin.Context) {
	if err := s.store.MarkChatRead(c.Param("chatId"), c.GetString("parentEmail")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}

// handleUnreadCount returns the caller's unread message count
func (s *Server) handleUnreadCount(c *gin.Context) {
	count, err := s.store.UnreadCount(c.GetString("parentEmail"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// handlePushSubscribe registers the caller's web push subscription
func (s *Server) handlePushSubscribe(c *gin.Context) {
	var sub push.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil || sub.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid subscription"})
		return
	}

	s.push.Subscribe(c.GetString("parentEmail"), &sub)
	c.JSON(http.StatusOK, gin.H{"message": "Subscribed"})
}

// handleHealth reports process and host health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.Snapshot(s.presence.ConnectedChildren()))
}
