package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/talhaxhahid/ChildCompass-Backend/pkg/errors"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/storage"
)

type createTaskRequest struct {
	Title            string    `json:"title" binding:"required"`
	Priority         string    `json:"priority"`
	Datetime         time.Time `json:"datetime" binding:"required"`
	ConnectionString string    `json:"connectionString" binding:"required"`
}

// handleTaskCreate adds a reminder for one of the caller's children
func (s *Server) handleTaskCreate(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	task := &storage.Task{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Priority:         req.Priority,
		Datetime:         req.Datetime,
		ParentEmail:      c.GetString("parentEmail"),
		ConnectionString: req.ConnectionString,
	}
	if err := s.store.CreateTask(task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task created", "task": task})
}

// handleTaskList lists the caller's tasks
func (s *Server) handleTaskList(c *gin.Context) {
	tasks, err := s.store.GetTasksByParentEmail(c.GetString("parentEmail"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

// handleTasksByConnection lists tasks assigned to one child device. Child
// apps call this with their connection string; no login token involved.
func (s *Server) handleTasksByConnection(c *gin.Context) {
	tasks, err := s.store.GetTasksByConnectionString(c.Param("cs"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

// handleTaskComplete marks a task done
func (s *Server) handleTaskComplete(c *gin.Context) {
	if err := s.store.SetTaskCompleted(c.Param("id"), true); err != nil {
		if errors.Is(err, apperrors.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task completed"})
}

// handleTaskDelete removes a task
func (s *Server) handleTaskDelete(c *gin.Context) {
	if err := s.store.DeleteTask(c.Param("id")); err != nil {
		if errors.Is(err, apperrors.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}
