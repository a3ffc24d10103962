package server

import (
	"crypto/rand"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/storage"
)

const connectionStringAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateConnectionString returns the 4-character code parents type in to
// link a child
func generateConnectionString() string {
	b := make([]byte, 4)
	max := big.NewInt(int64(len(connectionStringAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = connectionStringAlphabet[n.Int64()]
	}
	return string(b)
}

type registerChildRequest struct {
	Name   string `json:"name" binding:"required"`
	Age    int    `json:"age" binding:"required"`
	Gender string `json:"gender" binding:"required,oneof=boy girl"`
}

// handleChildRegister creates a child record with a fresh connection string
func (s *Server) handleChildRegister(c *gin.Context) {
	var req registerChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	child := &storage.Child{
		Name:             req.Name,
		Age:              req.Age,
		Gender:           req.Gender,
		ConnectionString: generateConnectionString(),
	}

	// The 4-char space is small; retry a few times on a collision
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.store.CreateChild(child)
		if err == nil {
			break
		}
		child.ConnectionString = generateConnectionString()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Child registered successfully",
		"child": gin.H{
			"id":               child.ID,
			"name":             child.Name,
			"age":              child.Age,
			"gender":           child.Gender,
			"connectionString": child.ConnectionString,
		},
	})
}

type namesByConnectionRequest struct {
	ConnectionStrings []string `json:"connectionStrings" binding:"required"`
}

// handleNamesByConnection maps connection strings to child names; unknown
// strings come back as null so the caller can render placeholders
func (s *Server) handleNamesByConnection(c *gin.Context) {
	var req namesByConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "connectionStrings must be an array."})
		return
	}

	children, err := s.store.GetChildrenByConnectionStrings(req.ConnectionStrings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	byConnection := make(map[string]string, len(children))
	for _, child := range children {
		byConnection[child.ConnectionString] = child.Name
	}

	result := make(map[string]any, len(req.ConnectionStrings))
	for _, cs := range req.ConnectionStrings {
		if name, ok := byConnection[cs]; ok {
			result[cs] = name
		} else {
			result[cs] = nil
		}
	}

	c.JSON(http.StatusOK, result)
}
