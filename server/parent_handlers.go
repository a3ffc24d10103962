package server

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/talhaxhahid/ChildCompass-Backend/pkg/errors"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/storage"
)

const verificationCodeTTL = 10 * time.Minute

// generateVerificationCode returns a 5-digit numeric code
func generateVerificationCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		// crypto/rand failing means the process is in serious trouble
		panic(err)
	}
	return fmt.Sprintf("%d", 10000+n.Int64())
}

type registerParentRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// handleParentRegister creates an unverified account and mails a code
func (s *Server) handleParentRegister(c *gin.Context) {
	var req registerParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if _, err := s.store.GetParentByEmail(req.Email); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	code := generateVerificationCode()
	expires := time.Now().Add(verificationCodeTTL)

	parent := &storage.Parent{
		Name:             req.Name,
		Email:            req.Email,
		PasswordHash:     string(hash),
		VerificationCode: code,
		CodeExpiresAt:    &expires,
	}
	if err := s.store.CreateParent(parent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if err := s.mailer.SendVerificationCode(req.Email, code); err != nil {
		logger.Get().ErrorWithErr("verification mail failed", err, "email", req.Email)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful! Please check your email for a 5-digit code.",
	})
}

type verifyEmailRequest struct {
	Email            string `json:"email" binding:"required,email"`
	VerificationCode string `json:"verificationCode" binding:"required"`
}

// handleVerifyEmail checks the mailed code and marks the account verified
func (s *Server) handleVerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	parent, err := s.store.GetParentByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Parent not found"})
		return
	}

	if parent.VerifiedEmail {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already verified"})
		return
	}
	if parent.CodeExpiresAt == nil || time.Now().After(*parent.CodeExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Verification code has expired"})
		return
	}
	if parent.VerificationCode != req.VerificationCode {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid verification code"})
		return
	}

	parent.VerifiedEmail = true
	parent.VerificationCode = ""
	parent.CodeExpiresAt = nil
	if err := s.store.UpdateParent(parent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully!"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// handleParentLogin checks credentials and issues a JWT
func (s *Server) handleParentLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	parent, err := s.store.GetParentByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Parent not found"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(parent.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}
	if !parent.VerifiedEmail {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Please verify your email first"})
		return
	}

	token, err := s.tokens.Issue(parent.ID, parent.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token})
}

type addChildRequest struct {
	Email            string `json:"email" binding:"required,email"`
	ConnectionString string `json:"connectionString" binding:"required"`
}

// handleAddChild links a child connection string to a parent account
func (s *Server) handleAddChild(c *gin.Context) {
	var req addChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	parent, err := s.store.GetParentByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Parent not found"})
		return
	}

	if _, err := s.store.GetChildByConnectionString(req.ConnectionString); err != nil {
		if errors.Is(err, apperrors.ErrChildNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Child not found with this connection string"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if !parent.VerifiedEmail {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Please verify your email first"})
		return
	}

	for _, cs := range parent.ChildConnectionStrings {
		if cs == req.ConnectionString {
			c.JSON(http.StatusBadRequest, gin.H{"message": "This child connection is already added to your account"})
			return
		}
	}

	parent.ChildConnectionStrings = append(parent.ChildConnectionStrings, req.ConnectionString)
	if err := s.store.UpdateParent(parent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Child connection string added successfully"})
}
