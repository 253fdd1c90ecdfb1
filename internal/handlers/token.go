package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/intervita/sessiond/internal/token"
	appErrors "github.com/intervita/sessiond/pkg/errors"
	"github.com/intervita/sessiond/pkg/logger"
	"github.com/intervita/sessiond/pkg/metrics"
	"github.com/intervita/sessiond/pkg/validator"
)

// tokenRequest carries the credential request fields. GET reads the two names
// from query parameters; POST reads all fields from the JSON body.
type tokenRequest struct {
	RoomName        string         `json:"roomName" form:"roomName" validate:"omitempty,max=128"`
	ParticipantName string         `json:"participantName" form:"participantName" validate:"omitempty,max=128"`
	ResumeData      map[string]any `json:"resumeData"`
}

// TokenHandler exposes the credential issuance endpoint.
type TokenHandler struct {
	svc *token.Service
	log *zap.Logger
}

// NewTokenHandler constructs a token handler.
func NewTokenHandler(svc *token.Service) (*TokenHandler, error) {
	if svc == nil {
		return nil, appErrors.NewConfiguration("token service must be provided")
	}
	return &TokenHandler{
		svc: svc,
		log: logger.WithModule("token"),
	}, nil
}

// Issue handles both call styles of the single issuance endpoint. The response
// shape is fixed by the clients: 200 {identity, accessToken}, 400 {error},
// 500 with an empty body.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req tokenRequest

	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.TokensIssued.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	} else {
		req.RoomName = c.Query("roomName")
		req.ParticipantName = c.Query("participantName")
	}

	if err := validator.ValidateStruct(req); err != nil {
		metrics.TokensIssued.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred, err := h.svc.Issue(token.IssueInput{
		RoomName:        req.RoomName,
		ParticipantName: req.ParticipantName,
		Payload:         req.ResumeData,
	})
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.StatusCode == http.StatusBadRequest {
			metrics.TokensIssued.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
			return
		}

		metrics.TokensIssued.WithLabelValues("error").Inc()
		h.log.Error("token issuance failed", zap.Error(err))
		c.Status(appErr.StatusCode)
		return
	}

	metrics.TokensIssued.WithLabelValues("success").Inc()
	h.log.Info("token issued",
		zap.String("identity", cred.Identity),
		zap.String("room", cred.Room),
	)

	c.JSON(http.StatusOK, cred)
}
