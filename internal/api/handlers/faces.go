package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/beacon/internal/auth"
	"github.com/your-org/beacon/internal/enroll"
	"github.com/your-org/beacon/internal/recognize"
	"github.com/your-org/beacon/pkg/dto"
)

type FaceHandler struct {
	enroll    *enroll.Pipeline
	recognize *recognize.Service
}

func NewFaceHandler(enrollPipeline *enroll.Pipeline, recognizeSvc *recognize.Service) *FaceHandler {
	return &FaceHandler{enroll: enrollPipeline, recognize: recognizeSvc}
}

// Enroll accepts a multipart form with a label and one or more sample
// images and creates a new face template for the caller.
func (h *FaceHandler) Enroll(c *gin.Context) {
	label := c.PostForm("label")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	var samples [][]byte
	for _, header := range form.File["images"] {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open sample: " + err.Error()})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read sample failed"})
			return
		}
		samples = append(samples, data)
	}

	receipt, err := h.enroll.EnrollFace(c.Request.Context(), auth.UserID(c), label, samples)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.EnrollFaceResponse{
		TemplateID: receipt.TemplateID,
		Label:      receipt.Label,
		Enrolled:   receipt.Enrolled,
		Skipped:    receipt.Skipped,
	})
}

// List returns the caller's enrolled faces without embedding payloads.
func (h *FaceHandler) List(c *gin.Context) {
	faces, err := h.enroll.ListFaces(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	resp := make([]dto.FaceResponse, 0, len(faces))
	for _, f := range faces {
		resp = append(resp, dto.FaceResponse{ID: f.ID, Label: f.Label, Samples: f.Samples})
	}
	c.JSON(http.StatusOK, dto.FaceListResponse{Faces: resp, Total: len(resp)})
}

// Delete removes one of the caller's face templates.
func (h *FaceHandler) Delete(c *gin.Context) {
	faceID, err := uuid.Parse(c.Param("faceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid face id"})
		return
	}

	if err := h.enroll.DeleteFace(c.Request.Context(), auth.UserID(c), faceID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Recognise classifies every face in the uploaded probe image against
// the templates of the device's owner.
func (h *FaceHandler) Recognise(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	probe, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	results, err := h.recognize.RecogniseFace(c.Request.Context(), c.Param("deviceId"), probe)
	if err != nil {
		fail(c, err)
		return
	}

	resp := make([]dto.MatchResultResponse, 0, len(results))
	for _, r := range results {
		resp = append(resp, dto.MatchResultResponse{Label: r.Label, Distance: r.Distance})
	}
	c.JSON(http.StatusOK, dto.RecogniseResponse{Results: resp, Total: len(resp)})
}

// Reset clears the caller's cached recognition labels.
func (h *FaceHandler) Reset(c *gin.Context) {
	if err := h.recognize.ResetDetectedFaces(c.Request.Context(), auth.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
