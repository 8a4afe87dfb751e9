package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clubhouse/internal/cloudinary"
	"clubhouse/internal/club"
	"clubhouse/internal/identity"
	"clubhouse/internal/members"
)

// Signup handles POST /api/member-users/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req members.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.members.Signup(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, members.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, identity.ErrEmailExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		default:
			log.Printf("signup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register member"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Member registered successfully!", "member_id": id})
}

// MembersList handles GET /api/adminpage/members_list.
func (h *Handler) MembersList(c *gin.Context) {
	list, err := h.members.List(c.Request.Context())
	if err != nil {
		log.Printf("members list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch members"})
		return
	}
	if list == nil {
		list = []members.Member{}
	}
	c.JSON(http.StatusOK, gin.H{"members": list})
}

// MemberEdit handles PUT /api/adminpage/members_edit/:member_id.
func (h *Handler) MemberEdit(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("member_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member ID"})
		return
	}
	var upd members.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.members.Edit(c.Request.Context(), memberID, upd); err != nil {
		switch {
		case errors.Is(err, members.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, members.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		default:
			log.Printf("member edit failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update member"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member updated successfully!"})
}

// MemberDelete handles DELETE /api/adminpage/members_delete/:member_id. The
// member's attendance rows cascade in the store.
func (h *Handler) MemberDelete(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("member_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member ID"})
		return
	}

	if err := h.members.Delete(c.Request.Context(), memberID); err != nil {
		if errors.Is(err, members.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
			return
		}
		log.Printf("member delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member deleted successfully!"})
}

// Projects handles GET /api/retrieve-all-projects.
func (h *Handler) Projects(c *gin.Context) {
	projects, err := h.club.ListProjects(c.Request.Context())
	if err != nil {
		log.Printf("projects fetch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch projects"})
		return
	}
	if projects == nil {
		projects = []club.Project{}
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Photos handles GET /api/retrieve-all-photos.
func (h *Handler) Photos(c *gin.Context) {
	photos, err := h.club.ListPhotos(c.Request.Context())
	if err != nil {
		log.Printf("photos fetch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve all photos"})
		return
	}
	if photos == nil {
		photos = []club.LinkedPhoto{}
	}
	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

// PhotoUpload handles POST /api/adminpage/photos: uploads an image to
// Cloudinary (multipart file or base64 data URL) and stores a photo row.
func (h *Handler) PhotoUpload(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}

	var result *cloudinary.UploadResult
	var description string
	var err error

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		description = c.PostForm("description")
		result, err = h.cloud.UploadBytes(data, header.Filename)
	} else {
		var body struct {
			Data        string `json:"data" binding:"required"`
			Description string `json:"description"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		description = body.Description
		result, err = h.cloud.UploadBase64(body.Data)
	}

	if err != nil {
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}

	photoID, err := h.club.InsertPhoto(c.Request.Context(), nil, description, result.SecureURL)
	if err != nil {
		log.Printf("photo insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"photo_id": photoID, "url": result.SecureURL, "public_id": result.PublicID})
}

// EventsList handles GET /api/events with optional start/end date bounds
// (YYYY-MM-DD, interpreted in the reporting timezone).
func (h *Handler) EventsList(c *gin.Context) {
	var start, end *time.Time
	if v := c.Query("start"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
			return
		}
		start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Second)
		end = &endOfDay
	}

	events, err := h.club.ListEvents(c.Request.Context(), start, end)
	if err != nil {
		log.Printf("events fetch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch events"})
		return
	}
	if events == nil {
		events = []club.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// EventCreate handles POST /api/events.
func (h *Handler) EventCreate(c *gin.Context) {
	var req struct {
		EventTitle  string    `json:"event_title" binding:"required"`
		Category    string    `json:"category" binding:"required"`
		StartDate   time.Time `json:"start_date" binding:"required"`
		EndDate     time.Time `json:"end_date" binding:"required"`
		Location    *string   `json:"location"`
		Description *string   `json:"description"`
		IsPublic    *bool     `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	evt := club.Event{
		EventTitle:  req.EventTitle,
		Category:    req.Category,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Location:    req.Location,
		Description: req.Description,
		IsPublic:    true,
	}
	if req.IsPublic != nil {
		evt.IsPublic = *req.IsPublic
	}

	created, err := h.club.CreateEvent(c.Request.Context(), evt)
	if err != nil {
		log.Printf("event create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create event"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": created})
}
