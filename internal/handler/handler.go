package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clubhouse/internal/attendance"
	"clubhouse/internal/auth"
	"clubhouse/internal/cloudinary"
	"clubhouse/internal/club"
	"clubhouse/internal/config"
	"clubhouse/internal/identity"
	"clubhouse/internal/members"
	"clubhouse/internal/queue"
)

// Handler carries the services the HTTP routes dispatch to.
type Handler struct {
	att      *attendance.Service
	members  *members.Service
	club     *club.Repository
	verifier attendance.Verifier
	cloud    *cloudinary.Client // nil if Cloudinary not configured
	queue    queue.Queue
	cfg      config.App
	loc      *time.Location
}

func New(att *attendance.Service, ms *members.Service, cr *club.Repository,
	verifier attendance.Verifier, cloud *cloudinary.Client, q queue.Queue,
	cfg config.App, loc *time.Location) *Handler {
	return &Handler{att: att, members: ms, club: cr, verifier: verifier,
		cloud: cloud, queue: q, cfg: cfg, loc: loc}
}

// CheckIn handles POST /api/attendance: credential-gated check-in against the
// governing session for the meeting.
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		SchoolEmail   string `json:"school_email" binding:"required"`
		Password      string `json:"password" binding:"required"`
		MeetingNumber int    `json:"meeting_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "school_email, password and meeting_number are required"})
		return
	}

	result, err := h.att.CheckIn(c.Request.Context(), req.SchoolEmail, req.Password, req.MeetingNumber)
	if err != nil {
		h.checkInError(c, err)
		return
	}

	// rollup refresh is fire-and-forget; a lost message only stales the
	// summary until the next check-in for that meeting
	msg := queue.Message{Type: "checkin", Body: []byte(strconv.Itoa(result.MeetingNumber))}
	if err := h.queue.Publish(c.Request.Context(), msg); err != nil {
		log.Printf("rollup publish failed: %v", err)
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) checkInError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidMeeting):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	case errors.Is(err, identity.ErrSignInDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "password sign-in is disabled"})
	case errors.Is(err, attendance.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
	case errors.Is(err, attendance.ErrNoSession):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session for this meeting"})
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, gin.H{"error": "already checked in for this meeting"})
	default:
		log.Printf("check-in failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record attendance"})
	}
}

// QRCreate handles GET /api/qr-create: opens a check-in window for a meeting
// and returns the URL the front end encodes into a QR image.
func (h *Handler) QRCreate(c *gin.Context) {
	meeting, err := strconv.Atoi(c.Query("meeting_number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting_number"})
		return
	}

	sess, err := h.att.OpenSession(c.Request.Context(), meeting)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidMeeting) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting_number"})
			return
		}
		log.Printf("open session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		return
	}

	qrURL := fmt.Sprintf("%s/attendance?session_id=%s&meeting_number=%d",
		h.cfg.PublicBaseURL, sess.ID, sess.MeetingNumber)
	c.JSON(http.StatusOK, gin.H{
		"session_id":     sess.ID,
		"meeting_number": sess.MeetingNumber,
		"created_at":     sess.CreatedAt,
		"expires_at":     sess.ExpiresAt,
		"qr_url":         qrURL,
	})
}

// AttendanceList handles GET /api/adminpage/attendance_list with an optional
// meeting_number filter.
func (h *Handler) AttendanceList(c *gin.Context) {
	var meeting *int
	if v := c.Query("meeting_number"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting_number"})
			return
		}
		meeting = &parsed
	}

	rows, err := h.att.ListAttendance(c.Request.Context(), meeting)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidMeeting) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting_number"})
			return
		}
		log.Printf("attendance list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch attendance list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rows})
}

// AttendanceStatus handles POST /api/adminpage/attendance_status: the
// administrative override, the only path allowed to write an explicit Absent.
func (h *Handler) AttendanceStatus(c *gin.Context) {
	var req struct {
		MemberID      int64             `json:"member_id" binding:"required"`
		MeetingNumber int               `json:"meeting_number" binding:"required"`
		Status        attendance.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "member_id, meeting_number, status are required"})
		return
	}

	if err := h.att.SetStatus(c.Request.Context(), req.MemberID, req.MeetingNumber, req.Status); err != nil {
		switch {
		case errors.Is(err, attendance.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: Present, Late, Absent"})
		case errors.Is(err, attendance.ErrInvalidMeeting), errors.Is(err, attendance.ErrInvalidMember):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("attendance status failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update attendance status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"member_id":      req.MemberID,
		"meeting_number": req.MeetingNumber,
		"status":         req.Status,
	})
}

// AttendanceSummary handles GET /api/adminpage/attendance-summary.
func (h *Handler) AttendanceSummary(c *gin.Context) {
	summaries, err := h.att.Summaries(c.Request.Context())
	if err != nil {
		log.Printf("summary fetch failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch summaries"})
		return
	}
	if summaries == nil {
		summaries = []attendance.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

// Login handles POST /api/login: verifies the credential with the identity
// provider, loads the member row and issues a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		SchoolEmail string `json:"school_email" binding:"required"`
		Password    string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or password"})
		return
	}

	subject, err := h.verifier.Verify(c.Request.Context(), req.SchoolEmail, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, identity.ErrSignInDisabled):
			c.JSON(http.StatusForbidden, gin.H{"error": "password sign-in is disabled"})
		default:
			log.Printf("login verify failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		}
		return
	}

	member, err := h.members.ByEmail(c.Request.Context(), req.SchoolEmail)
	if err != nil {
		log.Printf("login member lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}

	role := auth.RoleMember
	if member.IsAdmin {
		role = auth.RoleAdmin
	}
	tokens, err := auth.Issue(strconv.FormatInt(member.ID, 10), role,
		h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	_ = h.members.SaveRefreshToken(c.Request.Context(), member.ID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"subject_id":    subject,
		"member":        member,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}
