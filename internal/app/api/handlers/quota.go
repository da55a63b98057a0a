package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/lingobill/pkg/response"
)

type UploadCheckRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

type RecordUploadRequest struct {
	VideoID         string `json:"video_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

type RecordVocalRequest struct {
	VideoID string `json:"video_id" binding:"required"`
}

type RecordVocalResponse struct {
	Recorded bool `json:"recorded"`
}

// @Summary      Upload Quota Status
// @Tags         Quota
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespUploadStatus
// @Router       /api/v1/quota/upload [get]
func ApiGetUploadQuotaStatus(q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		st, err := q.GetUploadQuotaStatus(c.Request.Context(), uid)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(st))
	}
}

// @Summary      Vocal Exercise Quota Status
// @Tags         Quota
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespVocalStatus
// @Router       /api/v1/quota/vocal [get]
func ApiGetVocalQuotaStatus(q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		st, err := q.GetVocalQuotaStatus(c.Request.Context(), uid)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(st))
	}
}

// @Summary      Check Upload
// @Description  Decides whether a video of the given length may be uploaded. A denial is a normal response with allowed=false.
// @Tags         Quota
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UploadCheckRequest true "Video duration"
// @Success      200  {object}  handlers.RespUploadDecision
// @Router       /api/v1/quota/upload/check [post]
func ApiCheckUpload(q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		var req UploadCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(q.CanUserUploadVideo(c.Request.Context(), uid, req.DurationSeconds)))
	}
}

// @Summary      Check Vocal Exercise
// @Tags         Quota
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.RespVocalDecision
// @Router       /api/v1/quota/vocal/check [post]
func ApiCheckVocal(q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		c.JSON(http.StatusOK, response.OKT(q.CanUserDoVocalExercise(c.Request.Context(), uid)))
	}
}

// @Summary      Record Upload
// @Description  Re-checks the quota and records the upload atomically. A denied upload is not recorded.
// @Tags         Usage
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RecordUploadRequest true "Upload"
// @Success      200  {object}  handlers.RespUploadDecision
// @Router       /api/v1/usage/upload [post]
func ApiRecordUpload(q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		var req RecordUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		dec, err := q.RecordUpload(c.Request.Context(), uid, req.VideoID, req.DurationSeconds)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeError, dec))
			return
		}
		c.JSON(http.StatusOK, response.OKT(dec))
	}
}

// @Summary      Record Vocal Exercise Completion
// @Description  Append-only; recorded=false means the insert failed and the caller may ignore it.
// @Tags         Usage
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RecordVocalRequest true "Exercise"
// @Success      200  {object}  handlers.RespRecordVocal
// @Router       /api/v1/usage/vocal_exercise [post]
func ApiRecordVocal(q QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)
		if uid == "" {
			return
		}
		var req RecordVocalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		ok := q.RecordVocalExerciseCompletion(c.Request.Context(), uid, req.VideoID)
		c.JSON(http.StatusOK, response.OKT(RecordVocalResponse{Recorded: ok}))
	}
}

func RegisterQuotaRoutes(r gin.IRouter, q QuotaService) {
	r.GET("/quota/upload", ApiGetUploadQuotaStatus(q))
	r.GET("/quota/vocal", ApiGetVocalQuotaStatus(q))
	r.POST("/quota/upload/check", ApiCheckUpload(q))
	r.POST("/quota/vocal/check", ApiCheckVocal(q))
	r.POST("/usage/upload", ApiRecordUpload(q))
	r.POST("/usage/vocal_exercise", ApiRecordVocal(q))
}
