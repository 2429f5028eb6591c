package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/middleware"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/modules/serializer"
	"github.com/lumenhq/dam/internal/modules/service"
)

type AssetHandler struct {
	ingest   service.IngestService
	assets   service.AssetService
	baseURL  string
	maxBytes int64
}

func NewAssetHandler(ingest service.IngestService, assets service.AssetService, baseURL string, maxBytes int64) *AssetHandler {
	return &AssetHandler{
		ingest:   ingest,
		assets:   assets,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

type UploadAssetResp struct {
	Asset               *model.Asset           `json:"asset"`
	DownloadURL         string                 `json:"download_url,omitempty"`
	ThumbnailURL        string                 `json:"thumbnail_url,omitempty"`
	ViewURL             string                 `json:"view_url"`
	InternalDownloadURL string                 `json:"internal_download_url"`
	Job                 service.DispatchResult `json:"job"`
	Warnings            []string               `json:"warnings"`
}

// UploadAsset godoc
//
//	@Summary		Upload asset
//	@Description	Ingest one file: derive a thumbnail, store original and derivatives, commit metadata and tags, then hand a processing job downstream
//	@Tags			asset
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file				formData	file	true	"File to ingest"
//	@Param			title				formData	string	false	"Title, defaults to the filename stem"
//	@Param			description			formData	string	false	"Description"
//	@Param			category			formData	string	false	"Category, defaults to document"
//	@Param			eventName			formData	string	false	"Event name"
//	@Param			company				formData	string	false	"Company"
//	@Param			project				formData	string	false	"Project"
//	@Param			campaign			formData	string	false	"Campaign"
//	@Param			productionYear		formData	int		false	"Production year"
//	@Param			usage				formData	string	false	"internal or public"	Enums(internal, public)
//	@Param			visibility			formData	string	false	"private, team or public"	Enums(private, team, public)
//	@Param			readyForPublishing	formData	bool	false	"Ready for publishing"
//	@Param			tags				formData	string	false	"Comma separated tags"	Example(stock,brand guidelines)
//	@Param			width				formData	int		false	"Width hint in pixels"
//	@Param			height				formData	int		false	"Height hint in pixels"
//	@Param			duration			formData	number	false	"Duration hint in seconds"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=handler.UploadAssetResp}
//	@Failure		400	{object}	serializer.Response	"missing or repeated file part, or a bad form field"
//	@Failure		413	{object}	serializer.Response
//	@Failure		500	{object}	serializer.TrackedErrorResponse
//	@Router			/assets [post]
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	actor, ok := c.MustGet(middleware.ActorKey).(*model.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, serializer.TooLargeErr(h.maxBytes))
			return
		}
		c.JSON(http.StatusBadRequest, serializer.ParamErr("file is required", err))
		return
	}
	if mf := c.Request.MultipartForm; mf != nil && len(mf.File["file"]) > 1 {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("exactly one file part is allowed", nil))
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, serializer.TooLargeErr(h.maxBytes))
		return
	}

	in, err := h.bindForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("cannot read file", err))
		return
	}
	content, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, serializer.TooLargeErr(h.maxBytes))
			return
		}
		c.JSON(http.StatusBadRequest, serializer.ParamErr("cannot read file", err))
		return
	}

	in.ActorID = actor.ID
	in.Filename = fh.Filename
	in.ContentType = fh.Header.Get("Content-Type")
	in.Content = content

	res, err := h.ingest.Ingest(c.Request.Context(), in)
	if err != nil {
		h.ingestFailed(c, err)
		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusCreated, serializer.Response{Data: UploadAssetResp{
		Asset:               res.Asset,
		DownloadURL:         res.DownloadURL,
		ThumbnailURL:        res.ThumbnailURL,
		ViewURL:             h.internalURL(res.Asset.ID, "view"),
		InternalDownloadURL: h.internalURL(res.Asset.ID, "download"),
		Job:                 res.Job,
		Warnings:            warnings,
	}})
}

func (h *AssetHandler) ingestFailed(c *gin.Context, err error) {
	var ie *service.IngestError
	if !errors.As(err, &ie) {
		c.JSON(http.StatusInternalServerError, serializer.TrackedErr(c, http.StatusInternalServerError, "failed to ingest asset", err))
		return
	}
	switch ie.Kind {
	case service.KindInvalidInput:
		msg := "invalid upload"
		switch {
		case errors.Is(err, service.ErrEmptyFile):
			msg = "file is empty"
		case errors.Is(err, service.ErrUnsupportedType):
			msg = "unsupported media type"
		}
		c.JSON(http.StatusBadRequest, serializer.ParamErr(msg, err))
	case service.KindCanceled:
		c.JSON(http.StatusRequestTimeout, serializer.Err(http.StatusRequestTimeout, "request canceled", err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.TrackedErr(c, http.StatusInternalServerError, "failed to ingest asset", err))
	}
}

// bindForm reads the optional text fields of the upload form.
func (h *AssetHandler) bindForm(c *gin.Context) (service.IngestInput, error) {
	in := service.IngestInput{
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: c.PostForm("description"),
		Category:    strings.TrimSpace(c.PostForm("category")),
		EventName:   c.PostForm("eventName"),
		Company:     c.PostForm("company"),
		Project:     c.PostForm("project"),
		Campaign:    c.PostForm("campaign"),
		Usage:       strings.ToLower(strings.TrimSpace(c.PostForm("usage"))),
		Visibility:  strings.ToLower(strings.TrimSpace(c.PostForm("visibility"))),
		Tags:        service.SplitTags(c.PostForm("tags")),
	}

	var err error
	if in.ProductionYear, err = formInt(c, "productionYear"); err != nil {
		return in, err
	}
	if in.Width, err = formInt(c, "width"); err != nil {
		return in, err
	}
	if in.Height, err = formInt(c, "height"); err != nil {
		return in, err
	}
	if v := strings.TrimSpace(c.PostForm("duration")); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return in, fmt.Errorf("duration: %w", err)
		}
		in.Duration = &d
	}
	if v := strings.TrimSpace(c.PostForm("readyForPublishing")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return in, fmt.Errorf("readyForPublishing: %w", err)
		}
		in.ReadyForPublishing = b
	}
	return in, nil
}

func formInt(c *gin.Context, field string) (*int, error) {
	v := strings.TrimSpace(c.PostForm(field))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &n, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func (h *AssetHandler) internalURL(id uuid.UUID, action string) string {
	return fmt.Sprintf("%s/api/v1/assets/%s/%s", h.baseURL, id, action)
}

// GetAsset godoc
//
//	@Summary		Get asset
//	@Description	Get a committed asset with its tags
//	@Tags			asset
//	@Produce		json
//	@Param			asset_id	path	string	true	"Asset ID"	Format(uuid)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Asset}
//	@Failure		404	{object}	serializer.Response
//	@Router			/assets/{asset_id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	a, err := h.assets.Get(c.Request.Context(), actor.ID, id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: a})
}

// ViewAsset godoc
//
//	@Summary		View asset
//	@Description	Redirect to a short-lived inline URL of the original
//	@Tags			asset
//	@Param			asset_id	path	string	true	"Asset ID"	Format(uuid)
//	@Security		BearerAuth
//	@Success		302
//	@Failure		404	{object}	serializer.Response
//	@Router			/assets/{asset_id}/view [get]
func (h *AssetHandler) ViewAsset(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	u, err := h.assets.ViewURL(c.Request.Context(), actor.ID, id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

// DownloadAsset godoc
//
//	@Summary		Download asset
//	@Description	Redirect to a short-lived attachment URL of the original
//	@Tags			asset
//	@Param			asset_id	path	string	true	"Asset ID"	Format(uuid)
//	@Security		BearerAuth
//	@Success		302
//	@Failure		404	{object}	serializer.Response
//	@Router			/assets/{asset_id}/download [get]
func (h *AssetHandler) DownloadAsset(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	u, err := h.assets.DownloadURL(c.Request.Context(), actor.ID, id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *AssetHandler) target(c *gin.Context) (*model.User, uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid asset id", err))
		return nil, uuid.Nil, false
	}
	actor, ok := c.MustGet(middleware.ActorKey).(*model.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return nil, uuid.Nil, false
	}
	return actor, id, true
}

func (h *AssetHandler) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAssetNotFound) {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("asset not found"))
		return
	}
	c.JSON(http.StatusInternalServerError, serializer.TrackedErr(c, http.StatusInternalServerError, "failed to load asset", err))
}
