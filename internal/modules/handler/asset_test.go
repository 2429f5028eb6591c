package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumenhq/dam/internal/middleware"
	"github.com/lumenhq/dam/internal/modules/model"
	"github.com/lumenhq/dam/internal/modules/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngestService is a mock implementation of IngestService
type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Ingest(ctx context.Context, in service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

// MockAssetService is a mock implementation of AssetService
type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) Get(ctx context.Context, actorID, assetID uuid.UUID) (*model.Asset, error) {
	args := m.Called(ctx, actorID, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetService) ViewURL(ctx context.Context, actorID, assetID uuid.UUID) (string, error) {
	args := m.Called(ctx, actorID, assetID)
	return args.String(0), args.Error(1)
}

func (m *MockAssetService) DownloadURL(ctx context.Context, actorID, assetID uuid.UUID) (string, error) {
	args := m.Called(ctx, actorID, assetID)
	return args.String(0), args.Error(1)
}

type uploadForm struct {
	filename    string
	contentType string
	content     []byte
	fields      map[string]string
	fileParts   int
}

func newUploadRequest(t *testing.T, f uploadForm) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	parts := f.fileParts
	if parts == 0 && f.filename != "" {
		parts = 1
	}
	for i := 0; i < parts; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	for k, v := range f.fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAssetHandler_UploadAsset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	actorID := uuid.New()
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	tests := []struct {
		name           string
		form           uploadForm
		maxBytes       int64
		mockSetup      func(*MockIngestService)
		expectedStatus int
	}{
		{
			name: "successful upload with form fields",
			form: uploadForm{
				filename:    "hero shot.jpg",
				contentType: "image/jpeg",
				content:     jpeg,
				fields: map[string]string{
					"title":              "Hero",
					"category":           "campaign",
					"productionYear":     "2024",
					"usage":              "Public",
					"visibility":         "team",
					"readyForPublishing": "true",
					"tags":               "stock,brand guidelines",
					"width":              "1920",
					"height":             "1080",
				},
			},
			maxBytes: 1 << 20,
			mockSetup: func(m *MockIngestService) {
				m.On("Ingest", mock.Anything, mock.MatchedBy(func(in service.IngestInput) bool {
					return in.ActorID == actorID &&
						in.Filename == "hero shot.jpg" &&
						in.ContentType == "image/jpeg" &&
						bytes.Equal(in.Content, jpeg) &&
						in.Title == "Hero" &&
						in.Category == "campaign" &&
						in.ProductionYear != nil && *in.ProductionYear == 2024 &&
						in.Usage == "public" &&
						in.Visibility == "team" &&
						in.ReadyForPublishing &&
						assert.ObjectsAreEqual([]string{"stock", "brand guidelines"}, in.Tags) &&
						in.Width != nil && *in.Width == 1920 &&
						in.Height != nil && *in.Height == 1080 &&
						in.Duration == nil
				})).Return(&service.IngestResult{
					Asset:        &model.Asset{ID: uuid.New(), Title: "Hero"},
					DownloadURL:  "https://s3/original",
					ThumbnailURL: "https://s3/thumb",
					Job:          service.DispatchResult{Dispatched: true, JobKind: service.JobImageProcess, Backend: service.BackendRabbitMQ},
				}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing file",
			form:           uploadForm{fields: map[string]string{"title": "no file"}},
			maxBytes:       1 << 20,
			mockSetup:      func(m *MockIngestService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "two file parts",
			form:           uploadForm{filename: "a.jpg", contentType: "image/jpeg", content: jpeg, fileParts: 2},
			maxBytes:       1 << 20,
			mockSetup:      func(m *MockIngestService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "file over the upload limit",
			form:           uploadForm{filename: "big.jpg", contentType: "image/jpeg", content: make([]byte, 2048)},
			maxBytes:       1024,
			mockSetup:      func(m *MockIngestService) {},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:           "non numeric production year",
			form:           uploadForm{filename: "a.jpg", contentType: "image/jpeg", content: jpeg, fields: map[string]string{"productionYear": "last year"}},
			maxBytes:       1 << 20,
			mockSetup:      func(m *MockIngestService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad duration",
			form:           uploadForm{filename: "a.mp4", contentType: "video/mp4", content: jpeg, fields: map[string]string{"duration": "1m"}},
			maxBytes:       1 << 20,
			mockSetup:      func(m *MockIngestService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:     "rejected by validation",
			form:     uploadForm{filename: "blob.bin", contentType: "application/octet-stream", content: []byte{0x01}},
			maxBytes: 1 << 20,
			mockSetup: func(m *MockIngestService) {
				m.On("Ingest", mock.Anything, mock.Anything).Return(nil,
					&service.IngestError{Stage: service.StageValidating, Kind: service.KindInvalidInput, Err: service.ErrUnsupportedType})
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:     "storage failure",
			form:     uploadForm{filename: "a.jpg", contentType: "image/jpeg", content: jpeg},
			maxBytes: 1 << 20,
			mockSetup: func(m *MockIngestService) {
				m.On("Ingest", mock.Anything, mock.Anything).Return(nil,
					&service.IngestError{Stage: service.StageUploading, Kind: service.KindStorage, Err: errors.New("bucket gone")})
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:     "canceled upload",
			form:     uploadForm{filename: "a.jpg", contentType: "image/jpeg", content: jpeg},
			maxBytes: 1 << 20,
			mockSetup: func(m *MockIngestService) {
				m.On("Ingest", mock.Anything, mock.Anything).Return(nil,
					&service.IngestError{Stage: service.StageCommitting, Kind: service.KindCanceled, Err: context.Canceled})
			},
			expectedStatus: http.StatusRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingest := new(MockIngestService)
			tt.mockSetup(ingest)
			h := NewAssetHandler(ingest, new(MockAssetService), "https://dam.example.com/", tt.maxBytes)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = newUploadRequest(t, tt.form)
			c.Set(middleware.ActorKey, &model.User{ID: actorID})

			h.UploadAsset(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			ingest.AssertExpectations(t)
		})
	}
}

func TestAssetHandler_UploadAsset_Response(t *testing.T) {
	gin.SetMode(gin.TestMode)
	assetID := uuid.New()

	ingest := new(MockIngestService)
	ingest.On("Ingest", mock.Anything, mock.Anything).Return(&service.IngestResult{
		Asset:    &model.Asset{ID: assetID},
		Job:      service.DispatchResult{Backend: service.BackendNone, JobKind: service.JobDocumentExtract},
		Warnings: nil,
	}, nil)
	h := NewAssetHandler(ingest, new(MockAssetService), "https://dam.example.com/", 1<<20)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = newUploadRequest(t, uploadForm{filename: "brief.pdf", contentType: "application/pdf", content: []byte("%PDF-1.4")})
	c.Set(middleware.ActorKey, &model.User{ID: uuid.New()})

	h.UploadAsset(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data struct {
			ViewURL             string                 `json:"view_url"`
			InternalDownloadURL string                 `json:"internal_download_url"`
			Job                 service.DispatchResult `json:"job"`
			Warnings            []string               `json:"warnings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://dam.example.com/api/v1/assets/"+assetID.String()+"/view", body.Data.ViewURL)
	assert.Equal(t, "https://dam.example.com/api/v1/assets/"+assetID.String()+"/download", body.Data.InternalDownloadURL)
	assert.False(t, body.Data.Job.Dispatched)
	assert.NotNil(t, body.Data.Warnings)
	assert.Empty(t, body.Data.Warnings)
}

func TestAssetHandler_Lookups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	actorID := uuid.New()
	assetID := uuid.New()

	tests := []struct {
		name           string
		assetID        string
		call           func(*AssetHandler, *gin.Context)
		mockSetup      func(*MockAssetService)
		expectedStatus int
		expectedLoc    string
	}{
		{
			name:    "get asset",
			assetID: assetID.String(),
			call:    (*AssetHandler).GetAsset,
			mockSetup: func(m *MockAssetService) {
				m.On("Get", mock.Anything, actorID, assetID).Return(&model.Asset{ID: assetID}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:    "get hidden asset",
			assetID: assetID.String(),
			call:    (*AssetHandler).GetAsset,
			mockSetup: func(m *MockAssetService) {
				m.On("Get", mock.Anything, actorID, assetID).Return(nil, service.ErrAssetNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "get with malformed id",
			assetID:        "not-a-uuid",
			call:           (*AssetHandler).GetAsset,
			mockSetup:      func(m *MockAssetService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "view redirects",
			assetID: assetID.String(),
			call:    (*AssetHandler).ViewAsset,
			mockSetup: func(m *MockAssetService) {
				m.On("ViewURL", mock.Anything, actorID, assetID).Return("https://s3/view?sig=1", nil)
			},
			expectedStatus: http.StatusFound,
			expectedLoc:    "https://s3/view?sig=1",
		},
		{
			name:    "download redirects",
			assetID: assetID.String(),
			call:    (*AssetHandler).DownloadAsset,
			mockSetup: func(m *MockAssetService) {
				m.On("DownloadURL", mock.Anything, actorID, assetID).Return("https://s3/dl?sig=1", nil)
			},
			expectedStatus: http.StatusFound,
			expectedLoc:    "https://s3/dl?sig=1",
		},
		{
			name:    "download presign failure",
			assetID: assetID.String(),
			call:    (*AssetHandler).DownloadAsset,
			mockSetup: func(m *MockAssetService) {
				m.On("DownloadURL", mock.Anything, actorID, assetID).Return("", errors.New("expired credentials"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := new(MockAssetService)
			tt.mockSetup(assets)
			h := NewAssetHandler(new(MockIngestService), assets, "", 0)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/assets/"+tt.assetID, nil)
			c.Params = []gin.Param{{Key: "asset_id", Value: tt.assetID}}
			c.Set(middleware.ActorKey, &model.User{ID: actorID})

			tt.call(h, c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedLoc != "" {
				assert.Equal(t, tt.expectedLoc, w.Header().Get("Location"))
			}
			assets.AssertExpectations(t)
		})
	}
}
