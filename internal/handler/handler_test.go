package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/insight-compliance-api/internal/dto"
	"github.com/noah-isme/insight-compliance-api/internal/middleware"
	"github.com/noah-isme/insight-compliance-api/internal/models"
	"github.com/noah-isme/insight-compliance-api/internal/service"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withStaff(c *gin.Context) {
	claims := &models.JWTClaims{Email: "coordinator@example.org", Role: models.StaffRole}
	claims.Subject = "staff-1"
	c.Set(middleware.ContextUserKey, claims)
}

type participantServiceStub struct {
	registered dto.RegisterParticipantRequest
	filter     dto.ParticipantFilter
	updated    dto.UpdateParticipantRequest
	deleted    int64
	err        error
}

func (s *participantServiceStub) Register(ctx context.Context, req dto.RegisterParticipantRequest) (*dto.ParticipantResponse, error) {
	s.registered = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ParticipantResponse{ParticipantSchedule: models.ParticipantSchedule{ParticipantID: req.ParticipantID}}, nil
}

func (s *participantServiceStub) Get(ctx context.Context, id int64) (*dto.ParticipantResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ParticipantResponse{ParticipantSchedule: models.ParticipantSchedule{ParticipantID: id}, Status: models.StatusInStudy}, nil
}

func (s *participantServiceStub) List(ctx context.Context, filter dto.ParticipantFilter) ([]dto.ParticipantResponse, *models.Pagination, error) {
	s.filter = filter
	return []dto.ParticipantResponse{{ParticipantSchedule: models.ParticipantSchedule{ParticipantID: 1}}},
		&models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (s *participantServiceStub) Update(ctx context.Context, id int64, req dto.UpdateParticipantRequest) (*dto.ParticipantResponse, error) {
	s.updated = req
	return &dto.ParticipantResponse{ParticipantSchedule: models.ParticipantSchedule{ParticipantID: id}}, nil
}

func (s *participantServiceStub) Delete(ctx context.Context, id int64) error {
	s.deleted = id
	return s.err
}

type messagingServiceStub struct {
	req dto.SendSMSRequest
	err error
}

func (m *messagingServiceStub) SendTest(ctx context.Context, id int64, req dto.SendSMSRequest) (*dto.SendSMSResponse, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SendSMSResponse{ParticipantID: id, MessageID: "msg-1"}, nil
}

func TestParticipantHandlerRegister(t *testing.T) {
	svc := &participantServiceStub{}
	h := NewParticipantHandler(svc, &messagingServiceStub{})

	body, _ := json.Marshal(dto.RegisterParticipantRequest{ParticipantID: 42, StartDate: "2024-01-01", PhoneNumber: "5555550100", ScheduleType: "Standard Schedule"})
	c, rec := newGinContext(http.MethodPost, "/api/v1/participants", body)
	h.Register(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(42), svc.registered.ParticipantID)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestParticipantHandlerRegisterConflict(t *testing.T) {
	svc := &participantServiceStub{err: appErrors.Clone(appErrors.ErrParticipantIDConflicts, "participant 42 already registered")}
	h := NewParticipantHandler(svc, &messagingServiceStub{})

	c, rec := newGinContext(http.MethodPost, "/api/v1/participants", []byte(`{"participantId":42}`))
	h.Register(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PARTICIPANT_EXISTS", env.Error.Code)
}

func TestParticipantHandlerRejectsBadJSON(t *testing.T) {
	h := NewParticipantHandler(&participantServiceStub{}, &messagingServiceStub{})
	c, rec := newGinContext(http.MethodPost, "/api/v1/participants", []byte(`{`))
	h.Register(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantHandlerListBindsQuery(t *testing.T) {
	svc := &participantServiceStub{}
	h := NewParticipantHandler(svc, &messagingServiceStub{})

	c, rec := newGinContext(http.MethodGet, "/api/v1/participants?status=in_study&page=2&pageSize=5", nil)
	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusInStudy, svc.filter.Status)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestParticipantHandlerInvalidID(t *testing.T) {
	h := NewParticipantHandler(&participantServiceStub{}, &messagingServiceStub{})
	c, rec := newGinContext(http.MethodGet, "/api/v1/participants/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantHandlerGetNotFound(t *testing.T) {
	h := NewParticipantHandler(&participantServiceStub{err: appErrors.Clone(appErrors.ErrParticipantNotFound, "participant 9 not found")}, &messagingServiceStub{})
	c, rec := newGinContext(http.MethodGet, "/api/v1/participants/9", nil)
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParticipantHandlerUpdateAndDelete(t *testing.T) {
	svc := &participantServiceStub{}
	h := NewParticipantHandler(svc, &messagingServiceStub{})

	c, rec := newGinContext(http.MethodPatch, "/api/v1/participants/42", []byte(`{"startDate":"2024-01-03"}`))
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.updated.StartDate)
	assert.Equal(t, "2024-01-03", *svc.updated.StartDate)

	c, rec = newGinContext(http.MethodDelete, "/api/v1/participants/42", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(42), svc.deleted)
}

func TestParticipantHandlerSendSMS(t *testing.T) {
	messaging := &messagingServiceStub{}
	h := NewParticipantHandler(&participantServiceStub{}, messaging)

	c, rec := newGinContext(http.MethodPost, "/api/v1/participants/42/sms", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.SendSMS(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, messaging.req.Message)

	c, _ = newGinContext(http.MethodPost, "/api/v1/participants/42/sms", []byte(`{"message":"hi"}`))
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.SendSMS(c)
	assert.Equal(t, "hi", messaging.req.Message)

	messaging.err = appErrors.WrapAs(appErrors.ErrMessagingGateway, errors.New("throttled"), "")
	c, rec = newGinContext(http.MethodPost, "/api/v1/participants/42/sms", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.SendSMS(c)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type complianceServiceStub struct {
	report *models.ComplianceReport
	table  *models.SendTimeTable
	err    error
}

func (s complianceServiceStub) EvaluateParticipant(ctx context.Context, id int64) (*models.ComplianceReport, error) {
	return s.report, s.err
}

func (s complianceServiceStub) SendTimes(ctx context.Context, id int64) (*models.SendTimeTable, error) {
	return s.table, s.err
}

type dailyServiceStub struct {
	date string
	err  error
}

func (d *dailyServiceStub) Generate(ctx context.Context, date string) (*models.DailyReport, error) {
	d.date = date
	if d.err != nil {
		return nil, d.err
	}
	return &models.DailyReport{Date: "2024-01-06"}, nil
}

func TestComplianceHandlerParticipant(t *testing.T) {
	h := NewComplianceHandler(complianceServiceStub{report: &models.ComplianceReport{AsOf: "2024-01-06", TotalCompliance: 12.5}}, &dailyServiceStub{})
	c, rec := newGinContext(http.MethodGet, "/api/v1/compliance/participants/42", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.Participant(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestComplianceHandlerMapsDomainErrors(t *testing.T) {
	cases := map[*appErrors.Error]int{
		appErrors.ErrUnknownScheduleType:   http.StatusUnprocessableEntity,
		appErrors.ErrAmbiguousIdentity:     http.StatusUnprocessableEntity,
		appErrors.ErrLogServiceUnavailable: http.StatusServiceUnavailable,
		appErrors.ErrSurveyLoad:            http.StatusBadGateway,
		appErrors.ErrEvaluationTimedOut:    http.StatusGatewayTimeout,
	}
	for sentinel, status := range cases {
		h := NewComplianceHandler(complianceServiceStub{err: appErrors.Clone(sentinel, "")}, &dailyServiceStub{})
		c, rec := newGinContext(http.MethodGet, "/api/v1/compliance/participants/42/send-times", nil)
		c.Params = gin.Params{{Key: "id", Value: "42"}}
		h.SendTimes(c)
		assert.Equal(t, status, rec.Code, sentinel.Code)
	}
}

func TestComplianceHandlerDaily(t *testing.T) {
	daily := &dailyServiceStub{}
	h := NewComplianceHandler(complianceServiceStub{}, daily)
	c, rec := newGinContext(http.MethodGet, "/api/v1/compliance/daily?date=2024-01-06", nil)
	h.Daily(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-06", daily.date)

	daily.err = appErrors.Clone(appErrors.ErrValidation, "invalid date")
	c, rec = newGinContext(http.MethodGet, "/api/v1/compliance/daily?date=06/01/2024", nil)
	h.Daily(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type exportServiceStub struct {
	actor    string
	download *service.ExportDownload
	err      error
}

func (s *exportServiceStub) CreateJob(ctx context.Context, req dto.ExportRequest, actor string) (*dto.ExportJobResponse, error) {
	s.actor = actor
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (s *exportServiceStub) GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ExportStatusResponse{ID: id, Status: models.ExportStatusProcessing, Progress: 10}, nil
}

func (s *exportServiceStub) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.download, nil
}

func TestExportHandlerCreate(t *testing.T) {
	svc := &exportServiceStub{}
	h := NewExportHandler(svc)

	c, rec := newGinContext(http.MethodPost, "/api/v1/compliance/exports", []byte(`{"type":"daily_compliance","format":"csv"}`))
	h.Create(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newGinContext(http.MethodPost, "/api/v1/compliance/exports", []byte(`{"type":"daily_compliance","format":"csv"}`))
	withStaff(c)
	h.Create(c)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "staff-1", svc.actor)
}

func TestExportHandlerStatusNotFound(t *testing.T) {
	h := NewExportHandler(&exportServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "export job not found")})
	c, rec := newGinContext(http.MethodGet, "/api/v1/compliance/exports/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Status(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, os.WriteFile(path, []byte("Participant,Day\n42,6\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	h := NewExportHandler(&exportServiceStub{download: &service.ExportDownload{File: file, Filename: "daily.csv", ContentType: "text/csv"}})
	c, rec := newGinContext(http.MethodGet, "/api/v1/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="daily.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Participant,Day\n42,6\n", rec.Body.String())
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	h := NewExportHandler(&exportServiceStub{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})
	c, rec := newGinContext(http.MethodGet, "/api/v1/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type dashboardServiceStub struct{ hit bool }

func (d dashboardServiceStub) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	return &models.DashboardSummary{AsOf: "2024-01-06", Recruitment: models.RecruitmentProgress{Target: 65}}, d.hit, nil
}

func TestDashboardHandlerSummary(t *testing.T) {
	h := NewDashboardHandler(dashboardServiceStub{hit: true})
	c, rec := newGinContext(http.MethodGet, "/api/v1/dashboard", nil)
	h.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var summary models.DashboardSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 65, summary.Recruitment.Target)
}

type authServiceStub struct{ err error }

func (a authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &models.LoginResponse{AccessToken: "token", TokenType: "Bearer"}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	h := NewAuthHandler(authServiceStub{})
	c, rec := newGinContext(http.MethodPost, "/api/v1/auth/login", []byte(`{"email":"coordinator@example.org","password":"x"}`))
	h.Login(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewAuthHandler(authServiceStub{err: appErrors.ErrInvalidCredentials})
	c, rec = newGinContext(http.MethodPost, "/api/v1/auth/login", []byte(`{"email":"coordinator@example.org","password":"y"}`))
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(authServiceStub{})
	c, rec := newGinContext(http.MethodGet, "/api/v1/auth/me", nil)
	withStaff(c)
	h.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	var info models.UserInfo
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &info))
	assert.Equal(t, "staff-1", info.ID)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(ctx context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{"participants": pingerStub{}, "cache": pingerStub{}})
	c, rec := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"participants": pingerStub{err: errors.New("dynamodb unreachable")}})
	c, rec = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dynamodb unreachable")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil)
	c, rec := newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
