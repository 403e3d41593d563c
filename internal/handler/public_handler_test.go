package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	"github.com/vokatra/cfp-admin-api/internal/service"
)

type publicEnrollRepoMock struct {
	lastParams *repository.EnrollParams
	enrollErr  error
}

func (m *publicEnrollRepoMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *publicEnrollRepoMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (m *publicEnrollRepoMock) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return nil, sql.ErrNoRows
}

func (m *publicEnrollRepoMock) Exists(ctx context.Context, studentID, waveID string) (bool, error) {
	return false, nil
}

func (m *publicEnrollRepoMock) CountActiveByWave(ctx context.Context, waveID string) (int, error) {
	return 0, nil
}

func (m *publicEnrollRepoMock) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	return nil
}

func (m *publicEnrollRepoMock) EnrollTx(ctx context.Context, params repository.EnrollParams) (*repository.EnrollResult, error) {
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	m.lastParams = &params
	result := &repository.EnrollResult{EnrollmentID: "enrollment-1", LedgerID: "ledger-1"}
	if params.InitialPayment != nil {
		result.PaymentID = "payment-1"
	}
	return result, nil
}

func (m *publicEnrollRepoMock) WithdrawTx(ctx context.Context, waveID, studentID string) error {
	return nil
}

type publicStudentStoreMock struct{}

func (m *publicStudentStoreMock) FindByPhone(ctx context.Context, phone string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (m *publicStudentStoreMock) Create(ctx context.Context, student *models.Student) error {
	student.ID = "student-1"
	student.Active = true
	return nil
}

type publicWaveReaderMock struct{}

func (m *publicWaveReaderMock) FindByID(ctx context.Context, id string) (*models.Wave, error) {
	return &models.Wave{ID: id, LevelID: "level-1", Status: models.WaveStatusPlanned}, nil
}

type publicFeeResolverMock struct{}

func (m *publicFeeResolverMock) ResolveFeeSchedule(ctx context.Context, levelID string) (*models.FeeSchedule, error) {
	return &models.FeeSchedule{
		RegistrationFee:   decimal.NewFromInt(20000),
		TuitionFee:        decimal.NewFromInt(150000),
		BookFee:           decimal.NewFromInt(30000),
		RequiredBookCount: 1,
	}, nil
}

func newPublicHandlerTest(repo *publicEnrollRepoMock) *PublicHandler {
	enrollments := service.NewEnrollmentService(repo, &publicStudentStoreMock{}, &publicWaveReaderMock{}, &publicFeeResolverMock{}, nil, nil)
	return NewPublicHandler(enrollments, nil, true)
}

func postSelfEnroll(t *testing.T, handler *PublicHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/public/enrollments", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.SelfEnroll(c)
	return w
}

func TestPublicHandlerSelfEnroll(t *testing.T) {
	repo := &publicEnrollRepoMock{}
	handler := newPublicHandlerTest(repo)

	w := postSelfEnroll(t, handler, `{"wave_id":"wave-1","full_name":"Rakoto Jean","phone":"0341234567"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, repo.lastParams)
	assert.Equal(t, models.EnrollmentStatusPendingReview, repo.lastParams.Status)
	assert.Nil(t, repo.lastParams.InitialPayment)
}

func TestPublicHandlerSelfEnrollWithPayment(t *testing.T) {
	repo := &publicEnrollRepoMock{}
	handler := newPublicHandlerTest(repo)

	w := postSelfEnroll(t, handler, `{
		"wave_id": "wave-1",
		"full_name": "Rakoto Jean",
		"phone": "0341234567",
		"initial_payment": {"amount": 20000, "method": "MVOLA", "reference": "MM-48213"}
	}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, repo.lastParams)
	assert.Equal(t, models.EnrollmentStatusPendingReview, repo.lastParams.Status)

	payment := repo.lastParams.InitialPayment
	require.NotNil(t, payment)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, "MVOLA", payment.Method)
	require.NotNil(t, payment.Reference)
	assert.Equal(t, "MM-48213", *payment.Reference)
	assert.Equal(t, models.FeeCategoryRegistration, payment.Category)
}

func TestPublicHandlerSelfEnrollPaymentWithoutReference(t *testing.T) {
	repo := &publicEnrollRepoMock{}
	handler := newPublicHandlerTest(repo)

	w := postSelfEnroll(t, handler, `{
		"wave_id": "wave-1",
		"full_name": "Rakoto Jean",
		"phone": "0341234567",
		"initial_payment": {"amount": 20000, "method": "MVOLA"}
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, repo.lastParams)
}

func TestPublicHandlerSelfEnrollInvalidPhone(t *testing.T) {
	repo := &publicEnrollRepoMock{}
	handler := newPublicHandlerTest(repo)

	w := postSelfEnroll(t, handler, `{"wave_id":"wave-1","full_name":"Rakoto Jean","phone":"0311234567"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, repo.lastParams)
}

func TestPublicHandlerSelfEnrollDisabled(t *testing.T) {
	repo := &publicEnrollRepoMock{}
	enrollments := service.NewEnrollmentService(repo, &publicStudentStoreMock{}, &publicWaveReaderMock{}, &publicFeeResolverMock{}, nil, nil)
	handler := NewPublicHandler(enrollments, nil, false)

	w := postSelfEnroll(t, handler, `{"wave_id":"wave-1","full_name":"Rakoto Jean","phone":"0341234567"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}
