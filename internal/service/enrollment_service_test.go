package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	existing    map[string]bool
	activeCount int
	enrollErr   error
	lastParams  *repository.EnrollParams
	status      map[string]models.EnrollmentStatus
	withdrawn   []string
	withdrawErr error
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, waveID string) (bool, error) {
	return m.existing[studentID+"/"+waveID], nil
}

func (m *mockEnrollmentRepo) CountActiveByWave(ctx context.Context, waveID string) (int, error) {
	return m.activeCount, nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	if m.status == nil {
		m.status = make(map[string]models.EnrollmentStatus)
	}
	m.status[id] = status
	e := m.enrollments[id]
	e.Status = status
	m.enrollments[id] = e
	return nil
}

func (m *mockEnrollmentRepo) EnrollTx(ctx context.Context, params repository.EnrollParams) (*repository.EnrollResult, error) {
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

func (m *mockEnrollmentRepo) WithdrawTx(ctx context.Context, waveID, studentID string) error {
	if m.withdrawErr != nil {
		return m.withdrawErr
	}
	m.withdrawn = append(m.withdrawn, waveID+"/"+studentID)
	return nil
}

type mockStudentStore struct {
	byPhone   map[string]*models.Student
	created   *models.Student
	createErr error
}

func (m *mockStudentStore) FindByPhone(ctx context.Context, phone string) (*models.Student, error) {
	if s, ok := m.byPhone[phone]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	student.ID = "student-1"
	m.created = student
	return nil
}

type mockWaveReader struct {
	waves map[string]*models.Wave
}

func (m *mockWaveReader) FindByID(ctx context.Context, id string) (*models.Wave, error) {
	if w, ok := m.waves[id]; ok {
		return w, nil
	}
	return nil, sql.ErrNoRows
}

type mockFeeResolver struct {
	fees *models.FeeSchedule
}

func (m *mockFeeResolver) ResolveFeeSchedule(ctx context.Context, levelID string) (*models.FeeSchedule, error) {
	if m.fees == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "level not found")
	}
	return m.fees, nil
}

func testFeeSchedule() *models.FeeSchedule {
	return &models.FeeSchedule{
		RegistrationFee:   decimal.NewFromInt(20000),
		TuitionFee:        decimal.NewFromInt(150000),
		BookFee:           decimal.NewFromInt(30000),
		RequiredBookCount: 1,
		DurationMonths:    3,
	}
}

func openWave(capacity int) *models.Wave {
	return &models.Wave{ID: "wave-1", LevelID: "level-1", Status: models.WaveStatusPlanned, CapacityMax: &capacity}
}

func newTestEnrollmentService(repo *mockEnrollmentRepo, students *mockStudentStore, waves *mockWaveReader, fees *mockFeeResolver) *EnrollmentService {
	return NewEnrollmentService(repo, students, waves, fees, validator.New(), zap.NewNop())
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{activeCount: 5}
	students := &mockStudentStore{}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(repo, students, waves, &mockFeeResolver{fees: testFeeSchedule()})

	resp, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, "enrollment-1", resp.EnrollmentID)
	assert.Equal(t, "student-1", resp.StudentID)
	assert.Equal(t, "ledger-1", resp.LedgerID)
	assert.Empty(t, resp.PaymentID)
	require.NotNil(t, students.created)
	require.NotNil(t, repo.lastParams)
	assert.True(t, repo.lastParams.TotalDue.Equal(decimal.NewFromInt(200000)))
}

func TestEnrollmentServiceEnrollExistingStudent(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students := &mockStudentStore{byPhone: map[string]*models.Student{
		"0341234567": {ID: "student-7", FullName: "Rakoto Jean", Phone: "0341234567"},
	}}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(repo, students, waves, &mockFeeResolver{fees: testFeeSchedule()})

	resp, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, "student-7", resp.StudentID)
	assert.Nil(t, students.created)
}

func TestEnrollmentServiceEnrollDuplicatePhoneRace(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	students := &mockStudentStore{createErr: repository.ErrDuplicatePhone}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(repo, students, waves, &mockFeeResolver{fees: testFeeSchedule()})

	// The create loses the race, the re-read still misses. The service
	// must not report success with a half-resolved student.
	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	assert.Error(t, err)

	students.byPhone = map[string]*models.Student{"0341234567": {ID: "student-9", FullName: "Rakoto Jean", Phone: "0341234567"}}
	resp, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, "student-9", resp.StudentID)
}

func TestEnrollmentServiceEnrollWaveNotFound(t *testing.T) {
	svc := newTestEnrollmentService(&mockEnrollmentRepo{}, &mockStudentStore{}, &mockWaveReader{}, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "missing",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollWaveClosed(t *testing.T) {
	wave := openWave(20)
	wave.Status = models.WaveStatusCompleted
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": wave}}
	svc := newTestEnrollmentService(&mockEnrollmentRepo{}, &mockStudentStore{}, waves, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollCapacityExceeded(t *testing.T) {
	repo := &mockEnrollmentRepo{activeCount: 10}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(10)}}
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, waves, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollAlreadyEnrolled(t *testing.T) {
	repo := &mockEnrollmentRepo{existing: map[string]bool{"student-7/wave-1": true}}
	students := &mockStudentStore{byPhone: map[string]*models.Student{
		"0341234567": {ID: "student-7", FullName: "Rakoto Jean", Phone: "0341234567"},
	}}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(repo, students, waves, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
	})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollWithInitialPayment(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, waves, &mockFeeResolver{fees: testFeeSchedule()})

	resp, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
		InitialPayment: &InitialPaymentRequest{
			Amount: decimal.NewFromInt(20000),
			Method: "CASH",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "payment-1", resp.PaymentID)
	require.NotNil(t, repo.lastParams.InitialPayment)
	assert.Equal(t, models.FeeCategoryRegistration, repo.lastParams.InitialPayment.Category)
}

func TestEnrollmentServiceEnrollInitialPaymentTuitionFallback(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	fees := testFeeSchedule()
	fees.RegistrationFee = decimal.Zero
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, waves, &mockFeeResolver{fees: fees})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
		InitialPayment: &InitialPaymentRequest{
			Amount: decimal.NewFromInt(50000),
			Method: "MVOLA",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeeCategoryTuition, repo.lastParams.InitialPayment.Category)
}

func TestEnrollmentServiceEnrollInitialPaymentExceedsTotal(t *testing.T) {
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(&mockEnrollmentRepo{}, &mockStudentStore{}, waves, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:  "wave-1",
		Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
		InitialPayment: &InitialPaymentRequest{
			Amount: decimal.NewFromInt(250000),
			Method: "CASH",
		},
	})
	assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollMapsRepositoryErrors(t *testing.T) {
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}

	cases := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"wave closed under lock", repository.ErrWaveClosed, appErrors.ErrInvalidState.Code},
		{"capacity full under lock", repository.ErrCapacityFull, appErrors.ErrCapacityExceeded.Code},
		{"duplicate enrollment", repository.ErrAlreadyEnrolled, appErrors.ErrConflict.Code},
		{"serialization failure", repository.ErrTxRetryable, appErrors.ErrTransactionFailed.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockEnrollmentRepo{enrollErr: tc.repoErr}
			svc := newTestEnrollmentService(repo, &mockStudentStore{}, waves, &mockFeeResolver{fees: testFeeSchedule()})
			_, err := svc.Enroll(context.Background(), EnrollRequest{
				WaveID:  "wave-1",
				Student: EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
			})
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestEnrollmentServiceEnrollPassesInitialStatus(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	waves := &mockWaveReader{waves: map[string]*models.Wave{"wave-1": openWave(20)}}
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, waves, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		WaveID:        "wave-1",
		Student:       EnrollStudentInfo{FullName: "Rakoto Jean", Phone: "0341234567"},
		InitialStatus: models.EnrollmentStatusPendingReview,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingReview, repo.lastParams.Status)
}

func TestEnrollmentServiceWithdraw(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, &mockWaveReader{}, &mockFeeResolver{fees: testFeeSchedule()})

	err := svc.Withdraw(context.Background(), "wave-1", "student-1")
	require.NoError(t, err)
	assert.Contains(t, repo.withdrawn, "wave-1/student-1")
}

func TestEnrollmentServiceWithdrawNotFound(t *testing.T) {
	repo := &mockEnrollmentRepo{withdrawErr: sql.ErrNoRows}
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, &mockWaveReader{}, &mockFeeResolver{fees: testFeeSchedule()})

	err := svc.Withdraw(context.Background(), "wave-1", "student-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateStatus(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enrollment-1": {ID: "enrollment-1", Status: models.EnrollmentStatusPendingReview},
	}}
	svc := newTestEnrollmentService(repo, &mockStudentStore{}, &mockWaveReader{}, &mockFeeResolver{fees: testFeeSchedule()})

	detail, err := svc.UpdateStatus(context.Background(), "enrollment-1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
}

func TestEnrollmentServiceUpdateStatusUnknown(t *testing.T) {
	svc := newTestEnrollmentService(&mockEnrollmentRepo{}, &mockStudentStore{}, &mockWaveReader{}, &mockFeeResolver{fees: testFeeSchedule()})

	_, err := svc.UpdateStatus(context.Background(), "enrollment-1", "SUSPENDED")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
