package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/repository"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]*models.Student
	createErr   error
	updateErr   error
	deactivated []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var list []models.Student
	for _, s := range m.students {
		list = append(list, *s)
	}
	return list, len(list), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByPhone(ctx context.Context, phone string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Phone == phone {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	student.ID = "student-1"
	student.Active = true
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, id string, patch models.StudentPatch) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func newTestStudentService(repo *mockStudentRepo) *StudentService {
	return NewStudentService(repo, validator.New(), zap.NewNop())
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestStudentService(repo)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName: "Rakoto Jean",
		Phone:    "0341234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)
	assert.True(t, student.Active)
}

func TestStudentServiceCreateDuplicatePhone(t *testing.T) {
	repo := &mockStudentRepo{createErr: repository.ErrDuplicatePhone}
	svc := newTestStudentService(repo)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName: "Rakoto Jean",
		Phone:    "0341234567",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "phone number already registered", appErr.Message)
}

func TestStudentServiceCreateInvalidEmail(t *testing.T) {
	svc := newTestStudentService(&mockStudentRepo{})

	email := "not-an-email"
	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName: "Rakoto Jean",
		Phone:    "0341234567",
		Email:    &email,
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateEmptyPhone(t *testing.T) {
	svc := newTestStudentService(&mockStudentRepo{})

	empty := ""
	_, err := svc.Update(context.Background(), "student-1", models.StudentPatch{Phone: &empty})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdatePhoneCollision(t *testing.T) {
	repo := &mockStudentRepo{
		students:  map[string]*models.Student{"student-1": {ID: "student-1", Phone: "0341234567"}},
		updateErr: repository.ErrDuplicatePhone,
	}
	svc := newTestStudentService(repo)

	phone := "0349999999"
	_, err := svc.Update(context.Background(), "student-1", models.StudentPatch{Phone: &phone})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"student-1": {ID: "student-1", Active: true},
	}}
	svc := newTestStudentService(repo)

	require.NoError(t, svc.Deactivate(context.Background(), "student-1"))
	assert.Contains(t, repo.deactivated, "student-1")

	err := svc.Deactivate(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
