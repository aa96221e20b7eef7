package service

import (
	"context"
	"net/http"
	"strings"

	"teaching-workload/internal/model"
	"teaching-workload/pkg/apierror"
)

type semesterStore interface {
	FindByID(ctx context.Context, id int64) (model.Semester, error)
	List(ctx context.Context) ([]model.Semester, error)
	Create(ctx context.Context, s model.Semester) (model.Semester, error)
	Update(ctx context.Context, s model.Semester) (model.Semester, error)
}

type SemesterService struct {
	store semesterStore
}

func NewSemesterService(store semesterStore) *SemesterService {
	return &SemesterService{store: store}
}

func (s *SemesterService) List(ctx context.Context) ([]model.Semester, error) {
	return s.store.List(ctx)
}

func (s *SemesterService) Get(ctx context.Context, id int64) (model.Semester, error) {
	return s.store.FindByID(ctx, id)
}

func (s *SemesterService) Create(ctx context.Context, req model.CreateSemesterRequest) (model.Semester, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Semester{}, apierror.New(apierror.CodeBadRequest, "semester name is required", "name", http.StatusBadRequest)
	}

	return s.store.Create(ctx, model.Semester{Name: name, Active: req.Active})
}

func (s *SemesterService) Update(ctx context.Context, id int64, req model.UpdateSemesterRequest) (model.Semester, error) {
	semester, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.Semester{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return model.Semester{}, apierror.New(apierror.CodeBadRequest, "semester name must not be empty", "name", http.StatusBadRequest)
		}
		semester.Name = name
	}
	if req.Active != nil {
		semester.Active = *req.Active
	}

	return s.store.Update(ctx, semester)
}
