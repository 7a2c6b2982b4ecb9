package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/repository"
)

const defaultPostLimit = 50

type contentService struct {
	postRepo    repository.PostRepository
	projectRepo repository.ProjectRepository
	now         func() time.Time
}

func NewContentService(postRepo repository.PostRepository, projectRepo repository.ProjectRepository) ContentService {
	return &contentService{postRepo: postRepo, projectRepo: projectRepo, now: time.Now}
}

func (s *contentService) CreatePost(ctx context.Context, post *domain.Post) error {
	post.Title = strings.TrimSpace(post.Title)
	post.Body = strings.TrimSpace(post.Body)
	if err := checkInput(post, "La noticia necesita título y contenido.", nil); err != nil {
		return err
	}
	post.CreatedAt = s.now()
	if err := s.postRepo.Create(ctx, post); err != nil {
		return failure("ContentService.CreatePost", err, "No se pudo publicar la noticia.")
	}
	return nil
}

func (s *contentService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("La noticia no existe.")
	}
	if err != nil {
		return nil, failure("ContentService.GetPost", err, "No se pudo cargar la noticia.", "postID", id)
	}
	return post, nil
}

func (s *contentService) ListPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit <= 0 || limit > defaultPostLimit {
		limit = defaultPostLimit
	}
	posts, err := s.postRepo.List(ctx, limit)
	if err != nil {
		return nil, failure("ContentService.ListPosts", err, "No se pudieron cargar las noticias.")
	}
	return posts, nil
}

func (s *contentService) DeletePost(ctx context.Context, id string) error {
	err := s.postRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("La noticia no existe.")
	}
	if err != nil {
		return failure("ContentService.DeletePost", err, "No se pudo eliminar la noticia.", "postID", id)
	}
	return nil
}

func (s *contentService) CreateProject(ctx context.Context, project *domain.Project) error {
	project.Title = strings.TrimSpace(project.Title)
	if err := checkInput(project, "El proyecto necesita un título.", nil); err != nil {
		return err
	}
	if project.Status == "" {
		project.Status = "en curso"
	}
	project.CreatedAt = s.now()
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return failure("ContentService.CreateProject", err, "No se pudo crear el proyecto.")
	}
	return nil
}

func (s *contentService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("El proyecto no existe.")
	}
	if err != nil {
		return nil, failure("ContentService.GetProject", err, "No se pudo cargar el proyecto.", "projectID", id)
	}
	return project, nil
}

func (s *contentService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.projectRepo.List(ctx)
	if err != nil {
		return nil, failure("ContentService.ListProjects", err, "No se pudieron cargar los proyectos.")
	}
	return projects, nil
}

func (s *contentService) DeleteProject(ctx context.Context, id string) error {
	err := s.projectRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("El proyecto no existe.")
	}
	if err != nil {
		return failure("ContentService.DeleteProject", err, "No se pudo eliminar el proyecto.", "projectID", id)
	}
	return nil
}
