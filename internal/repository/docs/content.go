package docs

import (
	"context"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/repository"
)

type postRepository struct {
	ds docstore.Store
}

func NewPostRepository(ds docstore.Store) repository.PostRepository {
	return &postRepository{ds: ds}
}

func (r *postRepository) Create(ctx context.Context, post *domain.Post) error {
	id, err := r.ds.Add(ctx, postsCollection, post)
	if err != nil {
		return err
	}
	post.ID = id
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	post := &domain.Post{}
	if err := r.ds.Get(ctx, postsCollection, id, post); err != nil {
		return nil, mapErr(err)
	}
	post.ID = id
	return post, nil
}

func (r *postRepository) List(ctx context.Context, limit int) ([]domain.Post, error) {
	snaps, err := r.ds.Query(ctx, postsCollection, docstore.Query{Limit: limit}.OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps, func(p *domain.Post, id string) { p.ID = id })
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	return mapErr(r.ds.Delete(ctx, postsCollection, id))
}

type projectRepository struct {
	ds docstore.Store
}

func NewProjectRepository(ds docstore.Store) repository.ProjectRepository {
	return &projectRepository{ds: ds}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	id, err := r.ds.Add(ctx, projectsCollection, project)
	if err != nil {
		return err
	}
	project.ID = id
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	project := &domain.Project{}
	if err := r.ds.Get(ctx, projectsCollection, id, project); err != nil {
		return nil, mapErr(err)
	}
	project.ID = id
	return project, nil
}

func (r *projectRepository) List(ctx context.Context) ([]domain.Project, error) {
	snaps, err := r.ds.Query(ctx, projectsCollection, docstore.Query{}.OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps, func(p *domain.Project, id string) { p.ID = id })
}

func (r *projectRepository) Delete(ctx context.Context, id string) error {
	return mapErr(r.ds.Delete(ctx, projectsCollection, id))
}
