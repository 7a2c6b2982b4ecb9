package docs

import (
	"context"
	"sort"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/repository"
)

type userRepository struct {
	ds docstore.Store
}

func NewUserRepository(ds docstore.Store) repository.UserRepository {
	return &userRepository{ds: ds}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.ds.Set(ctx, usersCollection, user.ID, user)
}

func (r *userRepository) GetByID(ctx context.Context, uid string) (*domain.User, error) {
	user := &domain.User{}
	if err := r.ds.Get(ctx, usersCollection, uid, user); err != nil {
		return nil, mapErr(err)
	}
	user.ID = uid
	return user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return mapErr(r.ds.Update(ctx, usersCollection, user.ID,
		docstore.Field{Path: "nombre", Value: user.Name},
		docstore.Field{Path: "dni", Value: user.NationalID},
		docstore.Field{Path: "direccion", Value: user.Address},
	))
}

func (r *userRepository) UpdateRole(ctx context.Context, uid string, role domain.Role) error {
	return mapErr(r.ds.Update(ctx, usersCollection, uid, docstore.Field{Path: "role", Value: role}))
}

func (r *userRepository) Delete(ctx context.Context, uid string) error {
	return mapErr(r.ds.Delete(ctx, usersCollection, uid))
}

func (r *userRepository) List(ctx context.Context, role domain.Role) ([]domain.User, error) {
	q := docstore.Query{}
	if role != "" {
		q = q.Where("role", docstore.OpEqual, role)
	}
	snaps, err := r.ds.Query(ctx, usersCollection, q)
	if err != nil {
		return nil, err
	}
	users, err := decodeAll(snaps, func(u *domain.User, id string) { u.ID = id })
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}
