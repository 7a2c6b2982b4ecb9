// Package docs implements the repositories on top of a docstore.Store.
package docs

import (
	"errors"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/repository"
)

const (
	usersCollection        = "users"
	requestsCollection     = "requests"
	activitiesCollection   = "activities"
	spacesCollection       = "spaces"
	reservationsCollection = "reservations"
	postsCollection        = "posts"
	projectsCollection     = "projects"
)

func enrollmentsCollection(activityID string) string {
	return activitiesCollection + "/" + activityID + "/enrollments"
}

type Store struct {
	docs docstore.Store
	repository.UserRepository
	repository.RequestRepository
	repository.ActivityRepository
	repository.SpaceRepository
	repository.ReservationRepository
	repository.PostRepository
	repository.ProjectRepository
}

func NewStore(ds docstore.Store) *Store {
	return &Store{
		docs:                  ds,
		UserRepository:        NewUserRepository(ds),
		RequestRepository:     NewRequestRepository(ds),
		ActivityRepository:    NewActivityRepository(ds),
		SpaceRepository:       NewSpaceRepository(ds),
		ReservationRepository: NewReservationRepository(ds),
		PostRepository:        NewPostRepository(ds),
		ProjectRepository:     NewProjectRepository(ds),
	}
}

func (s *Store) Close() error {
	return s.docs.Close()
}

func mapErr(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return repository.ErrNotFound
	}
	return err
}

// decodeAll decodes every snapshot into T and stamps the document id on it
func decodeAll[T any](snaps []docstore.Snapshot, setID func(*T, string)) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := s.DataTo(&v); err != nil {
			return nil, err
		}
		setID(&v, s.ID())
		out = append(out, v)
	}
	return out, nil
}
