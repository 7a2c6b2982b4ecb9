package docs

import (
	"context"
	"sort"

	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/repository"
)

type spaceRepository struct {
	ds docstore.Store
}

func NewSpaceRepository(ds docstore.Store) repository.SpaceRepository {
	return &spaceRepository{ds: ds}
}

func (r *spaceRepository) Create(ctx context.Context, space *domain.Space) error {
	id, err := r.ds.Add(ctx, spacesCollection, space)
	if err != nil {
		return err
	}
	space.ID = id
	return nil
}

func (r *spaceRepository) GetByID(ctx context.Context, id string) (*domain.Space, error) {
	space := &domain.Space{}
	if err := r.ds.Get(ctx, spacesCollection, id, space); err != nil {
		return nil, mapErr(err)
	}
	space.ID = id
	return space, nil
}

func (r *spaceRepository) List(ctx context.Context, activeOnly bool) ([]domain.Space, error) {
	q := docstore.Query{}
	if activeOnly {
		q = q.Where("activo", docstore.OpEqual, true)
	}
	snaps, err := r.ds.Query(ctx, spacesCollection, q)
	if err != nil {
		return nil, err
	}
	spaces, err := decodeAll(snaps, func(s *domain.Space, id string) { s.ID = id })
	if err != nil {
		return nil, err
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].Name < spaces[j].Name })
	return spaces, nil
}

func (r *spaceRepository) Update(ctx context.Context, space *domain.Space) error {
	return mapErr(r.ds.Update(ctx, spacesCollection, space.ID,
		docstore.Field{Path: "nombre", Value: space.Name},
		docstore.Field{Path: "tipo", Value: space.Type},
		docstore.Field{Path: "capacidad", Value: space.Capacity},
		docstore.Field{Path: "ubicacion", Value: space.Location},
		docstore.Field{Path: "activo", Value: space.Active},
		docstore.Field{Path: "imagenUrl", Value: space.ImageURL},
	))
}

func (r *spaceRepository) Delete(ctx context.Context, id string) error {
	return mapErr(r.ds.Delete(ctx, spacesCollection, id))
}

type reservationRepository struct {
	ds docstore.Store
}

func NewReservationRepository(ds docstore.Store) repository.ReservationRepository {
	return &reservationRepository{ds: ds}
}

func sameSlotQuery(spaceID, date string) docstore.Query {
	return docstore.Query{}.
		Where("espacioId", docstore.OpEqual, spaceID).
		Where("fecha", docstore.OpEqual, date)
}

func setReservationID(r *domain.Reservation, id string) { r.ID = id }

func (r *reservationRepository) CreateIfFree(ctx context.Context, reservation *domain.Reservation) error {
	var newID string
	err := r.ds.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snaps, err := tx.Query(reservationsCollection, sameSlotQuery(reservation.SpaceID, reservation.Date))
		if err != nil {
			return err
		}
		existing, err := decodeAll(snaps, setReservationID)
		if err != nil {
			return err
		}
		for i := range existing {
			if reservation.Overlaps(&existing[i]) {
				return repository.ErrOverlap
			}
		}
		newID, err = tx.Add(reservationsCollection, reservation)
		return err
	})
	if err != nil {
		return mapErr(err)
	}
	reservation.ID = newID
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	reservation := &domain.Reservation{}
	if err := r.ds.Get(ctx, reservationsCollection, id, reservation); err != nil {
		return nil, mapErr(err)
	}
	reservation.ID = id
	return reservation, nil
}

func (r *reservationRepository) ListBySpace(ctx context.Context, spaceID, date string) ([]domain.Reservation, error) {
	q := docstore.Query{}.Where("espacioId", docstore.OpEqual, spaceID)
	if date != "" {
		q = sameSlotQuery(spaceID, date)
	}
	snaps, err := r.ds.Query(ctx, reservationsCollection, q)
	if err != nil {
		return nil, err
	}
	reservations, err := decodeAll(snaps, setReservationID)
	if err != nil {
		return nil, err
	}
	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].Date != reservations[j].Date {
			return reservations[i].Date < reservations[j].Date
		}
		return reservations[i].StartTime < reservations[j].StartTime
	})
	return reservations, nil
}

func (r *reservationRepository) Delete(ctx context.Context, id string) error {
	return mapErr(r.ds.Delete(ctx, reservationsCollection, id))
}
