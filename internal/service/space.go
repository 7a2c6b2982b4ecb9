package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/metrics"
	"mibarrio-backend/internal/repository"
)

type spaceService struct {
	spaceRepo       repository.SpaceRepository
	reservationRepo repository.ReservationRepository
	now             func() time.Time
}

func NewSpaceService(spaceRepo repository.SpaceRepository, reservationRepo repository.ReservationRepository) SpaceService {
	return &spaceService{
		spaceRepo:       spaceRepo,
		reservationRepo: reservationRepo,
		now:             time.Now,
	}
}

func validateSpace(space *domain.Space) error {
	space.Name = strings.TrimSpace(space.Name)
	return checkInput(space, "El espacio necesita un nombre.", map[string]string{
		"Capacity": "La capacidad no puede ser negativa.",
	})
}

func (s *spaceService) CreateSpace(ctx context.Context, space *domain.Space) error {
	if err := validateSpace(space); err != nil {
		return err
	}
	if err := s.spaceRepo.Create(ctx, space); err != nil {
		return failure("SpaceService.CreateSpace", err, "No se pudo crear el espacio.")
	}
	return nil
}

func (s *spaceService) GetSpace(ctx context.Context, id string) (*domain.Space, error) {
	space, err := s.spaceRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("El espacio no existe.")
	}
	if err != nil {
		return nil, failure("SpaceService.GetSpace", err, "No se pudo cargar el espacio.", "spaceID", id)
	}
	return space, nil
}

func (s *spaceService) ListSpaces(ctx context.Context, activeOnly bool) ([]domain.Space, error) {
	spaces, err := s.spaceRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, failure("SpaceService.ListSpaces", err, "No se pudieron cargar los espacios.")
	}
	return spaces, nil
}

func (s *spaceService) UpdateSpace(ctx context.Context, space *domain.Space) error {
	if err := validateSpace(space); err != nil {
		return err
	}
	err := s.spaceRepo.Update(ctx, space)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("El espacio no existe.")
	}
	if err != nil {
		return failure("SpaceService.UpdateSpace", err, "No se pudo actualizar el espacio.", "spaceID", space.ID)
	}
	return nil
}

func (s *spaceService) DeleteSpace(ctx context.Context, id string) error {
	err := s.spaceRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("El espacio no existe.")
	}
	if err != nil {
		return failure("SpaceService.DeleteSpace", err, "No se pudo eliminar el espacio.", "spaceID", id)
	}
	return nil
}

func validateSlot(r *domain.Reservation) error {
	if err := checkInput(r, "Los horarios deben tener el formato HH:MM.", map[string]string{
		"Date": "La fecha debe tener el formato AAAA-MM-DD.",
	}); err != nil {
		return err
	}
	start, _ := time.Parse(timeLayout, r.StartTime)
	end, _ := time.Parse(timeLayout, r.EndTime)
	if !start.Before(end) {
		return ErrBadRequest("La hora de inicio debe ser anterior a la de fin.")
	}
	return nil
}

// Reserve books the slot; the overlap check and the write happen in one transaction
func (s *spaceService) Reserve(ctx context.Context, reservation *domain.Reservation) error {
	const method = "SpaceService.Reserve"
	logger.EnterMethod(method, "spaceID", reservation.SpaceID, "date", reservation.Date)
	if reservation.UserID == "" {
		return ErrUnauthorized("Iniciá sesión para reservar.")
	}
	if err := validateSlot(reservation); err != nil {
		return err
	}

	space, err := s.GetSpace(ctx, reservation.SpaceID)
	if err != nil {
		return err
	}
	if !space.Active {
		return ErrConflict("El espacio no está disponible para reservas.")
	}

	reservation.CreatedAt = s.now()
	err = s.reservationRepo.CreateIfFree(ctx, reservation)
	if errors.Is(err, repository.ErrOverlap) {
		metrics.Reservations.WithLabelValues("overlap").Inc()
		return ErrReservationOverlap
	}
	if err != nil {
		metrics.Reservations.WithLabelValues("error").Inc()
		return failure(method, err, "No se pudo guardar la reserva.", "spaceID", reservation.SpaceID)
	}

	metrics.Reservations.WithLabelValues("ok").Inc()
	logger.ExitMethod(method, "reservationID", reservation.ID)
	return nil
}

func (s *spaceService) ListReservations(ctx context.Context, spaceID, date string) ([]domain.Reservation, error) {
	if err := checkVar(date, "omitempty,datetime=2006-01-02", "La fecha debe tener el formato AAAA-MM-DD."); err != nil {
		return nil, err
	}
	reservations, err := s.reservationRepo.ListBySpace(ctx, spaceID, date)
	if err != nil {
		return nil, failure("SpaceService.ListReservations", err, "No se pudieron cargar las reservas.", "spaceID", spaceID)
	}
	return reservations, nil
}

// CancelReservation deletes a reservation owned by the actor, or any reservation for admins
func (s *spaceService) CancelReservation(ctx context.Context, actorID string, actorIsAdmin bool, spaceID, reservationID string) error {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && reservation.SpaceID != spaceID) {
		return ErrNotFound("La reserva no existe.")
	}
	if err != nil {
		return failure("SpaceService.CancelReservation", err, "No se pudo cargar la reserva.", "reservationID", reservationID)
	}
	if reservation.UserID != actorID && !actorIsAdmin {
		return ErrForbidden("Solo podés cancelar tus propias reservas.")
	}
	if err := s.reservationRepo.Delete(ctx, reservationID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return failure("SpaceService.CancelReservation", err, "No se pudo cancelar la reserva.", "reservationID", reservationID)
	}
	return nil
}
