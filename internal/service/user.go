package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"mibarrio-backend/internal/domain"
	"mibarrio-backend/internal/identity"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/repository"
)

var newUserMessages = map[string]string{
	"Password": "La contraseña debe tener al menos 6 caracteres.",
	"Role":     "Rol inválido.",
}

type userService struct {
	userRepo repository.UserRepository
	idp      identity.Provider
	sessions SessionNotifier
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository, idp identity.Provider, sessions SessionNotifier) UserService {
	return &userService{
		userRepo: userRepo,
		idp:      idp,
		sessions: sessions,
		now:      time.Now,
	}
}

// CreateUser provisions an account and its profile directly, without a registration request
func (s *userService) CreateUser(ctx context.Context, input NewUser) (*domain.User, error) {
	const method = "UserService.CreateUser"
	logger.EnterMethod(method, "email", input.Email)

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := checkInput(input, "Completá nombre y un email válido.", newUserMessages); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = domain.RoleResident
	}

	prov, err := s.idp.Begin(ctx)
	if err != nil {
		return nil, failure(method, err, "No se pudo iniciar el alta del usuario.")
	}
	defer func() {
		if cerr := prov.Close(); cerr != nil {
			logger.Warn("Failed to close provisioning context", "error", cerr)
		}
	}()

	uid, err := prov.CreateAccount(ctx, input.Email, input.Password, input.Name)
	if errors.Is(err, identity.ErrEmailExists) {
		return nil, ErrEmailInUse
	}
	if err != nil {
		return nil, failure(method, err, "No se pudo crear la cuenta.", "email", input.Email)
	}

	user := &domain.User{
		ID:               uid,
		Name:             input.Name,
		Email:            input.Email,
		NationalID:       strings.TrimSpace(input.NationalID),
		Address:          strings.TrimSpace(input.Address),
		Role:             input.Role,
		MembershipStatus: domain.MembershipActive,
		CreatedAt:        s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, failure(method, err, "No se pudo crear el perfil.", "uid", uid)
	}

	logger.ExitMethod(method, "uid", uid)
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound("El usuario no existe.")
	}
	if err != nil {
		return nil, failure("UserService.GetUser", err, "No se pudo cargar el usuario.", "uid", uid)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, ErrBadRequest("Rol inválido.")
	}
	users, err := s.userRepo.List(ctx, role)
	if err != nil {
		return nil, failure("UserService.ListUsers", err, "No se pudieron cargar los usuarios.")
	}
	return users, nil
}

func (s *userService) UpdateRole(ctx context.Context, actorID, uid string, role domain.Role) error {
	if !role.Valid() {
		return ErrBadRequest("Rol inválido.")
	}
	if actorID == uid && role != domain.RoleAdmin {
		return ErrForbidden("No podés quitarte el rol de administrador.")
	}

	err := s.userRepo.UpdateRole(ctx, uid, role)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound("El usuario no existe.")
	}
	if err != nil {
		return failure("UserService.UpdateRole", err, "No se pudo cambiar el rol.", "uid", uid)
	}

	logger.Info("Role updated", "uid", uid, "role", role, "actor", actorID)
	if s.sessions != nil {
		s.sessions.TokenRefreshed(uid)
	}
	return nil
}

func (s *userService) UpdateProfile(ctx context.Context, uid, name, nationalID, address string) (*domain.User, error) {
	user, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := checkVar(name, "required,max=200", "El nombre es obligatorio."); err != nil {
		return nil, err
	}
	user.Name = name
	user.NationalID = strings.TrimSpace(nationalID)
	user.Address = strings.TrimSpace(address)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, failure("UserService.UpdateProfile", err, "No se pudo guardar el perfil.", "uid", uid)
	}
	return user, nil
}

// DeleteUser removes the profile first and then the account
func (s *userService) DeleteUser(ctx context.Context, actorID, uid string) error {
	const method = "UserService.DeleteUser"
	if actorID == uid {
		return ErrForbidden("No podés eliminar tu propia cuenta.")
	}

	err := s.userRepo.Delete(ctx, uid)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return failure(method, err, "No se pudo eliminar el perfil.", "uid", uid)
	}
	profileMissing := errors.Is(err, repository.ErrNotFound)

	err = s.idp.DeleteAccount(ctx, uid)
	if errors.Is(err, identity.ErrAccountNotFound) {
		if profileMissing {
			return ErrNotFound("El usuario no existe.")
		}
		err = nil
	}
	if err != nil {
		return failure(method, err, "No se pudo eliminar la cuenta.", "uid", uid)
	}

	logger.Info("User deleted", "uid", uid, "actor", actorID)
	if s.sessions != nil {
		s.sessions.TokenRefreshed(uid)
	}
	return nil
}
