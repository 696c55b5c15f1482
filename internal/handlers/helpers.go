package handlers

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/services/permission"
	"github.com/asakaida/kanmon/internal/services/providers"
)

var errRoleRequired = errors.New("role is required")

// === Shared Helper Functions ===

// toStatus maps service errors to gRPC status errors
func (h *PermissionHandler) toStatus(err error, op string) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, providers.ErrValidation),
		errors.Is(err, providers.ErrActionNotFound),
		errors.Is(err, permission.ErrUserRequired),
		errors.Is(err, errRoleRequired):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, permission.ErrUnknownModel),
		errors.Is(err, repositories.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	}

	h.logger.WithError(err).WithField("op", op).Error("request failed")
	return status.Errorf(codes.Internal, "%s failed: %v", op, err)
}

// resolveUser fills the IDs of roles referenced only by code
func (h *PermissionHandler) resolveUser(ctx context.Context, u *entities.User) (*entities.User, error) {
	if u == nil {
		return nil, permission.ErrUserRequired
	}

	user := *u
	user.Roles = make([]entities.Role, len(u.Roles))
	for i, role := range u.Roles {
		if role.ID == 0 && role.Code != "" {
			resolved, err := h.lookupRole(ctx, role.Code)
			if err != nil {
				return nil, err
			}
			role = *resolved
		}
		user.Roles[i] = role
	}
	return &user, nil
}

func (h *PermissionHandler) resolveRole(ctx context.Context, ref RoleRef) (int64, error) {
	if ref.ID != 0 {
		return ref.ID, nil
	}
	if ref.Code == "" {
		return 0, errRoleRequired
	}
	role, err := h.lookupRole(ctx, ref.Code)
	if err != nil {
		return 0, err
	}
	return role.ID, nil
}

func (h *PermissionHandler) lookupRole(ctx context.Context, code string) (*entities.Role, error) {
	if h.roles == nil {
		return nil, fmt.Errorf("%w: role %q must be referenced by id", errRoleRequired, code)
	}
	role, err := h.roles.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("role %q: %w", code, err)
	}
	return role, nil
}

// optionalObject returns the payload as an object, nil when absent
func optionalObject(p *Payload, name string) (map[string]any, error) {
	if p == nil {
		return nil, nil
	}
	m, ok := p.Object()
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an object", name)
	}
	return m, nil
}
