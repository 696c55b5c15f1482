package handlers

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/services/ability"
	"github.com/asakaida/kanmon/internal/services/permission"
	"github.com/asakaida/kanmon/internal/services/sanitize"
)

// PermissionService is the part of permission.Service used by the handler
type PermissionService interface {
	AbilityFor(ctx context.Context, user *entities.User) (*ability.Ability, error)
	ManagerFor(ctx context.Context, user *entities.User, action, model string) (*permission.Manager, error)
	WritePermissions(ctx context.Context, roleID int64, permissions []entities.Permission) ([]entities.Permission, error)
	ReadPermissions(ctx context.Context, roleID int64) ([]entities.Permission, error)
	CleanPermissions(ctx context.Context) (int, error)
}

// RoleResolver resolves role codes to roles
type RoleResolver interface {
	GetByCode(ctx context.Context, code string) (*entities.Role, error)
}

// PermissionHandler handles kanmon.v1.PermissionService requests
type PermissionHandler struct {
	service PermissionService
	roles   RoleResolver
	logger  *logrus.Logger
}

// NewPermissionHandler creates a new PermissionHandler.
// roles may be nil, in which case roles must be referenced by ID.
func NewPermissionHandler(service PermissionService, roles RoleResolver, logger *logrus.Logger) *PermissionHandler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &PermissionHandler{service: service, roles: roles, logger: logger}
}

// Check handles the Check RPC
func (h *PermissionHandler) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	if req.Action == "" {
		return nil, status.Error(codes.InvalidArgument, "action is required")
	}
	user, err := h.resolveUser(ctx, req.User)
	if err != nil {
		return nil, h.toStatus(err, "check")
	}

	if req.Subject == "" {
		ab, err := h.service.AbilityFor(ctx, user)
		if err != nil {
			return nil, h.toStatus(err, "check")
		}
		return &CheckResponse{Allowed: ab.Can(req.Action, ability.TypeOf(ability.SubjectAll), req.Field)}, nil
	}

	entity, err := optionalObject(req.Entity, "entity")
	if err != nil {
		return nil, err
	}
	m, err := h.service.ManagerFor(ctx, user, req.Action, req.Subject)
	if err != nil {
		return nil, h.toStatus(err, "check")
	}
	return &CheckResponse{Allowed: m.Can(entity, req.Field)}, nil
}

// PermittedFields handles the PermittedFields RPC
func (h *PermissionHandler) PermittedFields(ctx context.Context, req *PermittedFieldsRequest) (*PermittedFieldsResponse, error) {
	entity, err := optionalObject(req.Entity, "entity")
	if err != nil {
		return nil, err
	}
	m, err := h.manager(ctx, req.User, req.Action, req.Subject, "permitted fields")
	if err != nil {
		return nil, err
	}
	return &PermittedFieldsResponse{Fields: m.PermittedFields(entity)}, nil
}

// Query handles the Query RPC
func (h *PermissionHandler) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	filters, err := optionalObject(req.Filters, "filters")
	if err != nil {
		return nil, err
	}
	m, err := h.manager(ctx, req.User, req.Action, req.Subject, "query")
	if err != nil {
		return nil, err
	}

	query, ok := m.AddPermissionsQueryTo(filters)
	if !ok {
		return &QueryResponse{Allowed: false}, nil
	}
	payload, err := NewPayload(query)
	if err != nil {
		return nil, h.toStatus(err, "query")
	}
	return &QueryResponse{Allowed: true, Query: payload}, nil
}

// SanitizeOutput handles the SanitizeOutput RPC
func (h *PermissionHandler) SanitizeOutput(ctx context.Context, req *SanitizeRequest) (*SanitizeResponse, error) {
	return h.sanitize(ctx, req, "sanitize output", (*permission.Manager).SanitizeOutput)
}

// SanitizeInput handles the SanitizeInput RPC
func (h *PermissionHandler) SanitizeInput(ctx context.Context, req *SanitizeRequest) (*SanitizeResponse, error) {
	return h.sanitize(ctx, req, "sanitize input", (*permission.Manager).SanitizeInput)
}

type sanitizeFunc func(m *permission.Manager, ctx context.Context, data any, opts sanitize.Options) (any, error)

func (h *PermissionHandler) sanitize(ctx context.Context, req *SanitizeRequest, op string, fn sanitizeFunc) (*SanitizeResponse, error) {
	if req.Data == nil {
		return nil, status.Error(codes.InvalidArgument, "data is required")
	}
	m, err := h.manager(ctx, req.User, req.Action, req.Subject, op)
	if err != nil {
		return nil, err
	}

	out, err := fn(m, ctx, req.Data.Interface(), sanitize.Options{})
	if err != nil {
		return nil, h.toStatus(err, op)
	}
	payload, err := NewPayload(out)
	if err != nil {
		return nil, h.toStatus(err, op)
	}
	return &SanitizeResponse{Data: payload}, nil
}

// WritePermissions handles the WritePermissions RPC
func (h *PermissionHandler) WritePermissions(ctx context.Context, req *WritePermissionsRequest) (*PermissionsResponse, error) {
	roleID, err := h.resolveRole(ctx, req.Role)
	if err != nil {
		return nil, h.toStatus(err, "write permissions")
	}
	stored, err := h.service.WritePermissions(ctx, roleID, req.Permissions)
	if err != nil {
		return nil, h.toStatus(err, "write permissions")
	}
	return &PermissionsResponse{Permissions: stored}, nil
}

// ReadPermissions handles the ReadPermissions RPC
func (h *PermissionHandler) ReadPermissions(ctx context.Context, req *ReadPermissionsRequest) (*PermissionsResponse, error) {
	roleID, err := h.resolveRole(ctx, req.Role)
	if err != nil {
		return nil, h.toStatus(err, "read permissions")
	}
	permissions, err := h.service.ReadPermissions(ctx, roleID)
	if err != nil {
		return nil, h.toStatus(err, "read permissions")
	}
	return &PermissionsResponse{Permissions: permissions}, nil
}

// CleanPermissions handles the CleanPermissions RPC
func (h *PermissionHandler) CleanPermissions(ctx context.Context, _ *CleanPermissionsRequest) (*CleanPermissionsResponse, error) {
	deleted, err := h.service.CleanPermissions(ctx)
	if err != nil {
		return nil, h.toStatus(err, "clean permissions")
	}
	return &CleanPermissionsResponse{Deleted: deleted}, nil
}

func (h *PermissionHandler) manager(ctx context.Context, u *entities.User, action, subject, op string) (*permission.Manager, error) {
	if action == "" {
		return nil, status.Error(codes.InvalidArgument, "action is required")
	}
	if subject == "" {
		return nil, status.Error(codes.InvalidArgument, "subject is required")
	}
	user, err := h.resolveUser(ctx, u)
	if err != nil {
		return nil, h.toStatus(err, op)
	}
	m, err := h.service.ManagerFor(ctx, user, action, subject)
	if err != nil {
		return nil, h.toStatus(err, op)
	}
	return m, nil
}
