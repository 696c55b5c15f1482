package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/services/ability"
	"github.com/asakaida/kanmon/internal/services/sanitize"
	"github.com/asakaida/kanmon/pkg/cache"
)

var (
	// ErrUserRequired is returned when an ability is requested without user
	ErrUserRequired = errors.New("user is required")
	// ErrUnknownModel is returned when a manager is requested for an unregistered content type
	ErrUnknownModel = errors.New("unknown model")
)

// ActionCatalog is the part of the action provider used by the service
type ActionCatalog interface {
	Has(actionID string) bool
	Validate(permission entities.Permission) error
}

// SchemaRegistry resolves content types and components
type SchemaRegistry interface {
	Get(uid string) (*entities.ContentType, bool)
}

// TokenSource returns a token that changes whenever stored permissions change
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ServiceConfig holds the dependencies of a Service.
// Cache and Tokens are optional; without cache every call regenerates the ability.
type ServiceConfig struct {
	Engine      *Engine
	Permissions repositories.PermissionRepository
	Actions     ActionCatalog
	Schemas     SchemaRegistry
	Cache       cache.Cache
	CacheTTL    time.Duration
	Tokens      TokenSource
	FieldPolicy sanitize.FieldPolicy
	Logger      *logrus.Logger
}

// Service loads role permissions, generates abilities and hands out managers
type Service struct {
	engine      *Engine
	permissions repositories.PermissionRepository
	actions     ActionCatalog
	schemas     SchemaRegistry
	cache       cache.Cache
	cacheTTL    time.Duration
	tokens      TokenSource
	fieldPolicy sanitize.FieldPolicy
	logger      *logrus.Logger
}

// NewService creates a permission service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Service{
		engine:      cfg.Engine,
		permissions: cfg.Permissions,
		actions:     cfg.Actions,
		schemas:     cfg.Schemas,
		cache:       cfg.Cache,
		cacheTTL:    cfg.CacheTTL,
		tokens:      cfg.Tokens,
		fieldPolicy: cfg.FieldPolicy,
		logger:      logger,
	}
}

// AbilityFor generates the ability of a user from the permissions of their roles.
// Abilities are cached per user, role set and permission snapshot.
func (s *Service) AbilityFor(ctx context.Context, user *entities.User) (*ability.Ability, error) {
	if user == nil {
		return nil, ErrUserRequired
	}

	key, cacheable := s.cacheKey(ctx, user)
	if cacheable {
		if ab, ok := s.cachedAbility(ctx, key); ok {
			return ab, nil
		}
	}

	permissions, err := s.permissions.FindByRoleIDs(ctx, user.RoleIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	ab, err := s.engine.GenerateAbility(ctx, permissions, Options{User: user})
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.storeAbility(ctx, key, ab)
	}
	return ab, nil
}

// ManagerFor returns a permissions manager for the user, action and model
func (s *Service) ManagerFor(ctx context.Context, user *entities.User, action, model string) (*Manager, error) {
	ct, ok := s.schemas.Get(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	ab, err := s.AbilityFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return NewManager(ab, action, ct, s.schemas, sanitize.WithFieldPolicy(s.fieldPolicy)), nil
}

// WritePermissions validates permissions and replaces the permission set of a role
func (s *Service) WritePermissions(ctx context.Context, roleID int64, permissions []entities.Permission) ([]entities.Permission, error) {
	normalized := make([]entities.Permission, 0, len(permissions))
	for i, p := range permissions {
		p = entities.CreatePermission(p)
		if err := s.actions.Validate(p); err != nil {
			return nil, fmt.Errorf("permission %d: %w", i, err)
		}
		normalized = append(normalized, p)
	}

	stored, err := s.permissions.ReplaceForRole(ctx, roleID, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to write permissions: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"role": roleID, "permissions": len(stored)}).Info("permissions written")
	return stored, nil
}

// ReadPermissions returns the permissions of a role
func (s *Service) ReadPermissions(ctx context.Context, roleID int64) ([]entities.Permission, error) {
	permissions, err := s.permissions.FindByRoleID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions: %w", err)
	}
	if permissions == nil {
		permissions = []entities.Permission{}
	}
	return permissions, nil
}

// CleanPermissions deletes stored permissions whose action is no longer registered.
// It returns the number of deleted permissions.
func (s *Service) CleanPermissions(ctx context.Context) (int, error) {
	permissions, err := s.permissions.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list permissions: %w", err)
	}

	var stale []int64
	for _, p := range permissions {
		if !s.actions.Has(p.Action) {
			stale = append(stale, p.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.permissions.DeleteByIDs(ctx, stale); err != nil {
		return 0, fmt.Errorf("failed to delete stale permissions: %w", err)
	}
	s.logger.WithField("count", len(stale)).Info("stale permissions removed")
	return len(stale), nil
}

// cacheKey builds "ability:<user>:<sorted role ids>:<token>".
// The second value is false when abilities cannot be cached.
func (s *Service) cacheKey(ctx context.Context, user *entities.User) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	var token string
	if s.tokens != nil {
		t, err := s.tokens.Token(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("permission snapshot unavailable, ability cache bypassed")
			return "", false
		}
		token = t
	}

	roleIDs := user.RoleIDs()
	sort.Slice(roleIDs, func(i, j int) bool { return roleIDs[i] < roleIDs[j] })
	parts := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return fmt.Sprintf("ability:%d:%s:%s", user.ID, strings.Join(parts, ","), token), true
}

func (s *Service) cachedAbility(ctx context.Context, key string) (*ability.Ability, bool) {
	data, err := cache.GetBytes(ctx, s.cache, key)
	if err != nil {
		return nil, false
	}

	var rules []ability.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("discarding malformed cached ability")
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	return ability.New(rules), true
}

func (s *Service) storeAbility(ctx context.Context, key string, ab *ability.Ability) {
	data, err := json.Marshal(ab.Rules())
	if err != nil {
		s.logger.WithError(err).Warn("failed to encode ability")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("failed to cache ability")
	}
}
