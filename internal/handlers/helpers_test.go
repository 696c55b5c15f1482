package handlers

import (
	"context"

	"github.com/asakaida/kanmon/internal/entities"
	"github.com/asakaida/kanmon/internal/repositories"
	"github.com/asakaida/kanmon/internal/services/ability"
	"github.com/asakaida/kanmon/internal/services/permission"
)

const (
	actionRead   = "plugin::content-manager.explorer.read"
	actionUpdate = "plugin::content-manager.explorer.update"
	articleUID   = "api::article.article"
)

func articleModel() *entities.ContentType {
	return &entities.ContentType{
		UID:  articleUID,
		Kind: entities.KindCollectionType,
		Attributes: map[string]*entities.Attribute{
			"title":  {Type: "string"},
			"body":   {Type: "richtext"},
			"secret": {Type: "string"},
		},
	}
}

// editorAbility lets the editor read title and body of every article,
// update the title of their own articles, and access the marketplace.
func editorAbility() *ability.Ability {
	b := ability.NewBuilder()
	b.Can(actionRead, articleUID, []string{"title", "body"}, nil)
	b.Can(actionUpdate, articleUID, []string{"title"}, map[string]any{"createdBy.id": 7})
	b.Can("admin::marketplace.read", "", nil, nil)
	return b.Build()
}

// Mock PermissionService
type mockPermissionService struct {
	ability          *ability.Ability
	abilityErr       error
	users            []*entities.User
	writeFunc        func(ctx context.Context, roleID int64, permissions []entities.Permission) ([]entities.Permission, error)
	readFunc         func(ctx context.Context, roleID int64) ([]entities.Permission, error)
	cleanPermissions int
}

func (m *mockPermissionService) AbilityFor(_ context.Context, user *entities.User) (*ability.Ability, error) {
	if user == nil {
		return nil, permission.ErrUserRequired
	}
	m.users = append(m.users, user)
	if m.abilityErr != nil {
		return nil, m.abilityErr
	}
	return m.ability, nil
}

func (m *mockPermissionService) ManagerFor(ctx context.Context, user *entities.User, action, model string) (*permission.Manager, error) {
	if model != articleUID {
		return nil, permission.ErrUnknownModel
	}
	ab, err := m.AbilityFor(ctx, user)
	if err != nil {
		return nil, err
	}
	return permission.NewManager(ab, action, articleModel(), nil), nil
}

func (m *mockPermissionService) WritePermissions(ctx context.Context, roleID int64, permissions []entities.Permission) ([]entities.Permission, error) {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, roleID, permissions)
	}
	return permissions, nil
}

func (m *mockPermissionService) ReadPermissions(ctx context.Context, roleID int64) ([]entities.Permission, error) {
	if m.readFunc != nil {
		return m.readFunc(ctx, roleID)
	}
	return []entities.Permission{}, nil
}

func (m *mockPermissionService) CleanPermissions(context.Context) (int, error) {
	return m.cleanPermissions, nil
}

// Mock RoleResolver
type mockRoles map[string]*entities.Role

func (m mockRoles) GetByCode(_ context.Context, code string) (*entities.Role, error) {
	role, ok := m[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return role, nil
}

func newTestHandler() (*PermissionHandler, *mockPermissionService) {
	service := &mockPermissionService{ability: editorAbility()}
	roles := mockRoles{"strapi-editor": {ID: 2, Code: "strapi-editor"}}
	return NewPermissionHandler(service, roles, nil), service
}

var editor = &entities.User{ID: 7, Roles: []entities.Role{{ID: 2, Code: "strapi-editor"}}}
