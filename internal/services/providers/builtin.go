package providers

import (
	"context"

	"github.com/asakaida/kanmon/internal/entities"
)

// Built-in condition IDs
const (
	ConditionIsCreator            = "admin::is-creator"
	ConditionHasSameRoleAsCreator = "admin::has-same-role-as-creator"
	defaultConditionCategory      = "default"
	contentManagerPlugin          = "content-manager"
	settingsCategoryUsersAndRoles = "users and roles"
	settingsCategoryMediaLibrary  = "media library"
	settingsCategoryMarketplace   = "plugins and marketplace"
)

// DefaultConditions returns the conditions shipped with the admin
func DefaultConditions() []entities.ConditionDefinition {
	return []entities.ConditionDefinition{
		{
			Name:        "is-creator",
			DisplayName: "Is creator",
			Plugin:      "admin",
			Category:    defaultConditionCategory,
			Handler:     isCreator,
		},
		{
			Name:        "has-same-role-as-creator",
			DisplayName: "Has same role as creator",
			Plugin:      "admin",
			Category:    defaultConditionCategory,
			Handler:     hasSameRoleAsCreator,
		},
	}
}

func isCreator(_ context.Context, cc *entities.ConditionContext) (any, error) {
	if cc.User == nil {
		return false, nil
	}
	return entities.Query{
		entities.CreatedByAttribute + ".id": cc.User.ID,
	}, nil
}

func hasSameRoleAsCreator(_ context.Context, cc *entities.ConditionContext) (any, error) {
	if cc.User == nil {
		return false, nil
	}
	roleIDs := make([]any, 0, len(cc.User.Roles))
	for _, id := range cc.User.RoleIDs() {
		roleIDs = append(roleIDs, id)
	}
	return entities.Query{
		entities.CreatedByAttribute + ".roles": map[string]any{
			"$elemMatch": map[string]any{
				"id": map[string]any{"$in": roleIDs},
			},
		},
	}, nil
}

// DefaultActions returns the content-manager and settings actions
func DefaultActions() []entities.ActionDefinition {
	contentTypeAction := func(uid, displayName string, properties ...string) entities.ActionDefinition {
		return entities.ActionDefinition{
			UID:         uid,
			DisplayName: displayName,
			PluginName:  contentManagerPlugin,
			Section:     entities.SectionContentTypes,
			Options:     entities.ActionOptions{ApplyToProperties: properties},
		}
	}
	settingsAction := func(plugin, uid, displayName, category, subCategory string) entities.ActionDefinition {
		return entities.ActionDefinition{
			UID:         uid,
			DisplayName: displayName,
			PluginName:  plugin,
			Section:     entities.SectionSettings,
			Category:    category,
			SubCategory: subCategory,
		}
	}

	return []entities.ActionDefinition{
		contentTypeAction("explorer.create", "Create", entities.PropertyFields, entities.PropertyLocales),
		contentTypeAction("explorer.read", "Read", entities.PropertyFields, entities.PropertyLocales),
		contentTypeAction("explorer.update", "Update", entities.PropertyFields, entities.PropertyLocales),
		contentTypeAction("explorer.delete", "Delete", entities.PropertyLocales),
		contentTypeAction("explorer.publish", "Publish", entities.PropertyLocales),

		settingsAction("admin", "users.create", "Create", settingsCategoryUsersAndRoles, "users"),
		settingsAction("admin", "users.read", "Read", settingsCategoryUsersAndRoles, "users"),
		settingsAction("admin", "users.update", "Update", settingsCategoryUsersAndRoles, "users"),
		settingsAction("admin", "users.delete", "Delete", settingsCategoryUsersAndRoles, "users"),
		settingsAction("admin", "roles.create", "Create", settingsCategoryUsersAndRoles, "roles"),
		settingsAction("admin", "roles.read", "Read", settingsCategoryUsersAndRoles, "roles"),
		settingsAction("admin", "roles.update", "Update", settingsCategoryUsersAndRoles, "roles"),
		settingsAction("admin", "roles.delete", "Delete", settingsCategoryUsersAndRoles, "roles"),
		settingsAction("admin", "marketplace.read", "Access the marketplace", settingsCategoryMarketplace, "marketplace"),
		settingsAction("upload", "settings.read", "Access the media library settings", settingsCategoryMediaLibrary, "general"),
	}
}
