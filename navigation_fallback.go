package aegisx

// FallbackNavigation returns the compiled-in menu tree served when the
// navigation endpoint is unreachable. It mirrors the production seed:
// a functional admin shell, not a placeholder.
func FallbackNavigation() []NavigationItem {
	return []NavigationItem{
		{
			ID:    "dashboard",
			Title: "Dashboard",
			Type:  NavigationItemBasic,
			Icon:  "dashboard",
			Link:  "/dashboard",
		},
		{
			ID:    "user-management",
			Title: "User Management",
			Type:  NavigationItemCollapsible,
			Icon:  "people",
			Children: []NavigationItem{
				{
					ID:    "users-list",
					Title: "Users",
					Type:  NavigationItemBasic,
					Icon:  "group",
					Link:  "/users",
				},
				{
					ID:    "user-profile",
					Title: "My Profile",
					Type:  NavigationItemBasic,
					Icon:  "account_circle",
					Link:  "/profile",
				},
			},
		},
		{
			ID:    "rbac-management",
			Title: "RBAC Management",
			Type:  NavigationItemCollapsible,
			Icon:  "security",
			Children: []NavigationItem{
				{
					ID:    "rbac-dashboard",
					Title: "Overview",
					Type:  NavigationItemBasic,
					Icon:  "bar_chart",
					Link:  "/rbac/dashboard",
				},
				{
					ID:    "rbac-roles",
					Title: "Roles",
					Type:  NavigationItemBasic,
					Icon:  "badge",
					Link:  "/rbac/roles",
				},
				{
					ID:    "rbac-permissions",
					Title: "Permissions",
					Type:  NavigationItemBasic,
					Icon:  "vpn_key",
					Link:  "/rbac/permissions",
				},
				{
					ID:    "rbac-user-roles",
					Title: "User Assignments",
					Type:  NavigationItemBasic,
					Icon:  "person_add",
					Link:  "/rbac/user-roles",
				},
				{
					ID:    "rbac-navigation",
					Title: "Navigation",
					Type:  NavigationItemBasic,
					Icon:  "menu",
					Link:  "/rbac/navigation",
				},
			},
		},
		{
			ID:    "system-config",
			Title: "System",
			Type:  NavigationItemCollapsible,
			Icon:  "settings",
			Children: []NavigationItem{
				{
					ID:    "settings",
					Title: "Settings",
					Type:  NavigationItemBasic,
					Icon:  "tune",
					Link:  "/settings",
				},
				{
					ID:    "pdf-templates",
					Title: "PDF Templates",
					Type:  NavigationItemBasic,
					Icon:  "description",
					Link:  "/pdf-templates",
				},
			},
		},
		{
			ID:    "file-management",
			Title: "Files",
			Type:  NavigationItemBasic,
			Icon:  "folder",
			Link:  "/file-upload",
		},
		{
			ID:   "divider-main",
			Type: NavigationItemDivider,
		},
		{
			ID:    "components",
			Title: "Components",
			Type:  NavigationItemCollapsible,
			Icon:  "widgets",
			Children: []NavigationItem{
				{
					ID:    "components-buttons",
					Title: "Buttons",
					Type:  NavigationItemBasic,
					Link:  "/components/buttons",
				},
				{
					ID:    "components-cards",
					Title: "Cards",
					Type:  NavigationItemBasic,
					Link:  "/components/cards",
				},
				{
					ID:    "components-forms",
					Title: "Forms",
					Type:  NavigationItemBasic,
					Link:  "/components/forms",
				},
				{
					ID:    "components-tables",
					Title: "Tables",
					Type:  NavigationItemBasic,
					Link:  "/components/tables",
				},
			},
		},
	}
}
