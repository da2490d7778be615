// ABOUTME: Static metadata describing project types and statuses
// ABOUTME: Served to clients so pickers don't hard-code the enum values

package store

// TypeInfo describes a project type for client-side pickers.
type TypeInfo struct {
	Value           string   `json:"value"`
	Label           string   `json:"label"`
	Description     string   `json:"description"`
	SuggestedAgents []string `json:"suggested_agents"`
}

// StatusInfo describes a project status for client-side pickers.
type StatusInfo struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ProjectTypes returns metadata for every known project type, in
// display order.
func ProjectTypes() []TypeInfo {
	return []TypeInfo{
		{
			Value:           ProjectTypeWebApp,
			Label:           "Web Application",
			Description:     "Frontend and backend web application development",
			SuggestedAgents: []string{"frontend developer", "backend developer", "UI reviewer"},
		},
		{
			Value:           ProjectTypeAPI,
			Label:           "API Service",
			Description:     "REST or RPC service design and implementation",
			SuggestedAgents: []string{"API designer", "backend developer"},
		},
		{
			Value:           ProjectTypeDataAnalysis,
			Label:           "Data Analysis",
			Description:     "Exploratory analysis, reporting, and data pipelines",
			SuggestedAgents: []string{"data analyst", "SQL assistant"},
		},
		{
			Value:           ProjectTypeDocumentation,
			Label:           "Documentation",
			Description:     "Technical writing, guides, and reference material",
			SuggestedAgents: []string{"technical writer", "editor"},
		},
		{
			Value:           ProjectTypeDatabase,
			Label:           "Database",
			Description:     "Schema design, migrations, and query tuning",
			SuggestedAgents: []string{"database architect", "SQL assistant"},
		},
		{
			Value:           ProjectTypeGeneral,
			Label:           "General",
			Description:     "Anything that doesn't fit the other categories",
			SuggestedAgents: []string{"general assistant"},
		},
	}
}

// ProjectStatuses returns metadata for every known project status, in
// lifecycle order.
func ProjectStatuses() []StatusInfo {
	return []StatusInfo{
		{Value: ProjectStatusActive, Label: "Active", Description: "Work is in progress"},
		{Value: ProjectStatusPaused, Label: "Paused", Description: "On hold, expected to resume"},
		{Value: ProjectStatusCompleted, Label: "Completed", Description: "Finished and delivered"},
		{Value: ProjectStatusArchived, Label: "Archived", Description: "Kept for reference only"},
	}
}
