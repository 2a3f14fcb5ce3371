package authority

// PermissionLevel orders access levels from none to system
type PermissionLevel int

const (
	LevelNone PermissionLevel = iota
	LevelRead
	LevelWrite
	LevelAdmin
	LevelSystem
)

var levelNames = map[PermissionLevel]string{
	LevelNone:   "none",
	LevelRead:   "read",
	LevelWrite:  "write",
	LevelAdmin:  "admin",
	LevelSystem: "system",
}

func (l PermissionLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel maps a level name to its PermissionLevel, defaulting to none
func ParseLevel(name string) PermissionLevel {
	for level, levelName := range levelNames {
		if levelName == name {
			return level
		}
	}
	return LevelNone
}

// Satisfies reports whether a granted level covers a required level
func (l PermissionLevel) Satisfies(required PermissionLevel) bool {
	return l >= required
}

// ResourceType identifies a protected resource class
type ResourceType string

const (
	ResourceDatabase      ResourceType = "database"
	ResourceTaxAPI        ResourceType = "sii_api"
	ResourceDocument      ResourceType = "document"
	ResourceUserData      ResourceType = "user_data"
	ResourceCompanyData   ResourceType = "company_data"
	ResourceTaxData       ResourceType = "tax_data"
	ResourceFinancialData ResourceType = "financial_data"
	ResourceSystemConfig  ResourceType = "system_config"
	ResourceExternalAPI   ResourceType = "external_api"
	ResourceFileSystem    ResourceType = "file_system"
)
