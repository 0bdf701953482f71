package domain

// FeaturePermissions is the flat capability map consumed by UI gating.
type FeaturePermissions struct {
	CanViewClients   bool `json:"canViewClients"`
	CanCreateClients bool `json:"canCreateClients"`
	CanEditClients   bool `json:"canEditClients"`
	CanDeleteClients bool `json:"canDeleteClients"`

	CanViewProcesses   bool `json:"canViewProcesses"`
	CanCreateProcesses bool `json:"canCreateProcesses"`
	CanEditProcesses   bool `json:"canEditProcesses"`
	CanDeleteProcesses bool `json:"canDeleteProcesses"`

	CanViewAppointments   bool `json:"canViewAppointments"`
	CanManageAppointments bool `json:"canManageAppointments"`
	CanDeleteAppointments bool `json:"canDeleteAppointments"`

	CanViewCRM     bool `json:"canViewCRM"`
	CanManageCRM   bool `json:"canManageCRM"`
	CanDeleteLeads bool `json:"canDeleteLeads"`

	CanViewTimesheets   bool `json:"canViewTimesheets"`
	CanManageTimesheets bool `json:"canManageTimesheets"`

	CanViewInvoices   bool `json:"canViewInvoices"`
	CanManageInvoices bool `json:"canManageInvoices"`
	CanDeleteInvoices bool `json:"canDeleteInvoices"`

	CanViewDashboard bool `json:"canViewDashboard"`
	CanViewReports   bool `json:"canViewReports"`

	CanManageOffice       bool `json:"canManageOffice"`
	CanManageOfficeUsers  bool `json:"canManageOfficeUsers"`
	CanViewOfficeSettings bool `json:"canViewOfficeSettings"`

	CanViewAdmin bool `json:"canViewAdmin"`

	CanManageGlobalSettings bool `json:"canManageGlobalSettings"`
	CanManageAllOffices     bool `json:"canManageAllOffices"`
	CanManageSubscriptions  bool `json:"canManageSubscriptions"`
	CanViewSystemMetrics    bool `json:"canViewSystemMetrics"`
	CanManageSystemUsers    bool `json:"canManageSystemUsers"`
}
