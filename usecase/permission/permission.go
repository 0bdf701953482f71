// Package permission maps a resolved role context to one of five fixed capability sets.
package permission

import "github.com/lexdesk/officeauth/domain"

// Variant names one of the fixed capability sets.
type Variant string

const (
	VariantEmpty       Variant = "empty"
	VariantUser        Variant = "user"
	VariantOfficeAdmin Variant = "officeAdmin"
	VariantAdmin       Variant = "admin"
	VariantSuperAdmin  Variant = "superAdmin"
)

var (
	empty = domain.FeaturePermissions{}

	superAdmin = domain.FeaturePermissions{
		CanViewClients: true, CanCreateClients: true, CanEditClients: true, CanDeleteClients: true,
		CanViewProcesses: true, CanCreateProcesses: true, CanEditProcesses: true, CanDeleteProcesses: true,
		CanViewAppointments: true, CanManageAppointments: true, CanDeleteAppointments: true,
		CanViewCRM: true, CanManageCRM: true, CanDeleteLeads: true,
		CanViewTimesheets: true, CanManageTimesheets: true,
		CanViewInvoices: true, CanManageInvoices: true, CanDeleteInvoices: true,
		CanViewDashboard: true, CanViewReports: true,
		CanManageOffice: true, CanManageOfficeUsers: true, CanViewOfficeSettings: true,
		CanViewAdmin:            true,
		CanManageGlobalSettings: true, CanManageAllOffices: true, CanManageSubscriptions: true,
		CanViewSystemMetrics: true, CanManageSystemUsers: true,
	}

	admin = withoutSystemAdministration(superAdmin)

	officeAdmin = func() domain.FeaturePermissions {
		p := admin
		p.CanDeleteProcesses = false
		p.CanViewAdmin = false
		return p
	}()

	user = func() domain.FeaturePermissions {
		p := officeAdmin
		p.CanDeleteClients = false
		p.CanDeleteProcesses = false
		p.CanDeleteAppointments = false
		p.CanDeleteLeads = false
		p.CanDeleteInvoices = false
		p.CanManageOffice = false
		p.CanManageOfficeUsers = false
		p.CanViewOfficeSettings = false
		return p
	}()

	variants = map[Variant]domain.FeaturePermissions{
		VariantEmpty:       empty,
		VariantUser:        user,
		VariantOfficeAdmin: officeAdmin,
		VariantAdmin:       admin,
		VariantSuperAdmin:  superAdmin,
	}
)

func withoutSystemAdministration(p domain.FeaturePermissions) domain.FeaturePermissions {
	p.CanManageGlobalSettings = false
	p.CanManageAllOffices = false
	p.CanManageSubscriptions = false
	p.CanViewSystemMetrics = false
	p.CanManageSystemUsers = false
	return p
}

// Input is everything the engine looks at.
type Input struct {
	// Loading is true until the session and profile have settled.
	Loading bool
	Profile *domain.Profile
	// OfficeRole is the role of the active membership, if any.
	OfficeRole *domain.Role
	// AllowListed reports whether the session e-mail belongs to a system administrator.
	AllowListed bool
}

// Select picks the capability variant for in.
func Select(in Input) Variant {
	if in.Loading {
		if in.Profile == nil && in.AllowListed {
			return VariantSuperAdmin
		}
		return VariantEmpty
	}
	if in.AllowListed {
		return VariantSuperAdmin
	}
	if in.Profile == nil {
		return VariantEmpty
	}
	switch in.Profile.Role {
	case domain.RoleSuperAdmin:
		return VariantSuperAdmin
	case domain.RoleAdmin:
		return VariantAdmin
	}
	if in.OfficeRole != nil && in.OfficeRole.IsOfficeAdmin() {
		return VariantOfficeAdmin
	}
	return VariantUser
}

// Resolve returns the capability set for in. The result is always a copy of a fixed variant.
func Resolve(in Input) domain.FeaturePermissions {
	return variants[Select(in)]
}

// For returns the capability set of a named variant.
func For(v Variant) (domain.FeaturePermissions, bool) {
	p, ok := variants[v]
	return p, ok
}

// Variants lists every capability set the engine can produce.
func Variants() map[Variant]domain.FeaturePermissions {
	out := make(map[Variant]domain.FeaturePermissions, len(variants))
	for k, v := range variants {
		out[k] = v
	}
	return out
}
