package internal

const (
	PermissionAdmin              = "admin"
	PermissionManagePayRates     = "manage_pay_rates"
	PermissionViewPayRates       = "view_pay_rates"
	PermissionManagePayroll      = "manage_payroll"
	PermissionApprovePayroll     = "approve_payroll"
	PermissionPayPayroll         = "pay_payroll"
	PermissionViewPayrollReports = "view_payroll_reports"
)

// AllPermissions lists every named permission, used by the seeder.
var AllPermissions = []string{
	PermissionAdmin,
	PermissionManagePayRates,
	PermissionViewPayRates,
	PermissionManagePayroll,
	PermissionApprovePayroll,
	PermissionPayPayroll,
	PermissionViewPayrollReports,
}
