package types

// =============================================================================
// Row schema (version 2)
// =============================================================================
// Historical store layouts shifted the code column around (6th, 7th and 8th
// column across revisions). The layout below is pinned by SchemaVersion and is
// never inferred from table contents.
// =============================================================================

// SchemaVersion identifies the employee/audit row layout this service writes.
const SchemaVersion = 2

// Employee table columns. The code sits in the 8th column (index 7) and a
// trailing issue timestamp closes the row.
const (
	ColName = iota
	ColDepartment
	ColBranch
	ColPosition
	ColStartDate
	ColCategory
	ColRequestedBy
	ColCode
	ColIssuedAt

	// EmployeeColumns is the employee row width.
	EmployeeColumns
)

// Transfer audit table columns. Audit rows are append-only and never edited.
const (
	AuditColTimestamp = iota
	AuditColOldCode
	AuditColNewCode
	AuditColName
	AuditColBranch
	AuditColOldPosition
	AuditColNewPosition
	AuditColOldCategory
	AuditColNewCategory
	AuditColEffectiveDate
	AuditColRequestedBy
	AuditColAction

	// AuditColumns is the audit row width.
	AuditColumns
)

// AuditActionTransfer labels the only audit action this service records.
const AuditActionTransfer = "transfer"
