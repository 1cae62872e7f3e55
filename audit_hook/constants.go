package audithook

// Action constants for audit events.
const (
	// Intake actions
	ActionFarmerRegistered = "farmer.registered"
	ActionSackDelivered    = "sack.delivered"

	// Packing actions
	ActionBagPacked     = "bag.packed"
	ActionBatchCreated  = "batch.created"
	ActionWarrantIssued = "warrant.issued"

	// Financing actions
	ActionLenderRegistered = "lender.registered"
	ActionBundleCreated    = "bundle.created"
	ActionBundleFunded     = "bundle.funded"

	// Settlement actions
	ActionBatchSettled     = "batch.settled"
	ActionInvoiceSettled   = "invoice.settled"
	ActionSettlementFailed = "invoice.failed"

	// Token actions
	ActionTokensRecorded = "tokens.recorded"
	ActionTipRecorded    = "tip.recorded"
)

// Resource constants for audit events.
const (
	ResourceFarmer  = "farmer"
	ResourceSack    = "sack"
	ResourceBag     = "bag"
	ResourceBatch   = "batch"
	ResourceWarrant = "warrant"
	ResourceLender  = "lender"
	ResourceBundle  = "bundle"
	ResourceInvoice = "invoice"
	ResourceToken   = "token"
	ResourceTip     = "tip"
)

// Category constants for audit events.
const (
	CategoryIntake     = "intake"
	CategoryPacking    = "packing"
	CategoryFinancing  = "financing"
	CategorySettlement = "settlement"
	CategoryTokens     = "tokens"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
