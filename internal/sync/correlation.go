package sync

// CorrelationPolicy names the field used to match a remote order to a local
// row during reconciliation. The two policies produce different observable
// histories for the same real-world event: when an order is replaced at a
// new price, ByOrderID records a removal plus a fresh row, while ByToken
// updates the existing active row in place. The source does not document
// which is correct, so both are preserved behind explicit names.
type CorrelationPolicy string

const (
	// CorrelateByOrderID keys the diff on the source-assigned order id.
	// Used by the full batch reconciler.
	CorrelateByOrderID CorrelationPolicy = "by-order-id"

	// CorrelateByToken keys on (ticker, token, active). Used by the
	// targeted single-token syncer.
	CorrelateByToken CorrelationPolicy = "by-token"
)
