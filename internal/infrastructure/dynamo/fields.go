package dynamo

// DynamoDB attribute names used in expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldCacheKey  = "cache_key"
	fieldValue     = "value"
	fieldHits      = "hits"
	fieldExpiresAt = "expires_at"

	fieldOrderID   = "order_id"
	fieldStatus    = "status"
	fieldPayment   = "payment"
	fieldNotes     = "notes"
	fieldUpdatedAt = "updated_at"
)
