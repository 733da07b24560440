package domain

// ErrorKind classifies a failed dialogue step for logs and metrics.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUpstream     ErrorKind = "upstream"
	KindStorage      ErrorKind = "storage"
	KindStaleSession ErrorKind = "stale_session"
	KindDelivery     ErrorKind = "delivery"
)
