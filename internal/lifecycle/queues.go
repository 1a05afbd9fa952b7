package lifecycle

// Task Queue queue names the Lifecycle Service schedules work onto (§4.6
// expansion, §4.7). Kept together since every entity handler that
// schedules or cancels tasks needs the same two names.
const (
	QueueTabularExpiration = "tabular_expiration"
	QueueTabularPurge      = "tabular_purge"
)
