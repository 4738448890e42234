package types

// Telemetry metric names for CloudWatch.
const (
	MetricReminderOutcome = "ReminderOutcome"
	MetricPushLatency     = "PushLatency"
	MetricReminderLag     = "ReminderLag"
	MetricRelayForwarded  = "RelayForwarded"

	DimOutcome = "Outcome"
	DimQueue   = "Queue"

	DefaultMetricNamespace = "RecipeScheduler"
)
