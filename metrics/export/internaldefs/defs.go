package internaldefs

import (
	"github.com/MrEthical07/authlink"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authlink.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   authlink.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exporters publish, in a stable order.
var CounterDefs = []CounterDef{
	{ID: authlink.MetricAssociateSuccess, Name: "authlink_associate_success_total", Help: "Committed auth ID / user ID associations."},
	{ID: authlink.MetricAssociateCollision, Name: "authlink_associate_collision_total", Help: "Associate calls rejected because a key was already associated."},
	{ID: authlink.MetricAssociateFailure, Name: "authlink_associate_failure_total", Help: "Associate calls that failed for reasons other than a collision."},
	{ID: authlink.MetricLookup, Name: "authlink_lookup_total", Help: "Association lookups in either direction."},
	{ID: authlink.MetricLookupFailure, Name: "authlink_lookup_failure_total", Help: "Association lookups that returned an error."},
	{ID: authlink.MetricUserDeleted, Name: "authlink_user_deleted_total", Help: "Users whose associations were tombstoned."},
	{ID: authlink.MetricReconcileRepaired, Name: "authlink_reconcile_repaired_total", Help: "One-sided mappings repaired by reconciliation."},
	{ID: authlink.MetricReconcileConflict, Name: "authlink_reconcile_conflict_total", Help: "One-sided mappings left unrepaired because of a conflict."},
	{ID: authlink.MetricResolveCreated, Name: "authlink_resolve_created_total", Help: "Principals assigned a new user ID."},
	{ID: authlink.MetricResolveExisting, Name: "authlink_resolve_existing_total", Help: "Principals resolved to an existing user ID."},
	{ID: authlink.MetricSessionDestroyed, Name: "authlink_session_destroyed_total", Help: "Sign-outs that expired the platform session cookies."},
	{ID: authlink.MetricClaimsInvalid, Name: "authlink_claims_invalid_total", Help: "Requests carrying invalid session credentials."},
	{ID: authlink.MetricClaimsStale, Name: "authlink_claims_stale_total", Help: "Requests carrying expired session credentials."},
}

// HistogramDefs lists every histogram exporters publish.
var HistogramDefs = []HistogramDef{
	{ID: authlink.MetricStoreLatency, Name: "authlink_store_latency_seconds", Help: "Association store call latency."},
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "authlink_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// without native histogram support.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
