package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricTokenMinted, Name: "gosession_token_minted_total", Help: "Credentials minted."},
	{ID: goSession.MetricTokenValidated, Name: "gosession_token_validated_total", Help: "Credentials accepted by validation."},
	{ID: goSession.MetricTokenRejected, Name: "gosession_token_rejected_total", Help: "Credentials rejected by validation."},
	{ID: goSession.MetricTokenRevoked, Name: "gosession_token_revoked_total", Help: "Revocations that wrote a blacklist entry."},
	{ID: goSession.MetricRevokeNoop, Name: "gosession_revoke_noop_total", Help: "Revocations of undecodable or expired credentials."},
	{ID: goSession.MetricBlacklistHit, Name: "gosession_blacklist_hit_total", Help: "Validations rejected by the revocation list."},
	{ID: goSession.MetricRateLimitAllowed, Name: "gosession_rate_limit_allowed_total", Help: "Rate-limit checks that allowed the hit."},
	{ID: goSession.MetricRateLimitRejected, Name: "gosession_rate_limit_rejected_total", Help: "Rate-limit checks that rejected the hit."},
	{ID: goSession.MetricCacheHit, Name: "gosession_cache_hit_total", Help: "Cache reads that found an entry."},
	{ID: goSession.MetricCacheMiss, Name: "gosession_cache_miss_total", Help: "Cache reads that found nothing."},
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Server-side sessions created."},
	{ID: goSession.MetricSessionDeleted, Name: "gosession_session_deleted_total", Help: "Server-side sessions deleted."},
	{ID: goSession.MetricFailOpen, Name: "gosession_fail_open_total", Help: "Backend errors answered with the negative value."},
	{ID: goSession.MetricBackendError, Name: "gosession_backend_error_total", Help: "Backend errors seen by the engine."},
	{ID: goSession.MetricActivityLogged, Name: "gosession_activity_logged_total", Help: "Activity-log entries accepted."},
	{ID: goSession.MetricActivityFailed, Name: "gosession_activity_failed_total", Help: "Activity-log writes that failed."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "ValidateToken latency histogram."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the
// engine's 1ms..100ms buckets.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
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
