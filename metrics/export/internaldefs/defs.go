package internaldefs

import "github.com/MrEthical07/credcore"

// Series is one exported metric name bound to an engine metric id.
type Series struct {
	ID   credcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed from Engine.AuditDropped.
const AuditDroppedName = "credcore_audit_dropped_total"

// Counters lists every engine counter in export order.
var Counters = []Series{
	{credcore.MetricLoginSuccess, "credcore_login_success_total", "Successful logins."},
	{credcore.MetricLoginFailure, "credcore_login_failure_total", "Rejected or failed logins."},
	{credcore.MetricLoginRehash, "credcore_login_rehash_total", "Password hashes upgraded during login."},
	{credcore.MetricRefreshSuccess, "credcore_refresh_success_total", "Successful refresh token rotations."},
	{credcore.MetricRefreshInvalid, "credcore_refresh_invalid_total", "Refresh attempts with an unknown, revoked or mismatched token."},
	{credcore.MetricRefreshExpired, "credcore_refresh_expired_total", "Refresh attempts with an expired token."},
	{credcore.MetricRefreshReuseDetected, "credcore_refresh_reuse_detected_total", "Refresh attempts presenting an already used token."},
	{credcore.MetricTokensRevokedOnReuse, "credcore_tokens_revoked_on_reuse_total", "Refresh tokens revoked by reuse detection."},
	{credcore.MetricLogout, "credcore_logout_total", "Logout calls."},
	{credcore.MetricStorageUnavailable, "credcore_storage_unavailable_total", "Operations that failed on a backend error."},
	{credcore.MetricAccessValidateSuccess, "credcore_access_validate_success_total", "Access tokens accepted."},
	{credcore.MetricAccessValidateFailure, "credcore_access_validate_failure_total", "Access tokens rejected."},
}

// Histograms lists the latency histograms in export order.
var Histograms = []Series{
	{credcore.MetricValidateLatency, "credcore_validate_latency_seconds", "Access token validation latency."},
	{credcore.MetricRefreshLatency, "credcore_refresh_latency_seconds", "Refresh rotation latency."},
}

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = 8

// HistogramBounds are the bucket upper edges in seconds, as le label values.
var HistogramBounds = [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Cumulative turns per-bucket counts into the running totals exporters
// publish. Missing trailing buckets count as zero. The last element is the
// total observation count.
func Cumulative(perBucket []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var sum uint64
	for i := range out {
		if i < len(perBucket) {
			sum += perBucket[i]
		}
		out[i] = sum
	}
	return out
}
