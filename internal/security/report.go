package security

import "time"

// MinSecretBytes is the HS256 secret length below which a report flags the
// secret as weak.
const MinSecretBytes = 32

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	SigningAlgorithm             string
	AccessTTL                    time.Duration
	RefreshTTL                   time.Duration
	RefreshValueBits             int
	Leeway                       time.Duration
	IssuerPinned                 bool
	AudiencePinned               bool
	WeakSecret                   bool
	Argon2                       PasswordReport
	LegacyBcryptEnabled          bool
	UpgradeOnLogin               bool
	RefreshRotationEnabled       bool
	RefreshReuseDetectionEnabled bool
	AuditEnabled                 bool
	MetricsEnabled               bool
}

type ReportInput struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RefreshBytes   int
	Leeway         time.Duration
	Issuer         string
	Audience       string
	SecretBytes    int
	Password       PasswordReport
	BcryptCost     int
	UpgradeOnLogin bool
	AuditEnabled   bool
	MetricsEnabled bool
}

// BuildReport summarizes the security posture of a configuration. Rotation and
// reuse detection cannot be switched off and are always reported as enabled.
func BuildReport(input ReportInput) Report {
	return Report{
		SigningAlgorithm:             "HS256",
		AccessTTL:                    input.AccessTTL,
		RefreshTTL:                   input.RefreshTTL,
		RefreshValueBits:             input.RefreshBytes * 8,
		Leeway:                       input.Leeway,
		IssuerPinned:                 input.Issuer != "",
		AudiencePinned:               input.Audience != "",
		WeakSecret:                   input.SecretBytes < MinSecretBytes,
		Argon2:                       input.Password,
		LegacyBcryptEnabled:          input.BcryptCost > 0,
		UpgradeOnLogin:               input.UpgradeOnLogin,
		RefreshRotationEnabled:       true,
		RefreshReuseDetectionEnabled: true,
		AuditEnabled:                 input.AuditEnabled,
		MetricsEnabled:               input.MetricsEnabled,
	}
}
