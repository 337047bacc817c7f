package credcore

import "github.com/MrEthical07/credcore/internal/security"

// SecurityReport summarizes the security-relevant settings of a built Engine.
type SecurityReport = security.Report

// PasswordConfigReport lists the argon2id parameters in use.
type PasswordConfigReport = security.PasswordReport

// SecurityReport returns the posture of the engine's configuration. It never
// includes secret material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.Refresh.TTL,
		RefreshBytes: e.config.Refresh.ValueBytes,
		Leeway:       e.config.JWT.Leeway,
		Issuer:       e.config.JWT.Issuer,
		Audience:     e.config.JWT.Audience,
		SecretBytes:  len(e.config.JWT.Secret),
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		BcryptCost:     e.config.Password.BcryptCost,
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		AuditEnabled:   e.config.Audit.Enabled,
		MetricsEnabled: e.config.Metrics.Enabled,
	})
}
