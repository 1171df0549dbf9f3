package domain

// Container identifies the container a document belongs to together with its client
// encryption policy.
type Container struct {
	RID         string                 `json:"rid"                      yaml:"rid"`
	DatabaseRID string                 `json:"database_rid"             yaml:"database_rid"`
	Policy      ClientEncryptionPolicy `json:"client_encryption_policy" yaml:"client_encryption_policy"`
}

// SettingsCacheKey returns the key under which settings built for c are cached.
func (c *Container) SettingsCacheKey() string {
	return c.RID + "/" + c.Policy.Fingerprint()
}
