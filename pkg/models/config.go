package models

import "time"

type GlobalConfig struct {
	Store     StoreConfig     `toml:"store" json:"store"`
	Notify    NotifyConfig    `toml:"notify" json:"notify"`
	Retention RetentionConfig `toml:"retention" json:"retention"`
	Groups    []ServiceGroup  `toml:"group" json:"groups"`
}

type StoreConfig struct {
	Repo         string `toml:"repo" json:"repo"`
	RemoteRepo   string `toml:"remote_repo" json:"remote_repo,omitempty"`
	PasswordFile string `toml:"password_file" json:"password_file,omitempty"`

	// resolved at startup from STACKBACK_REPO_PASSWORD or PasswordFile,
	// never serialized
	Password string `toml:"-" json:"-"`
}

type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url" json:"webhook_url,omitempty"`
	Timeout    Duration `toml:"timeout" json:"timeout,omitempty"`
}

type RetentionConfig struct {
	MaxAgeDays   int      `toml:"max_age_days" json:"max_age_days"`
	MinKeep      int      `toml:"min_keep" json:"min_keep"`
	SafetyMaxAge Duration `toml:"safety_max_age" json:"safety_max_age"`
}

// Duration wraps time.Duration so toml values can be written as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
