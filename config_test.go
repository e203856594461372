package bakeryauth

import "testing"

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without secrets must fail validation")
	}
	if !cfg.Refresh.CrossCheckAccess || cfg.Refresh.RevokeAllOnReuse || cfg.Refresh.SerializePerUser {
		t.Fatalf("unexpected refresh defaults: %+v", cfg.Refresh)
	}
}

func TestValidateRejectsInconsistentConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"same secrets":    func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret },
		"zero access ttl": func(c *Config) { c.JWT.AccessTTL = 0 },
		"refresh<=access": func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL },
		"zero max tokens": func(c *Config) { c.Refresh.MaxTokens = 0 },
		"lock ttl":        func(c *Config) { c.Refresh.SerializePerUser = true; c.Refresh.LockTTL = 0 },
		"negative limit":  func(c *Config) { c.Security.MaxLoginAttempts = -1 },
		"login cooldown":  func(c *Config) { c.Security.LoginCooldownDuration = 0 },
		"audit buffer":    func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config must validate: %v", err)
	}
}

func TestWithConfigClonesSecrets(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'
	if b.config.JWT.AccessSecret[0] == 'X' {
		t.Fatal("builder must not alias caller secrets")
	}
}
