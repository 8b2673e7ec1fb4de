package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "default config",
			envVars: map[string]string{},
			expected: &Config{
				LogLevel:   "info",
				ServerPort: "3000",
			},
		},
		{
			name: "custom config",
			envVars: map[string]string{
				"LOG_LEVEL":   "debug",
				"SERVER_PORT": "9000",
				"PROJECT_ID":  "custom-project",
			},
			expected: &Config{
				LogLevel:   "debug",
				ServerPort: "9000",
				ProjectID:  "custom-project",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("LOG_LEVEL")
			os.Unsetenv("SERVER_PORT")
			os.Unsetenv("PROJECT_ID")
			for key, value := range tt.envVars {
				os.Setenv(key, value)
				defer os.Unsetenv(key)
			}

			config := NewConfig()
			assert.Equal(t, tt.expected.LogLevel, config.LogLevel)
			assert.Equal(t, tt.expected.ServerPort, config.ServerPort)
			assert.Equal(t, tt.expected.ProjectID, config.ProjectID)
		})
	}
}

func TestNewConfigRenderDefaults(t *testing.T) {
	os.Unsetenv("SHOTSTACK_BASE_URL")
	os.Unsetenv("POLL_INTERVAL")
	os.Unsetenv("RENDER_WAIT_TIMEOUT")
	os.Unsetenv("ITEM_PACING_DELAY")
	os.Unsetenv("MAX_ITEMS_PER_FEED")

	config := NewConfig()

	assert.Equal(t, "https://api.shotstack.io/edit/v1", config.RenderConfig.BaseURL)
	assert.Equal(t, 5*time.Second, config.RenderConfig.PollInterval)
	assert.Equal(t, 5*time.Minute, config.RenderConfig.WaitTimeout)
	assert.Equal(t, 2*time.Second, config.RenderConfig.ItemPacingDelay)
	assert.Equal(t, 5, config.RenderConfig.MaxItemsPerFeed)
	assert.Equal(t, "public", config.RenderConfig.PublicDir)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				RenderConfig: RenderConfig{
					APIKey:     "key",
					TemplateID: "tmpl-1",
				},
			},
			wantErr: false,
		},
		{
			name: "missing api key",
			config: &Config{
				RenderConfig: RenderConfig{
					TemplateID: "tmpl-1",
				},
			},
			wantErr: true,
		},
		{
			name: "missing template id",
			config: &Config{
				RenderConfig: RenderConfig{
					APIKey: "key",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWebhookURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{
			name: "empty base yields no webhook",
			base: "",
			want: "",
		},
		{
			name: "base without trailing slash",
			base: "https://app.feedreel.io",
			want: "https://app.feedreel.io/webhook/shotstack",
		},
		{
			name: "base with trailing slash",
			base: "https://app.feedreel.io/",
			want: "https://app.feedreel.io/webhook/shotstack",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := RenderConfig{WebhookBaseURL: tt.base}
			assert.Equal(t, tt.want, rc.WebhookURL())
		})
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "test_value")
	defer os.Unsetenv("TEST_VAR")

	result := getEnv("TEST_VAR", "default")
	assert.Equal(t, "test_value", result)

	result = getEnv("NON_EXISTING_VAR", "default")
	assert.Equal(t, "default", result)
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "30s")
	defer os.Unsetenv("TEST_DURATION")

	assert.Equal(t, 30*time.Second, getEnvDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("MISSING_DURATION", time.Minute))

	os.Setenv("BAD_DURATION", "not-a-duration")
	defer os.Unsetenv("BAD_DURATION")
	assert.Equal(t, time.Minute, getEnvDuration("BAD_DURATION", time.Minute))
}

func TestServicesClose(t *testing.T) {
	services := &Services{}

	assert.NotPanics(t, func() {
		services.Close()
	}, "Close should not panic")
}
