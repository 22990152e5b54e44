package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "webshelf.yaml", "-a", "0.0.0.0:3000"},
			allowed: []string{"-c"},
			want:    []string{"-c", "webshelf.yaml"},
		},
		{
			name:    "equals form",
			args:    []string{"--config=alt.json", "-s", "secret"},
			allowed: []string{"--config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "unknown flags dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "dash token is not a value",
			args:    []string{"-c", "-s", "secret"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "order preserved across flags",
			args:    []string{"-a", ":3000", "-l", "debug", "-c", "f.yaml"},
			allowed: []string{"-a", "-c"},
			want:    []string{"-a", ":3000", "-c", "f.yaml"},
		},
		{
			name:    "empty",
			args:    nil,
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	assert.Equal(t, "/etc/webshelf.yaml", ConfigFileFlag([]string{"-c", "/etc/webshelf.yaml"}))
	assert.Equal(t, "/etc/webshelf.json", ConfigFileFlag([]string{"-config", "/etc/webshelf.json", "-a", ":1"}))
	assert.Equal(t, "b.yaml", ConfigFileFlag([]string{"-c", "a.yaml", "-config", "b.yaml"}))
	assert.Empty(t, ConfigFileFlag([]string{"-a", ":3000", "-l", "debug"}))
}
