package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/mesadata/mesa/pkg/config"
)

func TestRunInvalidateRefusesDefaultEnvironment(t *testing.T) {
	tests := []struct {
		name          string
		defaultTarget string
		argument      string
	}{
		{name: "exact match", defaultTarget: "prod", argument: "prod"},
		{name: "mixed-case default", defaultTarget: "Prod", argument: "prod"},
		{name: "mixed-case argument", defaultTarget: "prod", argument: "PROD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{config: &config.Config{
				Project:                  "analytics",
				ModelDefaults:            config.ModelDefaultsConfig{Dialect: "postgres"},
				DefaultTargetEnvironment: tt.defaultTarget,
			}}

			err := runInvalidate(context.Background(), a, tt.argument)
			if err == nil {
				t.Fatal("invalidating the default target environment succeeded, want error")
			}
			if !strings.Contains(err.Error(), "default target environment") {
				t.Errorf("error = %q, want the default-environment refusal", err)
			}
		})
	}
}
