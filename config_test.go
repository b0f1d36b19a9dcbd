package winsvc

import (
	"errors"
	"testing"
)

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  ServiceConfig{Name: "svcA", Executable: `C:\app\worker.exe`},
		},
		{
			name:    "missing name",
			cfg:     ServiceConfig{Executable: `C:\app\worker.exe`},
			wantErr: true,
		},
		{
			name:    "missing executable",
			cfg:     ServiceConfig{Name: "svcA"},
			wantErr: true,
		},
		{
			name:    "empty",
			cfg:     ServiceConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrConfigMissing) {
					t.Errorf("Validate() = %v, want ErrConfigMissing", err)
				}
			} else if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestServiceConfigArgv(t *testing.T) {
	cfg := ServiceConfig{
		Name:       "svcA",
		Executable: "worker",
		Args:       []string{"--port", "8080"},
	}

	argv := cfg.Argv()
	want := []string{"worker", "--port", "8080"}
	if len(argv) != len(want) {
		t.Fatalf("Argv() len = %d, want %d", len(argv), len(want))
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("Argv()[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestServiceConfigArgvNoArgs(t *testing.T) {
	cfg := ServiceConfig{Name: "svcA", Executable: "worker"}

	argv := cfg.Argv()
	if len(argv) != 1 || argv[0] != "worker" {
		t.Errorf("Argv() = %v, want [worker]", argv)
	}
}
