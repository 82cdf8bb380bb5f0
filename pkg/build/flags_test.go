// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"testing"
)

var (
	origName        string
	origDescription string
	origTime        string
	origCommit      string
	origVersion     string
	origFlags       Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origDescription = buildDescription
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *buildFlags

	exitCode := m.Run()

	buildName = origName
	buildDescription = origDescription
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildFlags = origFlags

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		buildDesc   string
		wantErrMsg  string
		wantDesc    string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", "", "BuildName is required", ""},
		{"Missing BuildTime", "testapp", "", "abcdef123", "v1.0.0", "", "BuildTime is required", ""},
		{"Missing BuildCommit", "testapp", "2025-04-13", "", "v1.0.0", "", "BuildCommit is required", ""},
		{"Missing BuildVersion", "testapp", "2025-04-13", "abcdef123", "", "", "BuildVersion is required", ""},
		{"Default description", "testapp", "2025-04-13", "abcdef123", "v1.0.0", "", "", DefaultDescription},
		{"Linked description", "testapp", "2025-04-13", "abcdef123", "v1.0.0", "Bench tool", "", "Bench tool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*buildFlags = origFlags

			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer
			buildDescription = tt.buildDesc

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil {
					t.Fatalf("Initialize() expected error, got nil")
				}
				if err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if *buildFlags != origFlags {
					t.Errorf("failed Initialize() changed the defaults to %+v", *buildFlags)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			got := GetBuildFlags()
			want := Info{
				Name:        tt.buildName,
				Description: tt.wantDesc,
				Time:        tt.buildTime,
				Commit:      tt.buildCommit,
				Version:     tt.buildVer,
			}
			if got != want {
				t.Errorf("GetBuildFlags() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestGetBuildFlagsReturnsCopy(t *testing.T) {
	*buildFlags = origFlags
	flags := GetBuildFlags()
	flags.Name = "changed"

	if buildFlags.Name == "changed" {
		t.Error("GetBuildFlags() exposed the package state")
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.0.0", Commit: "abcdef123", Time: "2025-04-13"}
	if got, want := info.String(), "v1.0.0 (commit abcdef123, built 2025-04-13)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
