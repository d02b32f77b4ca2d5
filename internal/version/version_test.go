package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldBuilt := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldBuilt }()

	Version, GitSHA, BuildTime = "0.3.1", "a1b2c3d", "2026-05-04T12:00:00Z"
	want := "sfm-convert 0.3.1 (a1b2c3d, built 2026-05-04T12:00:00Z)"
	if got := String("sfm-convert"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
