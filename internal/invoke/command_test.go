package invoke

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRealCommandExecutor_Run(t *testing.T) {
	skipWithoutShell(t)
	builder := NewRealCommandBuilder()

	cmd := builder.BuildCommand("echo", "arg1", "arg2")
	var out bytes.Buffer
	cmd.SetOutput(&out, &out)

	if err := cmd.Run(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "arg1 arg2" {
		t.Errorf("Expected 'arg1 arg2', got: %s", out.String())
	}
}

func TestExitStatus_RealProcess(t *testing.T) {
	skipWithoutShell(t)
	builder := NewRealCommandBuilder()

	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"success", "exit 0", 0},
		{"failure", "exit 1", 1},
		{"custom code", "exit 42", 42},
		{"killed by signal", "kill -9 $$", 128 + 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := builder.BuildCommand("sh", "-c", tc.script)
			cmd.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
			assert.Equal(t, tc.want, ExitStatus(cmd.Run()))
		})
	}
}

func TestExitStatus_NotStarted(t *testing.T) {
	builder := NewRealCommandBuilder()
	cmd := builder.BuildCommand("definitely-not-a-real-binary-4f1c")
	err := cmd.Run()

	require.Error(t, err)
	assert.Equal(t, ExitNotStarted, ExitStatus(err))
}

func TestExitStatus_CodedAndWrapped(t *testing.T) {
	assert.Equal(t, 0, ExitStatus(nil))
	assert.Equal(t, 5, ExitStatus(&CodeError{Code: 5}))
	assert.Equal(t, 7, ExitStatus(errors.Join(errors.New("context"), &CodeError{Code: 7})))
	assert.Equal(t, ExitNotStarted, ExitStatus(errors.New("exec: not found")))
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{NewCommand("colmap", "mapper"), "colmap mapper"},
		{NewCommand("/opt/COLMAP dir/colmap", "--image_path", "/data/my scene/input"),
			`"/opt/COLMAP dir/colmap" --image_path "/data/my scene/input"`},
		{NewCommand("magick", "mogrify", "-resize", "50%", "a.jpg"), "magick mogrify -resize 50% a.jpg"},
		{NewCommand("echo", ""), `echo ""`},
		{NewCommand("echo", `say "hi"`), `echo "say \"hi\""`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.cmd.String())
	}
}

func TestMockCommandExecutor_Run(t *testing.T) {
	mock := &MockCommandExecutor{ExitCode: 3}

	err := mock.Run()
	require.Error(t, err)
	assert.Equal(t, 3, ExitStatus(err))
	assert.True(t, mock.RunCalled)
	assert.Equal(t, "exit status 3", err.Error())
}

func TestMockCommandExecutor_SideEffect(t *testing.T) {
	ran := false
	mock := &MockCommandExecutor{SideEffect: func() error {
		ran = true
		return nil
	}}

	require.NoError(t, mock.Run())
	assert.True(t, ran)

	boom := errors.New("boom")
	failing := &MockCommandExecutor{SideEffect: func() error { return boom }}
	assert.ErrorIs(t, failing.Run(), boom)
}

func TestMockCommandExecutor_SetOutput(t *testing.T) {
	mock := &MockCommandExecutor{}
	var out, errOut bytes.Buffer
	mock.SetOutput(&out, &errOut)

	assert.Same(t, &out, mock.Stdout)
	assert.Same(t, &errOut, mock.Stderr)
}

func TestMockCommandBuilder_Records(t *testing.T) {
	builder := NewMockCommandBuilder()
	assert.Nil(t, builder.LastCommand())

	builder.BuildCommand("colmap", "feature_extractor", "--database_path", "db")
	builder.BuildCommand("colmap", "mapper")

	cmds := builder.Built()
	require.Len(t, cmds, 2)
	assert.Equal(t, "feature_extractor", cmds[0].Args[0])
	assert.Equal(t, "mapper", builder.LastCommand().Args[0])

	builder.Reset()
	assert.Empty(t, builder.Built())
}

func TestMockCommandBuilder_Factory(t *testing.T) {
	builder := NewMockCommandBuilder()
	builder.ExecutorFactory = func(name string, args []string) *MockCommandExecutor {
		if args[0] == "mapper" {
			return &MockCommandExecutor{ExitCode: 9}
		}
		return &MockCommandExecutor{}
	}

	assert.NoError(t, builder.BuildCommand("colmap", "feature_extractor").Run())
	assert.Equal(t, 9, ExitStatus(builder.BuildCommand("colmap", "mapper").Run()))
}

func TestMockCommandBuilder_Concurrent(t *testing.T) {
	builder := NewMockCommandBuilder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			builder.BuildCommand("magick", "mogrify").Run()
		}()
	}
	wg.Wait()

	assert.Len(t, builder.Built(), 50)
}
