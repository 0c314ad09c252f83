package sendfile

import (
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

type fakeInfo struct {
	name string
	mode fs.FileMode
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return nil }

func fakeValidator(info fs.FileInfo, statErr, accessErr error) *Validator {
	return &Validator{
		stat: func(string) (fs.FileInfo, error) {
			if statErr != nil {
				return nil, statErr
			}
			return info, nil
		},
		access: func(string) error { return accessErr },
	}
}

func writeTemp(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestValidate_RealFilesystem(t *testing.T) {
	file := writeTemp(t, "passwd")
	v := NewValidator()

	cases := []struct {
		path string
		want VerdictKind
	}{
		{file, VerdictSuccess},
		{"relative/path", VerdictBadRequest},
		{"", VerdictBadRequest},
		{"/does/not/exist", VerdictNotFound},
		{filepath.Join(file, "child"), VerdictInternalError}, // ENOTDIR
	}
	for _, tc := range cases {
		got := v.Validate(tc.path)
		if got.Kind != tc.want {
			t.Fatalf("Validate(%q) = %v (%v); want %v", tc.path, got.Kind, got.Err, tc.want)
		}
	}

	ok := v.Validate(file)
	if ok.Path != file || ok.IsBlockDevice {
		t.Fatalf("success verdict: %+v", ok)
	}
}

func TestValidate_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	file := writeTemp(t, "secret")
	if err := os.Chmod(file, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if got := NewValidator().Validate(file); got.Kind != VerdictForbidden {
		t.Fatalf("unreadable file: %v", got.Kind)
	}
}

func TestValidate_Classification(t *testing.T) {
	regular := fakeInfo{name: "f"}
	cases := []struct {
		name      string
		v         *Validator
		want      VerdictKind
		wantBlock bool
	}{
		{"stat EACCES", fakeValidator(nil, &fs.PathError{Op: "stat", Path: "/x", Err: syscall.EACCES}, nil), VerdictForbidden, false},
		{"stat ENOENT", fakeValidator(nil, &fs.PathError{Op: "stat", Path: "/x", Err: syscall.ENOENT}, nil), VerdictNotFound, false},
		{"stat EIO", fakeValidator(nil, &fs.PathError{Op: "stat", Path: "/x", Err: syscall.EIO}, nil), VerdictInternalError, false},
		{"access denied", fakeValidator(regular, nil, syscall.EACCES), VerdictForbidden, false},
		{"regular", fakeValidator(regular, nil, nil), VerdictSuccess, false},
		{"block device", fakeValidator(fakeInfo{name: "sda", mode: fs.ModeDevice}, nil, nil), VerdictSuccess, true},
		{"char device", fakeValidator(fakeInfo{name: "tty", mode: fs.ModeDevice | fs.ModeCharDevice}, nil, nil), VerdictSuccess, false},
	}
	for _, tc := range cases {
		got := tc.v.Validate("/x")
		if got.Kind != tc.want || got.IsBlockDevice != tc.wantBlock {
			t.Fatalf("%s: got %+v; want kind=%v block=%v", tc.name, got, tc.want, tc.wantBlock)
		}
	}
}

func TestVerdictKind_Status(t *testing.T) {
	cases := map[VerdictKind]int{
		VerdictSuccess:       200,
		VerdictBadRequest:    400,
		VerdictForbidden:     403,
		VerdictNotFound:      404,
		VerdictInternalError: 500,
	}
	for k, want := range cases {
		if got := k.Status(); got != want {
			t.Fatalf("%v.Status() = %d; want %d", k, got, want)
		}
	}
}
