package model

import (
	"testing"

	kerrors "github.com/openstore/openstore/internal/errors"
)

func TestAppendRevisionPreservesOrder(t *testing.T) {
	pkg := NewPackage("foo.bar")

	for _, v := range []string{"1.0", "1.1", "2.0"} {
		if _, err := pkg.AppendRevision(Revision{Version: v, Architecture: "armhf"}); err != nil {
			t.Fatalf("append %s: %v", v, err)
		}
	}

	if len(pkg.Revisions) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(pkg.Revisions))
	}

	for i, want := range []string{"1.0", "1.1", "2.0"} {
		if got := pkg.Revisions[i].Version; got != want {
			t.Errorf("revision %d: expected version %s, got %s", i, want, got)
		}
		if got := pkg.Revisions[i].Revision; got != i+1 {
			t.Errorf("revision %d: expected number %d, got %d", i, i+1, got)
		}
	}

	if pkg.Version != "2.0" || pkg.Revision != 3 {
		t.Fatalf("expected current version 2.0/3, got %s/%d", pkg.Version, pkg.Revision)
	}

	for _, key := range []string{"v1__0", "v1__1", "v2__0"} {
		if n, ok := pkg.Downloads[key]; !ok || n != 0 {
			t.Errorf("expected zeroed download counter %s, got %d (present %v)", key, n, ok)
		}
	}
}

func TestAppendRevisionDuplicateVersion(t *testing.T) {
	pkg := NewPackage("foo.bar")
	if _, err := pkg.AppendRevision(Revision{Version: "1.0", Architecture: "armhf"}); err != nil {
		t.Fatal(err)
	}

	_, err := pkg.AppendRevision(Revision{Version: "1.0", Architecture: "armhf"})
	if !kerrors.Is(err, kerrors.KindExistingVersion) {
		t.Fatalf("expected ExistingVersion, got %v", err)
	}

	if len(pkg.Revisions) != 1 {
		t.Fatalf("failed append must not modify the ledger, got %d revisions", len(pkg.Revisions))
	}

	if err := pkg.CheckVersion("1.0"); !kerrors.Is(err, kerrors.KindExistingVersion) || err.(*kerrors.Error).Detail != "1.0" {
		t.Fatalf("expected ExistingVersion with the version as detail, got %v", err)
	}
	if err := pkg.CheckVersion("1.1"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

// The duplicate check ignores architecture: the same version built for a
// second architecture is rejected as well.
func TestAppendRevisionSameVersionOtherArchitecture(t *testing.T) {
	pkg := NewPackage("foo.bar")
	if _, err := pkg.AppendRevision(Revision{Version: "1.0", Architecture: "armhf"}); err != nil {
		t.Fatal(err)
	}

	_, err := pkg.AppendRevision(Revision{Version: "1.0", Architecture: "arm64"})
	if !kerrors.Is(err, kerrors.KindExistingVersion) {
		t.Fatalf("expected ExistingVersion for a different architecture, got %v", err)
	}
}

func TestCurrentRevision(t *testing.T) {
	pkg := NewPackage("foo.bar")
	if _, ok := pkg.CurrentRevision(); ok {
		t.Fatalf("empty ledger must not have a current revision")
	}

	pkg.AppendRevision(Revision{Version: "1.0"})
	pkg.AppendRevision(Revision{Version: "2.0"})

	pkg.Revision = 1
	rev, ok := pkg.CurrentRevision()
	if !ok || rev.Version != "1.0" {
		t.Fatalf("expected revision 1 (1.0), got %+v", rev)
	}

	pkg.Revision = 42
	rev, ok = pkg.CurrentRevision()
	if !ok || rev.Version != "2.0" {
		t.Fatalf("expected fallback to the latest revision, got %+v", rev)
	}
}

func TestDownloadKey(t *testing.T) {
	if got := DownloadKey("1.2.3"); got != "v1__2__3" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestUserCanManage(t *testing.T) {
	pkg := &Package{ID: "foo.bar", Maintainer: "alice"}

	tests := []struct {
		user *User
		want bool
	}{
		{&User{ID: "alice", Role: RoleCommunity}, true},
		{&User{ID: "bob", Role: RoleCommunity}, false},
		{&User{ID: "bob", Role: RoleTrusted}, false},
		{&User{ID: "root", Role: RoleAdmin}, true},
		{nil, false},
	}

	for _, tt := range tests {
		if got := tt.user.CanManage(pkg); got != tt.want {
			t.Errorf("%+v: expected %v, got %v", tt.user, tt.want, got)
		}
	}
}
