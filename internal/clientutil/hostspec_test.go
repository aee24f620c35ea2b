package clientutil

import "testing"

func TestParseEndpointLocal(t *testing.T) {
	e := ParseEndpoint("/srv/data")
	if e.Remote {
		t.Fatalf("ParseEndpoint(/srv/data).Remote = true, want false")
	}
	if e.Path != "/srv/data" {
		t.Errorf("Path = %q", e.Path)
	}
}

func TestParseEndpointSSHHostspec(t *testing.T) {
	e := ParseEndpoint("user@example.com:/srv/data")
	if !e.Remote || e.Daemon {
		t.Fatalf("ParseEndpoint ssh hostspec = %+v, want Remote && !Daemon", e)
	}
	if e.User != "user" || e.Host != "example.com" || e.Path != "/srv/data" {
		t.Errorf("parsed = %+v", e)
	}
}

func TestParseEndpointSSHHostspecNoUser(t *testing.T) {
	e := ParseEndpoint("example.com:backups")
	if e.User != "" || e.Host != "example.com" || e.Path != "backups" {
		t.Errorf("parsed = %+v", e)
	}
}

func TestParseEndpointDaemonDoubleColon(t *testing.T) {
	e := ParseEndpoint("example.com::backup/sub/dir")
	if !e.Remote || !e.Daemon {
		t.Fatalf("ParseEndpoint daemon hostspec = %+v, want Remote && Daemon", e)
	}
	if e.Host != "example.com" || e.Module != "backup" || e.Path != "sub/dir" || e.Port != DefaultDaemonPort {
		t.Errorf("parsed = %+v", e)
	}
}

func TestParseEndpointRsyncURL(t *testing.T) {
	e := ParseEndpoint("rsync://user@example.com:8730/backup/sub")
	if !e.Remote || !e.Daemon {
		t.Fatalf("ParseEndpoint rsync:// = %+v, want Remote && Daemon", e)
	}
	if e.User != "user" || e.Host != "example.com" || e.Port != 8730 || e.Module != "backup" || e.Path != "sub" {
		t.Errorf("parsed = %+v", e)
	}
}

func TestParseEndpointRsyncURLNoPath(t *testing.T) {
	e := ParseEndpoint("rsync://example.com/backup")
	if e.Module != "backup" || e.Path != "." {
		t.Errorf("parsed = %+v, want Path \".\"", e)
	}
}

func TestParseEndpointWindowsDriveStaysLocal(t *testing.T) {
	e := ParseEndpoint(`C:\Users\x`)
	if e.Remote {
		t.Errorf("ParseEndpoint(%q).Remote = true, want false (Windows drive letter)", `C:\Users\x`)
	}
}
