package protocol

import (
	"testing"
)

func TestURIStringAndParse(t *testing.T) {
	cases := []struct {
		in   string
		want UUri
	}{
		{"//test.app/18002/1/8001", UUri{Authority: "test.app", UEID: 0x18002, UEVersionMajor: 1, ResourceID: 0x8001}},
		{"up://svc-a/10/2/0", UUri{Authority: "svc-a", UEID: 0x10, UEVersionMajor: 2}},
		{"/ff/1/7fff", UUri{UEID: 0xff, UEVersionMajor: 1, ResourceID: 0x7fff}},
	}
	for _, c := range cases {
		got, err := ParseURI(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: got %+v want %+v", c.in, got, c.want)
		}
		again, err := ParseURI(got.String())
		if err != nil || again != got {
			t.Fatalf("reparse %q: %+v %v", got.String(), again, err)
		}
	}
}

func TestParseURIErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"//",
		"//auth",
		"relative/1/2/3",
		"//a/1/2",
		"//a/1/2/3/4",
		"//a/zz/1/1",
		"//a/1/100/1",
		"//a/1/1/10000",
	} {
		if _, err := ParseURI(s); err == nil {
			t.Errorf("ParseURI(%q) expected error", s)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := MustParseURI("//test.app/18002/1/8001")
	b := MustParseURI("up://test.app/18002/1/8001")
	c := a.WithResource(0x8002)
	if FingerprintOf(a) != FingerprintOf(b) {
		t.Fatalf("same topic produced different fingerprints")
	}
	if FingerprintOf(a) == FingerprintOf(c) {
		t.Fatalf("different topics share a fingerprint")
	}
	if len(FingerprintOf(a).String()) != 16 {
		t.Fatalf("short fingerprint form: %q", FingerprintOf(a).String())
	}
}
