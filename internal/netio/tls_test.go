package netio

import (
	"testing"
	"time"
)

func TestGenerateSelfSignedCertParses(t *testing.T) {
	cert, err := GenerateSelfSignedCert(24*time.Hour, "")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("expected a parsed leaf certificate")
	}
	if cert.Leaf.Subject.CommonName != "arcod" {
		t.Fatalf("expected default CommonName arcod, got %q", cert.Leaf.Subject.CommonName)
	}
	found := false
	for _, name := range cert.Leaf.DNSNames {
		if name == "localhost" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected localhost in DNS SANs, got %v", cert.Leaf.DNSNames)
	}
}

func TestGenerateSelfSignedCertHostname(t *testing.T) {
	cert, err := GenerateSelfSignedCert(time.Hour, "studio.local")
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	if cert.Leaf.Subject.CommonName != "studio.local" {
		t.Fatalf("expected CommonName studio.local, got %q", cert.Leaf.Subject.CommonName)
	}
	names := map[string]bool{}
	for _, n := range cert.Leaf.DNSNames {
		names[n] = true
	}
	if !names["localhost"] || !names["studio.local"] {
		t.Fatalf("expected both localhost and studio.local in SANs, got %v", cert.Leaf.DNSNames)
	}
}
