package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc := NewDocument("myvpc", "10.10.0.0/16")
	doc.Subnets = append(doc.Subnets, SubnetRecord{Name: "public", CIDR: "10.10.1.0/24"})

	if err := s.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := s.Load("myvpc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatalf("expected document to exist")
	}
	if loaded.CIDR != "10.10.0.0/16" {
		t.Fatalf("unexpected cidr: %s", loaded.CIDR)
	}
	if len(loaded.Subnets) != 1 || loaded.Subnets[0].Name != "public" {
		t.Fatalf("unexpected subnets: %+v", loaded.Subnets)
	}
}

func TestLoadAbsentVPCReturnsFalseNoError(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	doc, ok, err := s.Load("ghost")
	if err != nil {
		t.Fatalf("expected no error for absent vpc, got %v", err)
	}
	if ok || doc != nil {
		t.Fatalf("expected absent vpc to report ok=false doc=nil")
	}
}

func TestLoadCorruptFileReturnsErrStateCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write broken file: %v", err)
	}
	_, _, err := s.Load("broken")
	if err == nil {
		t.Fatalf("expected error for corrupt document")
	}
	if !errors.Is(err, vpcerr.ErrStateCorrupt) {
		t.Fatalf("expected ErrStateCorrupt, got %v", err)
	}
}

func TestListReturnsSortedNames(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	_ = s.Save(NewDocument("zeta", "10.0.0.0/16"))
	_ = s.Save(NewDocument("alpha", "10.1.0.0/16"))

	got, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("expected sorted [alpha zeta], got %v", got)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	_ = s.Save(NewDocument("myvpc", "10.0.0.0/16"))

	if err := s.Delete("myvpc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err := s.Load("myvpc")
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if ok {
		t.Fatalf("expected vpc to be gone after delete")
	}
}
