package service

import (
	"errors"
	"testing"
)

func TestNormalizeSerials(t *testing.T) {
	got, err := normalizeSerials([]string{" SN-1", "SN-2 "})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(got) != 2 || got[0] != "SN-1" || got[1] != "SN-2" {
		t.Fatalf("unexpected serials: %v", got)
	}
	if _, err := normalizeSerials([]string{"SN-1", " SN-1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate serials should fail validation, got %v", err)
	}
	if _, err := normalizeSerials([]string{"  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank serial should fail validation, got %v", err)
	}
}

func TestNormalizeIDs(t *testing.T) {
	if _, err := normalizeIDs(nil, "box_ids", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty ids should fail validation")
	}
	if _, err := normalizeIDs([]uint{1, 2, 1}, "box_ids", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate ids should fail validation")
	}
	if _, err := normalizeIDs([]uint{1, 0}, "box_ids", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero id should fail validation")
	}
	if _, err := normalizeIDs([]uint{1, 2, 3}, "box_ids", 2); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized batch should fail validation")
	}
	got, err := normalizeIDs([]uint{3, 1}, "box_ids", 0)
	if err != nil || len(got) != 2 || got[0] != 3 {
		t.Fatalf("unexpected normalize result: %v %v", got, err)
	}
}

func TestMissingIDs(t *testing.T) {
	found := map[uint]struct{}{2: {}}
	got := missingIDs([]uint{5, 2, 1}, found)
	if len(got) != 2 || got[0] != 1 || got[1] != 5 {
		t.Fatalf("unexpected missing ids: %v", got)
	}
}
