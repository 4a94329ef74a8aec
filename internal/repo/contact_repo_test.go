package repo

import (
	"context"
	"testing"
)

func TestCreateContact_DuplicateNumber(t *testing.T) {
	db := newRepoDB(t)

	if _, err := CreateContact(context.Background(), db, "27830000001", ""); err != nil {
		t.Fatalf("first CreateContact: %v", err)
	}
	_, err := CreateContact(context.Background(), db, "27830000001", "")
	if err != ErrDuplicate {
		t.Fatalf("duplicate contact insert: got %v, want ErrDuplicate", err)
	}
}

func TestGetOrCreateContact_SingleRowSurvivesRace(t *testing.T) {
	db := newRepoDB(t)

	first, created, err := GetOrCreateContact(context.Background(), db, "27830000001")
	if err != nil || !created {
		t.Fatalf("first resolve: created=%v err=%v", created, err)
	}
	// A second call models the racing webhook: the row already exists, so it
	// re-reads instead of inserting.
	second, created, err := GetOrCreateContact(context.Background(), db, "27830000001")
	if err != nil || created {
		t.Fatalf("second resolve: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same contact row, got %s vs %s", second.ID, first.ID)
	}

	n, err := CountContacts(context.Background(), db)
	if err != nil || n != 1 {
		t.Fatalf("contact count = %d err=%v, want 1", n, err)
	}
}

func TestDeleteContactByNumber(t *testing.T) {
	db := newRepoDB(t)
	seedContact(t, db, "27830000001")

	removed, err := DeleteContactByNumber(context.Background(), db, "27830000001")
	if err != nil || !removed {
		t.Fatalf("delete existing: removed=%v err=%v", removed, err)
	}
	// Opt-out of an unknown number is a no-op, not an error.
	removed, err = DeleteContactByNumber(context.Background(), db, "27830000001")
	if err != nil || removed {
		t.Fatalf("delete missing: removed=%v err=%v", removed, err)
	}
}

func TestGetContactByNumber_NotFound(t *testing.T) {
	db := newRepoDB(t)
	if _, err := GetContactByNumber(context.Background(), db, "27839999999"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
